package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/blocksweep/blocksweep/internal/audit"
	"github.com/blocksweep/blocksweep/internal/decision"
	"github.com/blocksweep/blocksweep/internal/platform/config"
	"github.com/blocksweep/blocksweep/internal/platform/middleware"
	"github.com/blocksweep/blocksweep/internal/platform/telemetry"
	"github.com/blocksweep/blocksweep/internal/reconciler"
	"github.com/blocksweep/blocksweep/internal/scanner"
)

// Dependencies holds all injected dependencies for the server.
type Dependencies struct {
	ScanHandler        *scanner.Handler
	DecisionHandler    *decision.Handler
	BlocklistHandler   *reconciler.Handler
	AuditHandler       *audit.Handler
	Metrics            *telemetry.Metrics
	Logs               *telemetry.LogBuffer
	Config             *config.Public
	Ready              func() error // nil error means ready
	Logger             *slog.Logger
	CORSAllowedOrigins []string
}

type Server struct {
	httpServer *http.Server
	ready      func() error
	handler    http.Handler
}

func New(addr string, deps Dependencies) *Server {
	apiMux := http.NewServeMux()

	s := &Server{
		// Scans and blocklist runs complete inside the request.
		httpServer: &http.Server{
			Addr:         addr,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		ready: deps.Ready,
	}

	if deps.ScanHandler != nil {
		apiMux.HandleFunc("POST /api/run-scan", deps.ScanHandler.HandleRunScan)
	}
	if deps.DecisionHandler != nil {
		apiMux.HandleFunc("GET /api/results", deps.DecisionHandler.HandleResults)
		apiMux.HandleFunc("POST /api/override", deps.DecisionHandler.HandleOverride)
	}
	if deps.BlocklistHandler != nil {
		apiMux.HandleFunc("POST /api/block", deps.BlocklistHandler.HandleBlock)
		apiMux.HandleFunc("POST /api/unblock-all", deps.BlocklistHandler.HandleUnblockAll)
	}
	if deps.AuditHandler != nil {
		apiMux.HandleFunc("GET /api/audit/events", deps.AuditHandler.HandleListEvents)
	}
	if deps.Config != nil {
		public := *deps.Config
		apiMux.HandleFunc("GET /api/config", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, public)
		})
	}
	if deps.Logs != nil {
		apiMux.HandleFunc("GET /api/logs", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte(deps.Logs.String()))
		})
	}

	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /healthz", s.handleHealth)
	topMux.HandleFunc("GET /readyz", s.handleReadiness)
	if deps.Metrics != nil {
		topMux.Handle("GET /metrics", deps.Metrics.Handler())
	}
	topMux.Handle("/api/", middleware.AuditSource("api")(apiMux))

	// Wrap top-level mux with observability middleware
	var handler http.Handler = topMux
	if deps.Logger != nil {
		handler = middleware.Logging(deps.Logger)(handler)
	}
	handler = middleware.RequestID(handler)
	if len(deps.CORSAllowedOrigins) > 0 {
		handler = middleware.CORS(deps.CORSAllowedOrigins)(handler)
	}

	s.handler = handler
	s.httpServer.Handler = handler
	return s
}

// Handler returns the full middleware-wrapped handler chain (for testing).
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}

	slog.Info("server starting", "addr", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.ready == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "not configured",
		})
		return
	}

	if err := s.ready(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
