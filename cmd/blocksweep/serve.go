package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/blocksweep/blocksweep/internal/audit"
	"github.com/blocksweep/blocksweep/internal/decision"
	"github.com/blocksweep/blocksweep/internal/platform/server"
	"github.com/blocksweep/blocksweep/internal/reconciler"
	"github.com/blocksweep/blocksweep/internal/scanner"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(configPath *string) *cobra.Command {
	var corsOrigins []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := loadApp(ctx, *configPath)
			if err != nil {
				return err
			}
			return serve(ctx, a, corsOrigins)
		},
	}
	cmd.Flags().StringSliceVar(&corsOrigins, "cors-origin", nil, "Allowed CORS origin (repeatable)")
	return cmd
}

func serve(ctx context.Context, a *app, corsOrigins []string) error {
	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	public := a.cfg.Public()

	srv := server.New(addr, server.Dependencies{
		ScanHandler:        scanner.NewHandler(a.scanner, a.client, a.cfg.Scan.Keywords),
		DecisionHandler:    decision.NewHandler(a.store, a.auditLog),
		BlocklistHandler:   reconciler.NewHandler(a.reconciler, a.client, a.store),
		AuditHandler:       audit.NewHandler(a.auditStore),
		Metrics:            a.metrics,
		Logs:               a.logs,
		Config:             &public,
		Ready:              a.ready,
		Logger:             a.logger,
		CORSAllowedOrigins: corsOrigins,
	})

	if err := a.ready(); err != nil {
		slog.Warn("starting without a complete configuration", "reason", err)
	}
	slog.Info("blocksweep starting",
		"addr", addr,
		"keywords", len(a.cfg.Scan.Keywords),
		"blocklist", a.cfg.Bluesky.BlocklistURI,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		return a.Close()
	})
	return g.Wait()
}
