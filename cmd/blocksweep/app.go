package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/blocksweep/blocksweep/internal/atproto"
	"github.com/blocksweep/blocksweep/internal/audit"
	"github.com/blocksweep/blocksweep/internal/classifier"
	"github.com/blocksweep/blocksweep/internal/decision"
	"github.com/blocksweep/blocksweep/internal/platform/config"
	"github.com/blocksweep/blocksweep/internal/platform/telemetry"
	"github.com/blocksweep/blocksweep/internal/reconciler"
	"github.com/blocksweep/blocksweep/internal/scanner"
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	logs   *telemetry.LogBuffer

	metrics    *telemetry.Metrics
	client     *atproto.Client
	store      *decision.Store
	auditStore *audit.Store
	auditLog   *audit.AsyncLogger
	scanner    *scanner.Scanner
	reconciler *reconciler.Reconciler
}

func loadApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return newApp(ctx, cfg, os.Stderr)
}

func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	logs := telemetry.NewLogBuffer(cfg.Log.BufferBytes)
	logger := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format, logOut, logs)
	telemetry.SetDefault(logger)

	var metrics *telemetry.Metrics
	if cfg.Metrics.Enabled {
		metrics = telemetry.NewMetrics()
	}

	client := atproto.NewClient(atproto.ClientConfig{
		BaseURL:           cfg.Bluesky.BaseURL,
		Identifier:        cfg.Bluesky.Identifier,
		AppPassword:       cfg.Bluesky.AppPassword,
		RequestsPerSecond: cfg.Bluesky.RequestsPerSecond,
	})

	blocklistURI, err := resolveBlocklist(ctx, cfg.Bluesky, client)
	if err != nil {
		return nil, err
	}
	cfg.Bluesky.BlocklistURI = blocklistURI

	auditStore := audit.NewStore(cfg.Audit.RecentSize)
	auditLog := audit.NewAsyncLogger(audit.LoggerConfig{
		BufferSize:    cfg.Audit.BufferSize,
		BatchSize:     cfg.Audit.BatchSize,
		FlushInterval: time.Duration(cfg.Audit.FlushIntervalMs) * time.Millisecond,
	}, auditStore, audit.LogSink{Logger: logger})

	gen := classifier.NewOpenAIGenerator(classifier.OpenAIConfig{
		BaseURL: cfg.Classifier.BaseURL,
		APIKey:  cfg.Classifier.APIKey,
	})
	clf := classifier.New(gen, classifier.Config{
		Model:       cfg.Classifier.Model,
		VisionModel: cfg.Classifier.VisionModel,
		Temperature: cfg.Classifier.Temperature,
		Timeout:     cfg.Classifier.Timeout(),
	}, classifier.WithMetrics(metrics))

	store := decision.NewStore()

	return &app{
		cfg:        cfg,
		logger:     logger,
		logs:       logs,
		metrics:    metrics,
		client:     client,
		store:      store,
		auditStore: auditStore,
		auditLog:   auditLog,
		scanner: scanner.New(client, clf, store, scanner.Config{
			SearchLimit: cfg.Bluesky.SearchLimit,
			Audit:       auditLog,
			Metrics:     metrics,
		}),
		reconciler: reconciler.New(client, reconciler.Config{
			BlocklistURI: blocklistURI,
			Audit:        auditLog,
			Metrics:      metrics,
		}),
	}, nil
}

// resolveBlocklist returns the configured list uri, resolving a bsky.app list
// link when no uri is set.
func resolveBlocklist(ctx context.Context, cfg config.BlueskyConfig, r atproto.HandleResolver) (string, error) {
	if cfg.BlocklistURI != "" {
		if _, _, err := atproto.ParseListURI(cfg.BlocklistURI); err != nil {
			return "", fmt.Errorf("bluesky.blocklist_uri: %w", err)
		}
		return cfg.BlocklistURI, nil
	}
	if cfg.BlocklistLink == "" {
		return "", nil
	}
	uri, err := atproto.ResolveListLink(ctx, r, cfg.BlocklistLink)
	if err != nil {
		return "", fmt.Errorf("bluesky.blocklist_link: %w", err)
	}
	slog.Info("resolved blocklist link", "link", cfg.BlocklistLink, "uri", uri)
	return uri, nil
}

// ready reports why the app cannot serve scans yet, or nil.
func (a *app) ready() error {
	if !a.cfg.Bluesky.HasCredentials() {
		return atproto.ErrMissingCredentials
	}
	if a.cfg.Bluesky.BlocklistURI == "" {
		return reconciler.ErrNoBlocklist
	}
	if len(a.cfg.Scan.Keywords) == 0 {
		return errors.New("no scan keywords configured")
	}
	return nil
}

func (a *app) Close() error {
	return a.auditLog.Close()
}
