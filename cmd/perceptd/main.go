// Package main implements the perception toolkit daemon: it loads artifact
// catalogs, serves detection events over a websocket gateway, and optionally
// publishes found/lost deltas to NATS.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/mikiec84/perception-toolkit/artifact"
	"github.com/mikiec84/perception-toolkit/config"
	"github.com/mikiec84/perception-toolkit/engine"
	"github.com/mikiec84/perception-toolkit/fetch"
	"github.com/mikiec84/perception-toolkit/gateway"
	"github.com/mikiec84/perception-toolkit/metric"
	"github.com/mikiec84/perception-toolkit/nearby"
	"github.com/mikiec84/perception-toolkit/output/natspub"
	"github.com/mikiec84/perception-toolkit/pagemeta"
	"github.com/mikiec84/perception-toolkit/pkg/cache"
	"github.com/mikiec84/perception-toolkit/thing"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "perceptd"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printHelp()
		return nil
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cliCfg.LogLevel != "" {
		cfg.Logging.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Logging.Format = cliCfg.LogFormat
	}

	if cliCfg.Validate {
		slog.Info("configuration is valid")
		return nil
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	logger.Info("starting perception toolkit daemon",
		"addr", cfg.Server.Addr, "config_path", cliCfg.ConfigPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.cleanup()

	if err := loadCatalogs(ctx, app.engine, cfg.Fetch.ArtifactURLs, logger); err != nil {
		return err
	}

	return serve(ctx, cfg, app, logger, cliCfg.ShutdownTimeout)
}

// app bundles the wired engine with the metrics registry backing its
// collectors.
type app struct {
	engine   *engine.Engine
	registry *metric.MetricsRegistry
	cleanup  func()
}

// buildApp wires the store, dealer, fetch pipeline, and sinks. The returned
// cleanup closes everything the engine holds open.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	registry := metric.NewMetricsRegistry()

	fetchMetrics, err := fetch.NewMetrics(registry.PrometheusRegistry())
	if err != nil {
		return nil, fmt.Errorf("register fetch metrics: %w", err)
	}

	metadataCache, err := cache.NewFromConfig(ctx, cfg.Cache,
		cache.WithMetrics[thing.Thing](registry, "metadata"))
	if err != nil {
		return nil, fmt.Errorf("create metadata cache: %w", err)
	}

	policy := fetch.FromOrigins(cfg.Fetch.AllowedOrigins...)
	fetcher := fetch.NewHTTPFetcher(fetch.HTTPFetcherConfig{
		Timeout:   cfg.Fetch.Timeout,
		UserAgent: cfg.Fetch.UserAgent,
	}).WithMetrics(fetchMetrics)

	resolver := fetch.NewResolver(
		fetch.NewGate(policy),
		metadataCache,
		fetcher,
		pagemeta.New(),
		fetch.WithResolverMetrics(fetchMetrics),
		fetch.WithResolverLogger(logger),
	)

	eng, err := engine.New(engine.Deps{
		Store:    artifact.NewMemoryStore(),
		Dealer:   nearby.New(logger),
		Loader:   artifact.NewHTTPLoader(cfg.Fetch.Timeout, cfg.Fetch.UserAgent),
		Fetcher:  fetcher,
		Resolver: resolver,
		Policy:   policy,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	if err := eng.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize engine: %w", err)
	}

	cleanup := func() {
		if err := metadataCache.Close(); err != nil {
			logger.Warn("closing metadata cache failed", "error", err)
		}
	}

	if cfg.NATS.Enabled {
		publisher, err := natspub.Connect(natspub.Config{
			URL:  cfg.NATS.URL,
			Name: cfg.NATS.Name,
		}, logger)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("connect NATS publisher: %w", err)
		}
		eng.AddSink(publisher)
		prev := cleanup
		cleanup = func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("closing NATS publisher failed", "error", err)
			}
			prev()
		}
	}

	return &app{engine: eng, registry: registry, cleanup: cleanup}, nil
}

// loadCatalogs indexes the configured artifact catalogs at startup.
func loadCatalogs(ctx context.Context, eng *engine.Engine, rawURLs []string, logger *slog.Logger) error {
	for _, raw := range rawURLs {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid artifact URL %q: %w", raw, err)
		}

		var added []artifact.ARArtifact
		if strings.HasSuffix(u.Path, ".json") {
			added, err = eng.LoadArtifactsFromJSONURL(ctx, u)
		} else {
			added, err = eng.LoadArtifactsFromHTMLURL(ctx, u)
		}
		if err != nil {
			return fmt.Errorf("load artifacts from %s: %w", raw, err)
		}
		logger.Info("loaded artifact catalog", "url", raw, "artifacts", len(added))
	}
	return nil
}

// serve runs the HTTP listener until the context is cancelled, then shuts
// down gracefully.
func serve(ctx context.Context, cfg *config.Config, a *app, logger *slog.Logger, shutdownTimeout time.Duration) error {
	gatewayMetrics, err := gateway.NewMetrics(a.registry.PrometheusRegistry())
	if err != nil {
		return fmt.Errorf("register gateway metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.GatewayPath, gateway.NewServer(a.engine, logger).WithMetrics(gatewayMetrics))
	mux.Handle(cfg.Server.MetricsPath, a.registry.Handler())

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr,
			"gateway", cfg.Server.GatewayPath, "metrics", cfg.Server.MetricsPath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
