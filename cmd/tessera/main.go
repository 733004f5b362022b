// Package main is the entry point for the Tessera workflow engine daemon.
// It loads and publishes the default model version, wires the stores and
// services together, and serves health and metrics endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tessera-io/tessera"
	"github.com/tessera-io/tessera/internal/config"
	"github.com/tessera-io/tessera/internal/definition"
	"github.com/tessera-io/tessera/internal/instance"
	"github.com/tessera-io/tessera/internal/observability"
	"github.com/tessera-io/tessera/internal/stepver"
	"github.com/tessera-io/tessera/internal/trigger"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "tessera", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observability.InitMetrics(registry)

	instStore, verStore, storeCloser, err := buildStores(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("store initialization failed", zap.Error(err))
		return 1
	}

	var messenger trigger.Messenger
	if cfg.Messaging.Enabled {
		messenger = trigger.NewLogMessenger(logger.Named("messaging"), cfg.Messaging.From)
	}

	engine := tessera.New(tessera.Options{
		Logger:        logger,
		InstanceStore: instStore,
		VersionStore:  verStore,
		Messenger:     messenger,
	})

	if err := publishDefaultModel(engine, cfg, logger); err != nil {
		logger.Error("model loading failed", zap.Error(err))
		return 1
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if len(engine.ListModelVersions()) == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ready")
	})
	if cfg.Observability.Metrics.Enabled {
		mux.Handle(cfg.Observability.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("engine started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Strings("modelVersions", engine.ListModelVersions()),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if storeCloser != nil {
		storeCloser()
	}

	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// publishDefaultModel loads the configured model directories, validates the
// result, and publishes it under the default version key.
func publishDefaultModel(engine *tessera.Engine, cfg *config.Config, logger *zap.Logger) error {
	docs, err := definition.NewLoader().Load(
		definition.DirSource{Directories: cfg.Models.Directories})
	if err != nil {
		return err
	}
	snap, err := definition.BuildSnapshot(docs)
	if err != nil {
		return err
	}

	verrs := definition.NewValidator().Validate(snap)
	for _, ve := range verrs {
		logger.Warn("model validation finding", zap.String("finding", ve.Error()))
	}
	if len(verrs) > 0 && cfg.Models.StrictValidation {
		return fmt.Errorf("model validation failed with %d findings", len(verrs))
	}

	engine.PublishSnapshot(definition.DefaultVersion, snap)
	return nil
}

// buildStores creates the instance and step-version stores based on config.
func buildStores(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (instance.Store, stepver.VersionStore, func(), error) {
	switch cfg.Driver {
	case "memory", "":
		logger.Info("using in-memory stores")
		return instance.NewMemoryStore(), stepver.NewMemoryVersionStore(), nil, nil
	case "postgres":
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			return nil, nil, nil, fmt.Errorf("store: %s environment variable not set", cfg.DSNEnv)
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("store: parse DSN: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("store: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("store: ping: %w", err)
		}

		return instance.NewPgStore(pool), stepver.NewPgVersionStore(pool), pool.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported store driver: %q", cfg.Driver)
	}
}
