package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"

	"github.com/dharma/events-api-go/eventstore"
	"github.com/dharma/events-api-go/eventstore/memengine"
	"github.com/dharma/events-api-go/eventstore/oteladapters"
	"github.com/dharma/events-api-go/eventstore/postgresengine"
	"github.com/dharma/events-api-go/eventstore/promadapters"
	"github.com/dharma/events-api-go/example/demo/config"
)

const instrumentationName = "eventstore-load-generator"

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config file, built-in defaults if empty")
	rate := flag.Int("rate", 0, "Operations per second, overrides load.rate")
	duration := flag.Duration("duration", 0, "Stop after this long, overrides load.duration")
	flag.Parse()

	cfg, err := loadConfig(*cfgPath, *rate, *duration)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := newLogger(cfg.Observability.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	obs, registry := newObservability(cfg.Observability, logger)

	backend, closeBackend, err := newBackend(ctx, cfg, obs)
	if err != nil {
		log.Fatalf("create backend: %v", err)
	}
	defer closeBackend()

	service, err := eventstore.NewService(backend, obs.serviceOptions()...)
	if err != nil {
		log.Fatalf("create service: %v", err)
	}

	var server *metricsServer
	if registry != nil {
		server = newMetricsServer(cfg.Server, registry)
		go func() {
			logger.Info("serving /metrics", "address", cfg.Server.ListenAddress)
			if serveErr := server.Serve(); serveErr != nil {
				logger.Error("metrics server stopped", "error", serveErr.Error())
			}
		}()
	}

	logger.Info("load generator started",
		"engine", cfg.Engine,
		"rate", cfg.Load.Rate,
		"max_in_flight", cfg.Load.MaxInFlight,
		"duration", cfg.Load.Duration.String(),
	)

	runErr := NewLoadGenerator(service, cfg, obs.metricsCollector, logger).Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("load generator failed", "error", runErr.Error())
	}

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("metrics server shutdown failed", "error", shutdownErr.Error())
		}
	}
}

func loadConfig(path string, rate int, duration time.Duration) (*config.Config, error) {
	cfg := config.Default()

	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if rate > 0 {
		cfg.Load.Rate = rate
	}
	if duration > 0 {
		cfg.Load.Duration = duration
	}

	return cfg, cfg.Validate()
}

func newLogger(level string) *slog.Logger {
	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		slogLevel = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel}))
}

// observability holds the adapters handed to the Service, the Backend and the load generator.
type observability struct {
	logger           *slog.Logger
	contextualLogger eventstore.ContextualLogger
	metricsCollector eventstore.MetricsCollector
	tracingCollector eventstore.TracingCollector
}

// newObservability builds the adapters. Prometheus metrics win over OTel metrics when both are enabled,
// OTel still provides tracing and the log bridge then. The returned registry is nil without Prometheus.
func newObservability(cfg config.Observability, logger *slog.Logger) (observability, *prometheus.Registry) {
	obs := observability{logger: logger}

	if cfg.OTel {
		obs.metricsCollector = oteladapters.NewMetricsCollector(otel.Meter(instrumentationName))
		obs.tracingCollector = oteladapters.NewTracingCollector(otel.Tracer(instrumentationName))
		obs.contextualLogger = oteladapters.NewSlogBridgeLogger(instrumentationName)
	}

	if !cfg.Prometheus {
		return obs, nil
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	obs.metricsCollector = promadapters.NewMetricsCollector(registry)

	return obs, registry
}

func (o observability) serviceOptions() []eventstore.Option {
	options := []eventstore.Option{eventstore.WithLogger(o.logger)}

	if o.contextualLogger != nil {
		options = append(options, eventstore.WithContextualLogger(o.contextualLogger))
	}
	if o.metricsCollector != nil {
		options = append(options, eventstore.WithMetrics(o.metricsCollector))
	}
	if o.tracingCollector != nil {
		options = append(options, eventstore.WithTracing(o.tracingCollector))
	}

	return options
}

func (o observability) postgresOptions() []postgresengine.Option {
	options := []postgresengine.Option{postgresengine.WithLogger(o.logger)}

	if o.contextualLogger != nil {
		options = append(options, postgresengine.WithContextualLogger(o.contextualLogger))
	}
	if o.metricsCollector != nil {
		options = append(options, postgresengine.WithMetrics(o.metricsCollector))
	}
	if o.tracingCollector != nil {
		options = append(options, postgresengine.WithTracing(o.tracingCollector))
	}

	return options
}

// newBackend creates the configured storage engine and a function that releases its connections.
func newBackend(ctx context.Context, cfg *config.Config, obs observability) (eventstore.Backend, func(), error) {
	if cfg.Engine == config.EngineMemory {
		backend, err := memengine.NewBackend(memengine.WithLogger(obs.logger))

		return backend, func() {}, err
	}

	primary, err := newPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		return nil, nil, err
	}

	var backend *postgresengine.Backend
	closeAll := primary.Close

	if cfg.Postgres.ReplicaDSN != "" {
		replica, replicaErr := newPool(ctx, cfg.Postgres.ReplicaDSN, cfg.Postgres.MaxConns)
		if replicaErr != nil {
			primary.Close()
			return nil, nil, replicaErr
		}

		closeAll = func() {
			replica.Close()
			primary.Close()
		}
		backend, err = postgresengine.NewBackendFromPGXPoolAndReplica(primary, replica, obs.postgresOptions()...)
	} else {
		backend, err = postgresengine.NewBackendFromPGXPool(primary, obs.postgresOptions()...)
	}

	if err != nil {
		closeAll()
		return nil, nil, err
	}

	if cfg.Postgres.CreateSchema {
		if err = backend.CreateSchema(ctx); err != nil {
			closeAll()
			return nil, nil, err
		}
	}

	return backend, closeAll, nil
}

func newPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}
