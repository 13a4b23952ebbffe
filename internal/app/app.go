// Package app assembles the shared runtime of every ecoroute binary from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiroonigami23-ui/ecoroute/internal/api"
	"github.com/shiroonigami23-ui/ecoroute/internal/config"
	"github.com/shiroonigami23-ui/ecoroute/internal/logging"
	"github.com/shiroonigami23-ui/ecoroute/internal/metrics"
	"github.com/shiroonigami23-ui/ecoroute/internal/mq"
	"github.com/shiroonigami23-ui/ecoroute/internal/orchestrator"
	"github.com/shiroonigami23-ui/ecoroute/internal/storage"
	"github.com/shiroonigami23-ui/ecoroute/internal/telemetry"
)

// Runtime carries the collaborators one service needs. Start fills it from the
// environment; tests build it directly.
type Runtime struct {
	Service   string
	Config    config.Config
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Telemetry *telemetry.Provider
	Queue     mq.Queue
	Store     storage.Store
	Pool      *pgxpool.Pool

	closers []func()
}

// Start loads and validates configuration and opens the queue and store.
// Errors here are the only ones a service exits on.
func Start(ctx context.Context, service string) (*Runtime, error) {
	cfg := config.Load()
	logger := logging.Setup(service)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s configuration: %w", service, err)
	}

	rt := &Runtime{
		Service: service,
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(service),
	}

	tp, err := telemetry.Init(ctx, service, cfg.OTelEndpoint, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("%s telemetry: %w", service, err)
	}
	rt.Telemetry = tp
	rt.onClose(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	})

	rt.openQueue(ctx)
	if err := rt.openStore(ctx); err != nil {
		rt.Close()
		return nil, err
	}

	logger.Info("service starting", "queue_backend", cfg.QueueBackend, "store_driver", cfg.StoreDriver, "reasoner", cfg.Reasoner)
	return rt, nil
}

func (rt *Runtime) openQueue(ctx context.Context) {
	switch rt.Config.QueueBackend {
	case "kafka":
		q := mq.NewKafkaQueue(rt.Config.KafkaBrokers, rt.Config.KafkaGroupPrefix+"-"+rt.Service)
		rt.Queue = q
		rt.onClose(func() { _ = q.Close() })
	default:
		q := mq.NewRedisQueue(mq.NewRedisClient(rt.Config.RedisAddr, rt.Config.RedisPassword, rt.Config.RedisDB))
		if err := q.Ping(ctx); err != nil {
			rt.Logger.Warn("redis not reachable yet, workers will retry", "addr", rt.Config.RedisAddr, "error", err)
		}
		rt.Queue = q
		rt.onClose(func() { _ = q.Close() })
	}
}

func (rt *Runtime) openStore(ctx context.Context) error {
	if rt.Config.StoreDriver == "memory" {
		rt.Store = storage.NewMemoryStore()
		return nil
	}

	pool, err := storage.Open(ctx, rt.Config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("%s database: %w", rt.Service, err)
	}
	rt.onClose(pool.Close)

	if err := storage.RunMigrations(ctx, pool); err != nil {
		return fmt.Errorf("%s migrations: %w", rt.Service, err)
	}
	rt.Pool = pool
	rt.Store = storage.NewRepository(pool)
	return nil
}

func (rt *Runtime) onClose(fn func()) {
	rt.closers = append(rt.closers, fn)
}

func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

func (rt *Runtime) Publisher() *orchestrator.Publisher {
	return orchestrator.NewPublisher(rt.Queue, rt.Metrics)
}

func (rt *Runtime) Worker(name string, handler orchestrator.Handler, topics ...string) *orchestrator.Worker {
	return &orchestrator.Worker{
		Name:         name,
		Queue:        rt.Queue,
		Topics:       topics,
		Handler:      handler,
		PollTimeout:  rt.Config.PollTimeout,
		RetryBackoff: rt.Config.QueueRetryBackoff,
		ErrorPause:   rt.Config.TaskErrorPause,
		Logger:       rt.Logger.With("stage", name),
		Metrics:      rt.Metrics,
		Tracer:       rt.tracer(),
	}
}

func (rt *Runtime) ServeMetrics(ctx context.Context) {
	if rt.Config.MetricsAddr == "" {
		return
	}
	go func() {
		if err := Serve(ctx, rt.Config.MetricsAddr, api.NewMetricsRouter(rt.Service, rt.Metrics), rt.Logger); err != nil {
			rt.Logger.Error("metrics server failed", "error", err)
		}
	}()
}

// Serve runs an HTTP server until ctx ends, then drains it.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("http listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
