package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/achat/internal/adapters/http/api"
	"github.com/okian/achat/internal/adapters/http/swagger"
	"github.com/okian/achat/internal/adapters/repository"
	app "github.com/okian/achat/internal/app"
	"github.com/okian/achat/internal/config"
	"github.com/okian/achat/internal/domain/model"
	"github.com/okian/achat/internal/domain/optimize"
	"github.com/okian/achat/internal/domain/scoring"
	"github.com/okian/achat/pkg/logger"
	"github.com/okian/achat/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	requestGrace              = 10 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.InitWith(os.Stdout, logger.Format(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "achat stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

// run starts the service and the HTTP server and blocks until ctx ends.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	svc := newService(cfg, store, log)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.SolverTimeLimit() + 2*requestGrace,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})
	g.Go(func() error {
		startServiceMetricsUpdater(gctx, svc)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	log.Info(context.Background(), "server stopped")
	return err
}

// newStore opens the CSV store in the data directory, or a memory store
// when persistence is off.
func newStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if !cfg.Persist {
		return repository.NewMemoryStore(), nil
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := repository.NewCSVStore(ctx, cfg.DataDir,
		repository.WithLogger(logger.Get().Named("store")),
		repository.WithFlushInterval(cfg.FlushInterval()),
	)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

func newService(cfg *config.Config, store repository.Store, log logger.Logger) *app.Service {
	var solver optimize.Solver = optimize.BranchAndBound{}
	if cfg.Solver == config.SolverLPT {
		solver = optimize.LPT{}
	}
	return app.New(
		app.WithLogger(log.Named("service")),
		app.WithStore(store),
		app.WithQueueSize(cfg.QueueSize),
		app.WithMaxBatchSize(cfg.MaxBatchSize),
		app.WithScorer(newScorer(cfg)),
		app.WithOptimizer(optimize.NewOptimizer(
			optimize.WithSolver(solver),
			optimize.WithTimeLimit(cfg.SolverTimeLimit()),
			optimize.WithLogger(log.Named("optimizer")),
		)),
	)
}

// newScorer applies the configured soft limit and table overrides.
func newScorer(cfg *config.Config) *scoring.Scorer {
	opts := []scoring.Option{scoring.WithSoftLimit(cfg.SoftLimit)}
	for name, p := range cfg.TypeParams {
		t, err := model.ParseRequestType(name)
		if err != nil {
			continue
		}
		opts = append(opts, scoring.WithTypeParams(t, scoring.Params{Base: p.Base, A: p.A, B: p.B}))
	}
	if table := cfg.Effort(); len(table) > 0 {
		opts = append(opts, scoring.WithEffortTable(table))
	}
	return scoring.NewScorer(opts...)
}

// newHandler builds the business API router and mounts the API document.
func newHandler(ctx context.Context, cfg *config.Config, svc *app.Service) http.Handler {
	r := api.NewServer(svc, api.WithRequestTimeout(cfg.SolverTimeLimit()+requestGrace)).Router(ctx)
	swagger.Register(ctx, r)
	return r
}

// startSystemMetricsUpdater updates system metrics until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater republishes queue gauges until ctx ends.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

func updateServiceMetrics(ctx context.Context, svc *app.Service) {
	st, err := svc.Stats(ctx)
	if err != nil || !st.Started {
		return
	}
	metrics.UpdateQueueSize(st.QueueLength)
	metrics.UpdateQueueCapacity(st.QueueCapacity)
	metrics.UpdateActiveRequests(st.ByStatus[model.StatusActive])
}
