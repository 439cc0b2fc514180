// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
//
// Every write goes through a bounded queue consumed by a single writer
// goroutine, so store mutations never interleave. Reads take snapshots
// from the store directly.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	mutationqueue "github.com/okian/achat/internal/adapters/mq/queue"
	"github.com/okian/achat/internal/adapters/mq/worker"
	"github.com/okian/achat/internal/adapters/repository"
	"github.com/okian/achat/internal/domain/dedupe"
	"github.com/okian/achat/internal/domain/model"
	"github.com/okian/achat/internal/domain/optimize"
	"github.com/okian/achat/internal/domain/scoring"
	"github.com/okian/achat/internal/domain/workload"
	"github.com/okian/achat/pkg/logger"
	"github.com/okian/achat/pkg/metrics"
)

const (
	defaultQueueSize    = 1024
	defaultMaxBatchSize = 200
	shutdownTimeout     = 10 * time.Second
)

// Service implements the API dependencies for dossier assignment.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	reserver  dedupe.Reserver
	queue     mutationqueue.Queue
	writer    *worker.InMemoryWorker
	scorer    *scoring.Scorer
	optimizer *optimize.Optimizer

	// Configuration
	queueSize    int
	maxBatchSize int
	now          func() time.Time

	// State
	started bool
	cancel  context.CancelFunc

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the dossier and buyer store. Defaults to an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithQueueSize sets the maximum number of pending mutations.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithMaxBatchSize caps the number of dossiers in one batch optimization.
func WithMaxBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.maxBatchSize = size
		}
	}
}

// WithScorer sets the complexity scorer.
func WithScorer(scorer *scoring.Scorer) Option {
	return func(s *Service) {
		if scorer != nil {
			s.scorer = scorer
		}
	}
}

// WithOptimizer sets the batch optimizer.
func WithOptimizer(o *optimize.Optimizer) Option {
	return func(s *Service) {
		if o != nil {
			s.optimizer = o
		}
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize:    defaultQueueSize,
		maxBatchSize: defaultMaxBatchSize,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.scorer == nil {
		s.scorer = scoring.Default()
	}
	if s.optimizer == nil {
		s.optimizer = optimize.NewOptimizer()
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting assignment service...")

	requests, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load requests: %w", err)
	}
	codes := make([]string, len(requests))
	for i, r := range requests {
		codes[i] = r.Code
	}
	s.reserver = dedupe.NewInMemoryReserver(dedupe.WithCodes(codes...))

	s.queue = mutationqueue.NewInMemoryQueue(mutationqueue.WithCapacity(s.queueSize))
	s.writer = worker.NewInMemoryWorker(s.queue, worker.WithLogger(s.logger.Named("writer")))

	// The writer outlives the start context; Stop ends it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.writer.Run(runCtx)

	s.refreshGauges(ctx)
	s.started = true
	s.logger.Info(ctx, "assignment service started",
		logger.Int("requests", len(requests)),
		logger.Int("queueSize", s.queueSize),
		logger.String("solver", s.optimizer.SolverName()),
	)
	return nil
}

// Stop drains pending mutations, then closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping assignment service...")

	_ = s.queue.Close()
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	if err := s.writer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "writer did not drain", logger.Error(err))
	}
	cancel()
	s.cancel()

	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "closing store failed", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "assignment service stopped")
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// submit runs apply on the writer goroutine and waits for its result.
// rejected, if set, runs when the mutation never reaches the writer.
// A caller whose ctx ends while waiting gets ctx.Err(); the mutation may
// still be applied.
func (s *Service) submit(ctx context.Context, name string, apply func(context.Context) (any, error), rejected func()) (any, error) {
	s.mu.RLock()
	started, q := s.started, s.queue
	s.mu.RUnlock()

	fail := func(err error) (any, error) {
		if rejected != nil {
			rejected()
		}
		return nil, err
	}
	if !started {
		return fail(ErrNotStarted)
	}

	reply := make(chan model.MutationResult, 1)
	m := model.Mutation{
		ID:         uuid.NewString(),
		Name:       name,
		Apply:      apply,
		Reply:      reply,
		EnqueuedAt: time.Now(),
	}
	if !q.Enqueue(ctx, m) {
		switch {
		case ctx.Err() != nil:
			return fail(ctx.Err())
		case q.IsClosed():
			return fail(ErrNotStarted)
		default:
			s.logger.Warn(ctx, "mutation rejected, queue full",
				logger.String("mutation", name),
				logger.Int("capacity", q.Cap()),
			)
			return fail(ErrBackpressure)
		}
	}

	select {
	case res := <-reply:
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// persist flushes the store. A failed flush is logged and retried on the
// next one; the in-memory state stays authoritative.
func (s *Service) persist(ctx context.Context) {
	if err := s.store.Persist(ctx); err != nil {
		metrics.RecordErrorByComponent("service", "persist")
		s.logger.Error(ctx, "persist failed", logger.Error(err))
	}
}

// refreshGauges republishes workload gauges from the store.
func (s *Service) refreshGauges(ctx context.Context) {
	requests, err := s.store.List(ctx)
	if err != nil {
		return
	}
	buyers, err := s.store.ListBuyers(ctx)
	if err != nil {
		return
	}
	w := workload.Total(requests, buyers)
	metrics.UpdateBuyerWorkloads(w.Map())

	active := 0
	for i := range requests {
		if requests[i].Status == model.StatusActive {
			active++
		}
	}
	metrics.UpdateActiveRequests(active)
}

// snapshot reads requests and buyers.
func (s *Service) snapshot(ctx context.Context) ([]model.Request, []model.Buyer, error) {
	if !s.isStarted() {
		return nil, nil, ErrNotStarted
	}
	requests, err := s.store.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	buyers, err := s.store.ListBuyers(ctx)
	if err != nil {
		return nil, nil, err
	}
	return requests, buyers, nil
}
