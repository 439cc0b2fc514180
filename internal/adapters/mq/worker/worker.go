// Package worker runs the single goroutine allowed to mutate the store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/achat/internal/domain/model"
	"github.com/okian/achat/pkg/logger"
	"github.com/okian/achat/pkg/metrics"
)

// ErrStopped is delivered to mutations abandoned at shutdown.
var ErrStopped = errors.New("worker stopped")

// Mutation abstracts what the worker reads off the queue.
type Mutation = model.Mutation

// Queue defines how the worker receives mutations.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Mutation
	Len(ctx context.Context) int
}

// Worker applies queued mutations one at a time.
type Worker interface {
	// Run processes mutations until the queue is closed and drained, ctx is
	// canceled or Shutdown gives up waiting.
	Run(ctx context.Context)

	// Shutdown waits for Run to drain the queue. The queue must be closed
	// first. When ctx expires the remaining mutations fail with ErrStopped.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker is the store's single writer.
type InMemoryWorker struct {
	queue Queue
	name  string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

var _ Worker = (*InMemoryWorker)(nil)

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		name:     "writer",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "writer" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	ch := w.queue.Dequeue(ctx)
	for {
		// Stop requests win over buffered work.
		select {
		case <-ctx.Done():
			w.reject(ch, ctx.Err())
			return
		case <-w.shutdown:
			w.reject(ch, nil)
			return
		default:
		}

		select {
		case <-ctx.Done():
			w.reject(ch, ctx.Err())
			return
		case <-w.shutdown:
			w.reject(ch, nil)
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			w.process(ctx, m)
		}
	}
}

// Shutdown waits for the worker to finish.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
	}

	w.logger.Warn(ctx, "shutdown timed out, abandoning queued mutations",
		logger.Int("pending", w.queue.Len(ctx)))
	close(w.shutdown)
	<-w.done
	return fmt.Errorf("shutdown timed out: %w", ctx.Err())
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, m Mutation) { //nolint:gocritic // hugeParam: passed by value for channel semantics
	metrics.RecordQueueDequeue()
	w.queue.Len(ctx)

	value, err := w.apply(ctx, m)
	if !m.EnqueuedAt.IsZero() {
		metrics.RecordMutationLatency(float64(time.Since(m.EnqueuedAt).Microseconds()) / 1000.0)
	}
	if err != nil {
		metrics.RecordMutationError()
		metrics.RecordErrorByComponent("worker", m.Name)
		w.logger.Debug(ctx, "mutation failed",
			logger.String("mutation", m.Name),
			logger.String("id", m.ID),
			logger.Error(err),
		)
	}
	reply(m, model.MutationResult{Value: value, Err: err})
}

// apply runs the mutation, turning a panic into an error so one bad
// mutation cannot stop the writer.
func (w *InMemoryWorker) apply(ctx context.Context, m Mutation) (value any, err error) { //nolint:gocritic // hugeParam
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByType("mutation_panic", "high")
			w.logger.Error(ctx, "mutation panicked",
				logger.String("mutation", m.Name),
				logger.Any("panic", r),
			)
			err = fmt.Errorf("mutation %s panicked: %v", m.Name, r)
		}
	}()
	if m.Apply == nil {
		return nil, fmt.Errorf("mutation %s has no apply function", m.Name)
	}
	return m.Apply(ctx)
}

// reject fails every mutation still buffered in ch.
func (w *InMemoryWorker) reject(ch <-chan Mutation, cause error) {
	err := ErrStopped
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrStopped, cause)
	}
	for {
		select {
		case m, ok := <-ch:
			if !ok {
				return
			}
			reply(m, model.MutationResult{Err: err})
		default:
			return
		}
	}
}

// reply never blocks; callers allocate Reply with capacity 1.
func reply(m Mutation, res model.MutationResult) { //nolint:gocritic // hugeParam
	if m.Reply == nil {
		return
	}
	select {
	case m.Reply <- res:
	default:
	}
}
