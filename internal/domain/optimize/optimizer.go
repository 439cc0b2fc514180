package optimize

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okian/achat/internal/domain/model"
	"github.com/okian/achat/pkg/logger"
	"github.com/okian/achat/pkg/metrics"
)

// DefaultTimeLimit bounds a solver run.
const DefaultTimeLimit = 30 * time.Second

// Result is a solved batch.
type Result struct {
	Solution
	RunID    string
	Solver   string
	Duration time.Duration
}

// Optimizer runs a Solver over a batch of dossiers under a time limit.
type Optimizer struct {
	solver    Solver
	timeLimit time.Duration
	logger    logger.Logger
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithSolver selects the solver. Defaults to BranchAndBound.
func WithSolver(s Solver) Option {
	return func(o *Optimizer) {
		if s != nil {
			o.solver = s
		}
	}
}

// WithTimeLimit sets the wall-clock limit of one run.
func WithTimeLimit(d time.Duration) Option {
	return func(o *Optimizer) {
		if d > 0 {
			o.timeLimit = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Optimizer) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOptimizer creates an optimizer with the exact solver and a 30s limit.
func NewOptimizer(opts ...Option) *Optimizer {
	o := &Optimizer{
		solver:    BranchAndBound{},
		timeLimit: DefaultTimeLimit,
		logger:    logger.Get().Named("optimizer"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SolverName returns the configured solver's name.
func (o *Optimizer) SolverName() string { return o.solver.Name() }

// Optimize assigns every request to one buyer minimising the maximum load.
// Only the batch itself is balanced; loads already carried by buyers are
// not included. A run cut short by the time limit returns the best
// schedule found with StatusApproximate.
func (o *Optimizer) Optimize(ctx context.Context, requests []model.Request, buyers []model.Buyer) (Result, error) {
	res := Result{RunID: uuid.NewString(), Solver: o.solver.Name()}

	p := Problem{
		Jobs:   make([]Job, len(requests)),
		Buyers: make([]string, len(buyers)),
	}
	for i, r := range requests {
		p.Jobs[i] = Job{ID: r.Code, Load: r.Complexity}
	}
	for i, b := range buyers {
		p.Buyers[i] = b.Name
	}

	if err := p.Validate(); err != nil {
		metrics.RecordBatchFailure(res.Solver)
		o.logger.Warn(ctx, "batch rejected",
			logger.String("run_id", res.RunID),
			logger.Error(err),
		)
		return res, err
	}

	runCtx, cancel := context.WithTimeout(ctx, o.timeLimit)
	defer cancel()

	start := time.Now()
	sol, err := o.solver.Solve(runCtx, p)
	res.Duration = time.Since(start)
	if err != nil {
		metrics.RecordBatchFailure(res.Solver)
		o.logger.Error(ctx, "solver failed",
			logger.String("run_id", res.RunID),
			logger.String("solver", res.Solver),
			logger.Error(err),
		)
		return res, fmt.Errorf("%w: solver %s: %w", ErrBatchInfeasible, res.Solver, err)
	}
	res.Solution = sol

	metrics.RecordBatchRun(res.Solver, string(sol.Status), len(p.Jobs),
		float64(res.Duration.Microseconds())/1000.0, sol.MaxLoad)

	fields := []logger.Field{
		logger.String("run_id", res.RunID),
		logger.String("solver", res.Solver),
		logger.String("status", string(sol.Status)),
		logger.Int("requests", len(p.Jobs)),
		logger.Int("buyers", len(p.Buyers)),
		logger.Float64("max_load", sol.MaxLoad),
		logger.Float64("lower_bound", p.LowerBound()),
		logger.Duration("took", res.Duration),
	}
	if sol.Status == StatusApproximate {
		o.logger.Warn(ctx, "batch solved without optimality proof", fields...)
	} else {
		o.logger.Info(ctx, "batch solved", fields...)
	}
	return res, nil
}
