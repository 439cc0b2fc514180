package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/okian/achat/internal/domain/model"
	"github.com/okian/achat/internal/domain/optimize"
	"github.com/okian/achat/internal/domain/workload"
	"github.com/okian/achat/pkg/logger"
	"github.com/okian/achat/pkg/metrics"
)

// BatchAssignment is one dossier's place in a batch result.
type BatchAssignment struct {
	Code       string
	Buyer      string
	Complexity float64
}

// BatchResult is the outcome of OptimizeBatch.
type BatchResult struct {
	optimize.Result
	Assignments []BatchAssignment // in dossier creation order
	Workload    workload.Workload // the batch's own load per buyer, in registration order
	Applied     bool
}

// OptimizeBatch balances a set of dossiers across the team so the most
// loaded buyer carries as little of the batch as possible. With no codes
// every Draft is taken. Only the batch's own load is balanced. When apply
// is set the dossiers become Active with their new buyer.
func (s *Service) OptimizeBatch(ctx context.Context, codes []string, apply bool) (BatchResult, error) {
	requests, buyers, err := s.snapshot(ctx)
	if err != nil {
		return BatchResult{}, err
	}
	batch, err := selectBatch(requests, codes)
	if err != nil {
		return BatchResult{}, err
	}
	if len(batch) > s.maxBatchSize {
		return BatchResult{}, fmt.Errorf("%w: %d requests, limit %d", ErrBatchTooLarge, len(batch), s.maxBatchSize)
	}

	res, err := s.optimizer.Optimize(ctx, batch, buyers)
	if err != nil {
		return BatchResult{}, err
	}

	names := make([]string, len(buyers))
	for i, b := range buyers {
		names[i] = b.Name
	}
	out := BatchResult{
		Result:      res,
		Assignments: make([]BatchAssignment, len(batch)),
		Workload:    workload.FromLoads(names, res.Loads),
	}
	for i, r := range batch {
		out.Assignments[i] = BatchAssignment{Code: r.Code, Buyer: res.Assignment[r.Code], Complexity: r.Complexity}
	}
	if !apply {
		return out, nil
	}

	if _, err := s.submit(ctx, "apply_batch", func(ctx context.Context) (any, error) {
		return nil, s.applyBatch(ctx, batch, res)
	}, nil); err != nil {
		return out, err
	}
	out.Applied = true
	return out, nil
}

// selectBatch returns the requested dossiers in creation order.
func selectBatch(requests []model.Request, codes []string) ([]model.Request, error) {
	if len(codes) == 0 {
		var drafts []model.Request
		for _, r := range requests {
			if r.Status == model.StatusDraft {
				drafts = append(drafts, r)
			}
		}
		return drafts, nil
	}

	wanted := make(map[string]bool, len(codes))
	for _, c := range codes {
		wanted[c] = true
	}
	batch := make([]model.Request, 0, len(wanted))
	for _, r := range requests {
		if !wanted[r.Code] {
			continue
		}
		if r.Status.Terminal() {
			return nil, fmt.Errorf("%w: request %s is %s", model.ErrInvalidTransition, r.Code, r.Status)
		}
		batch = append(batch, r)
		delete(wanted, r.Code)
	}
	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for c := range wanted {
			missing = append(missing, c)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("request %s: %w", strings.Join(missing, ", "), ErrNotFound)
	}
	return batch, nil
}

// applyBatch writes a solved batch. It runs on the writer and refuses the
// whole batch if any dossier changed status since the snapshot.
func (s *Service) applyBatch(ctx context.Context, batch []model.Request, res optimize.Result) error {
	current := make([]model.Request, len(batch))
	for i, snap := range batch {
		r, err := s.store.Get(ctx, snap.Code)
		if err != nil {
			return err
		}
		if r.Status != snap.Status {
			return fmt.Errorf("%w: request %s moved from %s to %s", ErrBatchConflict, r.Code, snap.Status, r.Status)
		}
		current[i] = r
	}

	now := s.now()
	for _, r := range current {
		from := r.Status
		r.Buyer = res.Assignment[r.Code]
		r.Status = model.StatusActive
		r.AssignedAt = now
		if err := s.store.Upsert(ctx, r); err != nil {
			return err
		}
		if from != model.StatusActive {
			metrics.RecordStatusTransition(string(from), string(model.StatusActive))
		}
	}
	s.persist(ctx)
	s.refreshGauges(ctx)

	metrics.RecordAssignments(StrategyBatch, len(current))
	s.logger.Info(ctx, "batch applied",
		logger.String("run_id", res.RunID),
		logger.Int("requests", len(current)),
		logger.Float64("max_load", res.MaxLoad),
	)
	return nil
}
