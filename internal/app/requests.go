package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/achat/internal/domain/assign"
	"github.com/okian/achat/internal/domain/model"
	"github.com/okian/achat/internal/domain/scoring"
	"github.com/okian/achat/internal/domain/workload"
	"github.com/okian/achat/pkg/logger"
	"github.com/okian/achat/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Assignment strategies, used as metric labels.
const (
	StrategyGreedy = "greedy"
	StrategyManual = "manual"
	StrategyBatch  = "batch"
)

// NewRequest is the input of CreateRequest.
type NewRequest struct {
	// Code is generated as DA-YYYYMMDD-NNN when empty.
	Code             string
	Description      string
	Type             model.RequestType
	Articles         int
	ForeignSuppliers int
	TotalSuppliers   int
	EffortLevel      int
	TenderType       string
	Currency         string
	EstimatedAmount  decimal.Decimal

	// Buyer assigns the dossier to a named buyer. Otherwise AutoAssign
	// picks one greedily, and with neither the dossier stays a Draft.
	Buyer      string
	AutoAssign bool
}

func (n *NewRequest) input() scoring.Input {
	return scoring.Input{
		Type:             n.Type,
		Articles:         n.Articles,
		ForeignSuppliers: n.ForeignSuppliers,
		TotalSuppliers:   n.TotalSuppliers,
		EffortLevel:      n.EffortLevel,
	}
}

// Preview is the score of a prospective dossier and where it would go.
type Preview struct {
	Complexity  float64
	Suggested   string
	Projections []assign.Projection
	Warnings    []string
}

// RequestFilter narrows Requests. Zero fields match everything.
type RequestFilter struct {
	Status model.Status
	Buyer  string
	Type   model.RequestType
}

func (f RequestFilter) match(r *model.Request) bool {
	return (f.Status == "" || r.Status == f.Status) &&
		(f.Buyer == "" || r.Buyer == f.Buyer) &&
		(f.Type == "" || r.Type == f.Type)
}

// validate normalizes n and returns non-fatal warnings.
func (s *Service) validate(ctx context.Context, n *NewRequest) ([]string, error) {
	t, err := model.ParseRequestType(string(n.Type))
	if err != nil {
		return nil, fmt.Errorf("%w: type %q: %w", ErrInvalidRequest, n.Type, err)
	}
	n.Type = t

	var warnings []string
	if err := scoring.Validate(n.input()); err != nil {
		if !errors.Is(err, scoring.ErrInconsistentSuppliers) {
			return nil, err
		}
		// Kept as a warning: the scorer raises the total to the foreign count.
		warnings = append(warnings, err.Error())
		s.logger.Warn(ctx, "supplier totals corrected",
			logger.Int("foreign", n.ForeignSuppliers),
			logger.Int("total", n.TotalSuppliers),
		)
	}

	n.Currency = strings.TrimSpace(n.Currency)
	if n.Currency == "" {
		n.Currency = model.DefaultCurrency
	}
	if !model.ValidCurrency(n.Currency) {
		return nil, fmt.Errorf("%w: unknown currency %q", ErrInvalidRequest, n.Currency)
	}
	if !model.ValidTenderType(n.TenderType) {
		return nil, fmt.Errorf("%w: unknown tender type %q", ErrInvalidRequest, n.TenderType)
	}
	if n.EstimatedAmount.IsNegative() {
		return nil, fmt.Errorf("%w: estimated amount must not be negative", ErrInvalidRequest)
	}
	return warnings, nil
}

// Preview scores a prospective dossier and shows where greedy assignment
// would place it. An empty team yields no suggestion rather than an error.
func (s *Service) Preview(ctx context.Context, n NewRequest) (Preview, error) {
	warnings, err := s.validate(ctx, &n)
	if err != nil {
		return Preview{}, err
	}
	requests, buyers, err := s.snapshot(ctx)
	if err != nil {
		return Preview{}, err
	}

	p := Preview{Complexity: s.scorer.Score(n.input()), Warnings: warnings}
	w := workload.Total(requests, buyers)
	if w.Len() == 0 {
		return p, nil
	}
	if p.Projections, err = assign.Projected(p.Complexity, w); err != nil {
		return Preview{}, err
	}
	if p.Suggested, err = assign.Greedy(p.Complexity, w); err != nil {
		return Preview{}, err
	}
	return p, nil
}

// CreateRequest scores and stores a new dossier. The score is computed once
// here and never recomputed.
func (s *Service) CreateRequest(ctx context.Context, n NewRequest) (model.Request, error) {
	if _, err := s.validate(ctx, &n); err != nil {
		return model.Request{}, err
	}
	if !s.isStarted() {
		return model.Request{}, ErrNotStarted
	}

	now := s.now()
	code := strings.TrimSpace(n.Code)
	if code == "" {
		code = s.reserver.Next(ctx, now)
	} else if s.reserver.Reserve(ctx, code) {
		metrics.RecordErrorByComponent("service", "duplicate_request")
		return model.Request{}, fmt.Errorf("request %s: %w", code, ErrDuplicateRequest)
	}
	release := func() { s.reserver.Release(ctx, code) }

	r := model.Request{
		Code:             code,
		Description:      strings.TrimSpace(n.Description),
		Type:             n.Type,
		Articles:         n.Articles,
		ForeignSuppliers: n.ForeignSuppliers,
		TotalSuppliers:   n.TotalSuppliers,
		EffortLevel:      n.EffortLevel,
		Status:           model.StatusDraft,
		Complexity:       s.scorer.Score(n.input()),
		TenderType:       n.TenderType,
		Currency:         n.Currency,
		EstimatedAmount:  n.EstimatedAmount,
	}
	buyer := strings.TrimSpace(n.Buyer)

	v, err := s.submit(ctx, "create_request", func(ctx context.Context) (any, error) {
		strategy := ""
		switch {
		case buyer != "":
			if _, err := s.store.GetBuyer(ctx, buyer); err != nil {
				release()
				return nil, fmt.Errorf("%w: %s", ErrUnknownBuyer, buyer)
			}
			r.Buyer, strategy = buyer, StrategyManual
		case n.AutoAssign:
			chosen, err := s.greedy(ctx, r.Complexity)
			if err != nil {
				release()
				return nil, err
			}
			r.Buyer, strategy = chosen, StrategyGreedy
		}
		if r.Buyer != "" {
			r.Status = model.StatusActive
			r.AssignedAt = now
		}

		if err := s.store.Insert(ctx, r); err != nil {
			release()
			return nil, err
		}
		s.persist(ctx)
		s.refreshGauges(ctx)

		metrics.RecordRequestCreated(string(r.Type), string(r.Status), r.Complexity)
		if strategy != "" {
			metrics.RecordAssignment(strategy)
		}
		s.logger.Info(ctx, "request created",
			logger.String("code", r.Code),
			logger.String("type", string(r.Type)),
			logger.Float64("complexity", r.Complexity),
			logger.String("buyer", r.Buyer),
			logger.String("strategy", strategy),
		)
		return r, nil
	}, release)
	if err != nil {
		return model.Request{}, err
	}
	return v.(model.Request), nil
}

// greedy picks a buyer against the current store. Runs on the writer.
func (s *Service) greedy(ctx context.Context, score float64) (string, error) {
	requests, err := s.store.List(ctx)
	if err != nil {
		return "", err
	}
	buyers, err := s.store.ListBuyers(ctx)
	if err != nil {
		return "", err
	}
	return assign.Greedy(score, workload.Total(requests, buyers))
}

// UpdateStatus moves a dossier through its lifecycle. Activating a Draft
// without a buyer assigns one greedily; Closed and Cancelled set ClosedAt.
func (s *Service) UpdateStatus(ctx context.Context, code string, to model.Status) (model.Request, error) {
	v, err := s.submit(ctx, "update_status", func(ctx context.Context) (any, error) {
		r, err := s.store.Get(ctx, code)
		if err != nil {
			return nil, err
		}
		from := r.Status
		if !model.CanTransition(from, to) {
			return nil, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, from, to)
		}

		now := s.now()
		if to == model.StatusActive && r.Buyer == "" {
			chosen, err := s.greedy(ctx, r.Complexity)
			if err != nil {
				return nil, err
			}
			r.Buyer, r.AssignedAt = chosen, now
			metrics.RecordAssignment(StrategyGreedy)
		}
		if to.Terminal() {
			r.ClosedAt = &now
		}
		r.Status = to

		if err := s.store.Upsert(ctx, r); err != nil {
			return nil, err
		}
		s.persist(ctx)
		s.refreshGauges(ctx)

		metrics.RecordStatusTransition(string(from), string(to))
		s.logger.Info(ctx, "status changed",
			logger.String("code", code),
			logger.String("from", string(from)),
			logger.String("to", string(to)),
			logger.String("buyer", r.Buyer),
		)
		return r, nil
	}, nil)
	if err != nil {
		return model.Request{}, err
	}
	return v.(model.Request), nil
}

// Requests lists dossiers in creation order.
func (s *Service) Requests(ctx context.Context, f RequestFilter) ([]model.Request, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Request, 0, len(all))
	for i := range all {
		if f.match(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// Request returns one dossier.
func (s *Service) Request(ctx context.Context, code string) (model.Request, error) {
	if !s.isStarted() {
		return model.Request{}, ErrNotStarted
	}
	return s.store.Get(ctx, code)
}

// Workload returns the active load of every buyer.
func (s *Service) Workload(ctx context.Context) (workload.Workload, error) {
	requests, buyers, err := s.snapshot(ctx)
	if err != nil {
		return workload.Workload{}, err
	}
	return workload.Total(requests, buyers), nil
}
