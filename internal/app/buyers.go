package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/okian/achat/internal/domain/model"
	"github.com/okian/achat/internal/domain/workload"
	"github.com/okian/achat/pkg/logger"
)

// AddBuyer registers a buyer at the end of the tie-break order.
func (s *Service) AddBuyer(ctx context.Context, name, email string) (model.Buyer, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" {
		return model.Buyer{}, fmt.Errorf("%w: name is required", ErrInvalidBuyer)
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return model.Buyer{}, fmt.Errorf("%w: email %q: %w", ErrInvalidBuyer, email, err)
		}
	}

	v, err := s.submit(ctx, "add_buyer", func(ctx context.Context) (any, error) {
		b, err := s.store.AddBuyer(ctx, name, email)
		if err != nil {
			return nil, err
		}
		s.persist(ctx)
		s.refreshGauges(ctx)
		s.logger.Info(ctx, "buyer registered", logger.String("buyer", b.Name))
		return b, nil
	}, nil)
	if err != nil {
		return model.Buyer{}, err
	}
	return v.(model.Buyer), nil
}

// Buyers returns the team in registration order.
func (s *Service) Buyers(ctx context.Context) ([]model.Buyer, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	return s.store.ListBuyers(ctx)
}

// BuyerSummaries returns one portfolio summary per buyer.
func (s *Service) BuyerSummaries(ctx context.Context) ([]workload.Summary, error) {
	requests, buyers, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return workload.Summaries(requests, buyers), nil
}

// BuyerSummary returns the portfolio summary of one buyer.
func (s *Service) BuyerSummary(ctx context.Context, name string) (workload.Summary, error) {
	summaries, err := s.BuyerSummaries(ctx)
	if err != nil {
		return workload.Summary{}, err
	}
	for _, sum := range summaries {
		if sum.Name == name {
			return sum, nil
		}
	}
	return workload.Summary{}, fmt.Errorf("buyer %s: %w", name, ErrNotFound)
}
