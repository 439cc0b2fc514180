package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/okian/achat/internal/domain/model"
	"github.com/okian/achat/pkg/metrics"
)

// MemoryStore keeps dossiers and buyers in memory. It is safe for
// concurrent use; Persist is a no-op.
type MemoryStore struct {
	mu         sync.RWMutex
	requests   []model.Request
	byCode     map[string]int
	buyers     []model.Buyer
	buyerIndex map[string]int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byCode:     make(map[string]int),
		buyerIndex: make(map[string]int),
	}
}

// List implements RequestStore.
func (s *MemoryStore) List(_ context.Context) ([]model.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Request, len(s.requests))
	for i := range s.requests {
		out[i] = clone(s.requests[i])
	}
	return out, nil
}

// Get implements RequestStore.
func (s *MemoryStore) Get(_ context.Context, code string) (model.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byCode[code]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Request{}, fmt.Errorf("request %s: %w", code, ErrNotFound)
	}
	return clone(s.requests[i]), nil
}

// Insert implements RequestStore.
func (s *MemoryStore) Insert(_ context.Context, r model.Request) error {
	if strings.TrimSpace(r.Code) == "" {
		return fmt.Errorf("%w: empty code", ErrInvalidRequest)
	}

	s.mu.Lock()
	if _, ok := s.byCode[r.Code]; ok {
		s.mu.Unlock()
		metrics.RecordErrorByComponent("repository", "duplicate_request")
		return fmt.Errorf("request %s: %w", r.Code, ErrDuplicateRequest)
	}
	s.append(r)
	n := len(s.requests)
	s.mu.Unlock()

	metrics.UpdateStoreRecords("requests", n)
	return nil
}

// Upsert implements RequestStore.
func (s *MemoryStore) Upsert(_ context.Context, r model.Request) error {
	if strings.TrimSpace(r.Code) == "" {
		return fmt.Errorf("%w: empty code", ErrInvalidRequest)
	}

	s.mu.Lock()
	if i, ok := s.byCode[r.Code]; ok {
		s.requests[i] = clone(r)
	} else {
		s.append(r)
	}
	n := len(s.requests)
	s.mu.Unlock()

	metrics.UpdateStoreRecords("requests", n)
	return nil
}

// append adds r; caller holds s.mu.
func (s *MemoryStore) append(r model.Request) {
	s.byCode[r.Code] = len(s.requests)
	s.requests = append(s.requests, clone(r))
}

// Persist implements RequestStore.
func (s *MemoryStore) Persist(context.Context) error { return nil }

// ListBuyers implements BuyerStore.
func (s *MemoryStore) ListBuyers(_ context.Context) ([]model.Buyer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Buyer, len(s.buyers))
	copy(out, s.buyers)
	return out, nil
}

// AddBuyer implements BuyerStore.
func (s *MemoryStore) AddBuyer(_ context.Context, name, email string) (model.Buyer, error) {
	b := model.Buyer{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)}
	if b.Name == "" {
		return model.Buyer{}, fmt.Errorf("%w: empty name", ErrInvalidBuyer)
	}

	s.mu.Lock()
	if _, ok := s.buyerIndex[b.Name]; ok {
		s.mu.Unlock()
		metrics.RecordErrorByComponent("repository", "duplicate_buyer")
		return model.Buyer{}, fmt.Errorf("buyer %s: %w", b.Name, ErrDuplicateBuyer)
	}
	s.buyerIndex[b.Name] = len(s.buyers)
	s.buyers = append(s.buyers, b)
	n := len(s.buyers)
	s.mu.Unlock()

	metrics.UpdateStoreRecords("buyers", n)
	return b, nil
}

// GetBuyer implements BuyerStore.
func (s *MemoryStore) GetBuyer(_ context.Context, name string) (model.Buyer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.buyerIndex[name]
	if !ok {
		return model.Buyer{}, fmt.Errorf("buyer %s: %w", name, ErrNotFound)
	}
	return s.buyers[i], nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// clone copies r so callers never share the ClosedAt pointer.
func clone(r model.Request) model.Request {
	if r.ClosedAt != nil {
		t := *r.ClosedAt
		r.ClosedAt = &t
	}
	return r
}
