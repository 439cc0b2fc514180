// Package repository stores dossiers and buyers.
package repository

import (
	"context"

	"github.com/okian/achat/internal/domain/model"
)

// RequestStore provides read/write access to dossiers.
type RequestStore interface {
	// List returns every dossier in insertion order.
	List(ctx context.Context) ([]model.Request, error)
	// Get returns ErrNotFound if the code is unknown.
	Get(ctx context.Context, code string) (model.Request, error)
	// Insert adds a new dossier. Returns ErrDuplicateRequest if the code exists.
	Insert(ctx context.Context, r model.Request) error
	// Upsert replaces the dossier with the same code or appends it.
	Upsert(ctx context.Context, r model.Request) error
	// Persist flushes the state to durable storage, if any.
	Persist(ctx context.Context) error
}

// BuyerStore provides read/write access to the buying team.
type BuyerStore interface {
	// ListBuyers returns buyers in registration order.
	ListBuyers(ctx context.Context) ([]model.Buyer, error)
	// AddBuyer registers a buyer. Returns ErrInvalidBuyer for an empty name
	// and ErrDuplicateBuyer if the name is taken.
	AddBuyer(ctx context.Context, name, email string) (model.Buyer, error)
	// GetBuyer returns ErrNotFound if the buyer is unknown.
	GetBuyer(ctx context.Context, name string) (model.Buyer, error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	RequestStore
	BuyerStore
	Close() error
}
