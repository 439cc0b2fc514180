package service

import (
	"errors"

	"github.com/okian/achat/internal/adapters/repository"
)

// Sentinel kinds for service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrBackpressure   = errors.New("mutation queue full")
	ErrUnknownBuyer   = errors.New("unknown buyer")
	ErrInvalidRequest = errors.New("invalid request")
	ErrBatchTooLarge  = errors.New("batch too large")
	ErrBatchConflict  = errors.New("batch out of date")

	// Store errors surfaced unchanged.
	ErrNotFound         = repository.ErrNotFound
	ErrDuplicateRequest = repository.ErrDuplicateRequest
	ErrDuplicateBuyer   = repository.ErrDuplicateBuyer
	ErrInvalidBuyer     = repository.ErrInvalidBuyer
)
