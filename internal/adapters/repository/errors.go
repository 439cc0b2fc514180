package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateRequest = errors.New("request code already exists")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrDuplicateBuyer   = errors.New("buyer already exists")
	ErrInvalidBuyer     = errors.New("invalid buyer")
	ErrCorruptFile      = errors.New("corrupt data file")
)
