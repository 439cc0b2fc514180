package model

import "errors"

// Sentinel kinds for model validation.
var (
	ErrInvalidType       = errors.New("invalid request type")
	ErrInvalidStatus     = errors.New("invalid request status")
	ErrInvalidTransition = errors.New("invalid status transition")
)
