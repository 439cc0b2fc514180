package model

import (
	"context"
	"time"
)

// Mutation is a unit of work for the single store writer. Apply runs on the
// writer goroutine; its outcome is delivered on Reply when Reply is non-nil.
type Mutation struct {
	ID         string
	Name       string
	Apply      func(ctx context.Context) (any, error)
	Reply      chan MutationResult
	EnqueuedAt time.Time
}

// MutationResult carries the value or error returned by Apply.
type MutationResult struct {
	Value any
	Err   error
}
