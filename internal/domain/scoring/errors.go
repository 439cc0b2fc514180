package scoring

import "errors"

// Sentinel kinds for scoring input errors.
var (
	ErrInvalidAttributes     = errors.New("invalid attributes")
	ErrInconsistentSuppliers = errors.New("total suppliers below foreign suppliers")
)
