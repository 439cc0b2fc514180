package assign

import "errors"

var (
	// ErrNoBuyersAvailable is returned when the buyer pool is empty.
	ErrNoBuyersAvailable = errors.New("no buyers available")
	// ErrInvalidScore is returned for a negative, NaN or infinite score.
	ErrInvalidScore = errors.New("invalid score")
)
