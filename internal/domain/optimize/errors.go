package optimize

import "errors"

// ErrBatchInfeasible is returned when no assignment can be produced.
// The wrapping error carries the reason.
var ErrBatchInfeasible = errors.New("batch infeasible")
