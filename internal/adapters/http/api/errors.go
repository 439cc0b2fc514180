package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/achat/internal/app"
	"github.com/okian/achat/internal/domain/assign"
	"github.com/okian/achat/internal/domain/model"
	"github.com/okian/achat/internal/domain/optimize"
	"github.com/okian/achat/internal/domain/scoring"
	"github.com/okian/achat/pkg/logger"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// errorKind maps a service error to its HTTP status and envelope code.
type errorKind struct {
	target error
	status int
	code   string
}

//nolint:gochecknoglobals // lookup table
var errorKinds = []errorKind{
	{service.ErrBackpressure, http.StatusTooManyRequests, "backpressure"},
	{service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
	{service.ErrNotFound, http.StatusNotFound, "not_found"},
	{service.ErrDuplicateRequest, http.StatusConflict, "duplicate_request"},
	{service.ErrDuplicateBuyer, http.StatusConflict, "duplicate_buyer"},
	{service.ErrBatchConflict, http.StatusConflict, "batch_conflict"},
	{model.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{service.ErrUnknownBuyer, http.StatusUnprocessableEntity, "unknown_buyer"},
	{assign.ErrNoBuyersAvailable, http.StatusUnprocessableEntity, "no_buyers"},
	{service.ErrBatchTooLarge, http.StatusUnprocessableEntity, "batch_too_large"},
	{optimize.ErrBatchInfeasible, http.StatusUnprocessableEntity, "batch_infeasible"},
	{ErrBadRequest, http.StatusBadRequest, "bad_request"},
	{service.ErrInvalidRequest, http.StatusBadRequest, "bad_request"},
	{service.ErrInvalidBuyer, http.StatusBadRequest, "bad_request"},
	{scoring.ErrInvalidAttributes, http.StatusBadRequest, "bad_request"},
	{model.ErrInvalidType, http.StatusBadRequest, "bad_request"},
	{model.ErrInvalidStatus, http.StatusBadRequest, "bad_request"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

// classify returns the status and code for err; unknown errors are 500.
func classify(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeServiceError classifies err and writes the error envelope. Server
// side failures are logged.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Get().Named("api").Error(r.Context(), "request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}
