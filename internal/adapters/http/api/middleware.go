package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/achat/pkg/metrics"
)

// statusErrorTypes labels error responses with the envelope codes the API
// uses, grouped where several codes share a status.
//
//nolint:gochecknoglobals // lookup table
var statusErrorTypes = map[int]string{
	http.StatusBadRequest:            "bad_request",
	http.StatusNotFound:              "not_found",
	http.StatusMethodNotAllowed:      "method_not_allowed",
	http.StatusConflict:              "conflict",
	http.StatusRequestEntityTooLarge: "bad_request",
	http.StatusUnprocessableEntity:   "unprocessable",
	http.StatusTooManyRequests:       "backpressure",
	http.StatusServiceUnavailable:    "unavailable",
	http.StatusGatewayTimeout:        "timeout",
}

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics.
// endpoint is the route label, not the raw path.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		durationMs := float64(time.Since(start).Microseconds()) / 1e3
		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, durationMs)

		if rec.status < http.StatusBadRequest {
			return
		}
		kind := errorType(rec.status)
		metrics.RecordErrorByEndpoint(endpoint, r.Method, kind)
		metrics.RecordErrorByType(kind, errorSeverity(rec.status))
		metrics.RecordErrorByComponent("http", kind)
	}
}

// errorType maps a response status to its metrics label.
func errorType(status int) string {
	if kind, ok := statusErrorTypes[status]; ok {
		return kind
	}
	switch {
	case status >= http.StatusInternalServerError:
		return "internal_error"
	case status >= http.StatusBadRequest:
		return "client_error"
	default:
		return "unknown"
	}
}

// errorSeverity is high for server faults other than overload and timeouts.
func errorSeverity(status int) string {
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return "medium"
	}
	switch {
	case status >= http.StatusInternalServerError:
		return "high"
	case status >= http.StatusBadRequest:
		return "medium"
	default:
		return "low"
	}
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}
