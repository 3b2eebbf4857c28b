package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tally/internal/ledger"
	tlog "tally/internal/log"
	"tally/internal/middleware/trace"
	"tally/internal/period"
	"tally/internal/services"
)

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// envelope wraps report payloads with the window they cover.
type envelope struct {
	Range       period.Range       `json:"range"`
	Title       string             `json:"title"`
	Granularity period.Granularity `json:"granularity,omitempty"`
	Data        any                `json:"data"`
}

// statusFor maps domain errors to HTTP status codes. A deadline wins over
// the store error that usually wraps it.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, period.ErrInvalidGranularity),
		errors.Is(err, period.ErrRangeTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ledger.ErrAssetNotFound),
		errors.Is(err, ledger.ErrNetWorthNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the mapped status. Server-side failures are logged
// and their details kept out of the body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error(), RequestID: trace.GetRequestID(r.Context())}
	if status >= http.StatusInternalServerError {
		tlog.FromContext(r.Context()).LogError(r.Context(), "Request failed", err, r.Method+" "+r.URL.Path, nil)
		body.Error = http.StatusText(status)
	}
	writeJSON(w, status, body)
}

func jsonBody(v any) ([]byte, error) {
	return json.Marshal(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := jsonBody(v)
	if err != nil {
		slog.Error("Failed to encode response", "component", tlog.ComponentHTTP, "error", err)
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
		return
	}
	writeRaw(w, status, body)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}
