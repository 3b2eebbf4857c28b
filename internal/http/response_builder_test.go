package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"tally/internal/core"
	"tally/internal/ledger"
	"tally/internal/period"
	"tally/internal/services"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{badRequest("x"), http.StatusBadRequest},
		{fmt.Errorf("%w: %w", services.ErrInvalidInput, core.ErrInvalidAmount), http.StatusBadRequest},
		{period.ErrInvalidGranularity, http.StatusBadRequest},
		{fmt.Errorf("asset 3: %w", ledger.ErrAssetNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: read: %w", ledger.ErrStoreUnavailable, errors.New("io")), http.StatusServiceUnavailable},
		{period.ErrRangeTooLarge, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("%w: list: %w", ledger.ErrStoreUnavailable, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestWriteErrorHidesServerDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil),
		fmt.Errorf("%w: list: %w", ledger.ErrStoreUnavailable, errors.New("/var/db locked")))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.NotContains(t, rec.Body.String(), "/var/db")

	rec = httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), badRequest("amount is required"))
	assert.Contains(t, rec.Body.String(), "amount is required")
}
