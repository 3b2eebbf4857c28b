package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core"
	"tally/internal/period"
)

func TestParseReportQuery(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		needG    bool
		wantSpec string
		wantG    period.Granularity
		wantErr  bool
	}{
		{"defaults", "/", true, "this_month", period.Day, false},
		{"explicit", "/?range=last_month&granularity=WEEK", true, "last_month", period.Week, false},
		{"granularity ignored", "/?granularity=year", false, "this_month", "", false},
		{"bad granularity", "/?granularity=year", true, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := parseReportQuery(httptest.NewRequest(http.MethodGet, tt.target, nil), tt.needG)
			if tt.wantErr {
				assert.ErrorIs(t, err, period.ErrInvalidGranularity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSpec, q.Spec)
			assert.Equal(t, tt.wantG, q.Granularity)
		})
	}
}

func TestAmountParam(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{`"12,34"`, "12.34", false},
		{`"12.34"`, "12.34", false},
		{`7`, "7", false},
		{`0.5`, "0.5", false},
		{`"0"`, "0", false},
		{`"-3"`, "", true},
		{`"1e3"`, "", true},
		{`null`, "", true},
		{`""`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var a amountParam
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &a))
			got, err := a.decimal("amount")
			if tt.wantErr {
				assert.ErrorIs(t, err, errBadRequest)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), got.String())
		})
	}
}

func TestTransactionRequest(t *testing.T) {
	req := transactionRequest{Category: "  Food\x00 ", Amount: "5", Date: core.NewDate(2025, 3, 1), Kind: "RESISTED"}
	tx, err := req.toTransaction()
	require.NoError(t, err)
	assert.Equal(t, core.KindResisted, tx.Kind)
	assert.Equal(t, "Food", tx.Category)

	tx, err = transactionRequest{Category: "Food", Amount: "5"}.toTransaction()
	require.NoError(t, err)
	assert.Equal(t, core.KindExpense, tx.Kind)
}

func TestParseDateParam(t *testing.T) {
	d, err := parseDateParam(httptest.NewRequest(http.MethodGet, "/?as_of=2025-02-28", nil), "as_of")
	require.NoError(t, err)
	assert.Equal(t, core.NewDate(2025, 2, 28), d)

	d, err = parseDateParam(httptest.NewRequest(http.MethodGet, "/", nil), "as_of")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = parseDateParam(httptest.NewRequest(http.MethodGet, "/?as_of=2025-02-30", nil), "as_of")
	assert.ErrorIs(t, err, errBadRequest)
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "a\tb", sanitizeInput("  a\tb\x07 "))
}
