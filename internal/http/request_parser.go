package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"tally/internal/core"
	"tally/internal/period"
)

const (
	maxBodyBytes       = 64 << 10
	defaultRange       = period.ThisMonth
	defaultGranularity = period.Day
)

// errBadRequest marks client errors found while reading a request.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// reportQuery is what every report endpoint reads from the query string.
type reportQuery struct {
	Spec        string
	Granularity period.Granularity
}

func parseReportQuery(r *http.Request, needGranularity bool) (reportQuery, error) {
	q := r.URL.Query()
	rq := reportQuery{Spec: strings.TrimSpace(q.Get("range"))}
	if rq.Spec == "" {
		rq.Spec = defaultRange
	}
	if !needGranularity {
		return rq, nil
	}
	g := strings.TrimSpace(q.Get("granularity"))
	if g == "" {
		rq.Granularity = defaultGranularity
		return rq, nil
	}
	parsed, err := period.ParseGranularity(strings.ToLower(g))
	if err != nil {
		return reportQuery{}, err
	}
	rq.Granularity = parsed
	return rq, nil
}

// parseDateParam reads an optional YYYY-MM-DD query parameter; absent means zero.
func parseDateParam(r *http.Request, name string) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, badRequest("%s must be YYYY-MM-DD", name)
	}
	return d, nil
}

func parseID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("%s must be a positive integer", name)
	}
	return id, nil
}

// decodeBody reads one JSON object into dst, refusing unknown fields and
// trailing data. An empty body leaves dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return badRequest("body larger than %d bytes", tooBig.Limit)
		}
		return badRequest("unreadable body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, core.ErrInvalidDate) {
			return badRequest("dates must be YYYY-MM-DD")
		}
		return badRequest("invalid JSON: %v", err)
	}
	if dec.More() {
		return badRequest("body must hold a single JSON object")
	}
	return nil
}

// amountParam accepts "12.34", "12,34" or a bare JSON number.
type amountParam string

func (a *amountParam) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	if s == "null" {
		s = ""
	}
	*a = amountParam(s)
	return nil
}

// decimal parses the amount; absent amounts are an error naming field.
func (a amountParam) decimal(field string) (decimal.Decimal, error) {
	if strings.TrimSpace(string(a)) == "" {
		return decimal.Zero, badRequest("%s is required", field)
	}
	d, err := core.ParseAmount(string(a))
	if err != nil {
		return decimal.Zero, badRequest("%s: %v", field, err)
	}
	return d, nil
}

// sanitizeInput trims and drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

type transactionRequest struct {
	Kind       core.Kind   `json:"kind"`
	Category   string      `json:"category"`
	Amount     amountParam `json:"amount"`
	Date       core.Date   `json:"date"`
	SourceText string      `json:"source_text"`
}

func (req transactionRequest) toTransaction() (core.Transaction, error) {
	amount, err := req.Amount.decimal("amount")
	if err != nil {
		return core.Transaction{}, err
	}
	kind := req.Kind
	if kind == "" {
		kind = core.KindExpense
	}
	return core.Transaction{
		Kind:       core.Kind(strings.ToLower(string(kind))),
		Category:   sanitizeInput(req.Category),
		Amount:     amount,
		Date:       req.Date,
		SourceText: sanitizeInput(req.SourceText),
	}, nil
}

type assetRequest struct {
	Type          core.AssetType `json:"type"`
	Name          string         `json:"name"`
	Ticker        string         `json:"ticker"`
	Quantity      amountParam    `json:"quantity"`
	PurchasePrice amountParam    `json:"purchase_price"`
	PurchaseDate  core.Date      `json:"purchase_date"`
	Notes         string         `json:"notes"`
}

func (req assetRequest) toAsset() (core.Asset, error) {
	qty, err := req.Quantity.decimal("quantity")
	if err != nil {
		return core.Asset{}, err
	}
	price, err := req.PurchasePrice.decimal("purchase_price")
	if err != nil {
		return core.Asset{}, err
	}
	return core.Asset{
		Type:          core.AssetType(strings.ToLower(string(req.Type))),
		Name:          sanitizeInput(req.Name),
		Ticker:        strings.ToUpper(sanitizeInput(req.Ticker)),
		Quantity:      qty,
		PurchasePrice: price,
		PurchaseDate:  req.PurchaseDate,
		Notes:         sanitizeInput(req.Notes),
	}, nil
}

type valuationRequest struct {
	Price amountParam `json:"price"`
	AsOf  core.Date   `json:"as_of"`
}

type netWorthRequest struct {
	Date core.Date `json:"date"`
}
