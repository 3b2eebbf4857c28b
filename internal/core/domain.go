package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindExpense  Kind = "expense"
	KindResisted Kind = "resisted"
)

const (
	AssetStock      AssetType = "stock"
	AssetCrypto     AssetType = "crypto"
	AssetRealEstate AssetType = "real_estate"
	AssetCash       AssetType = "cash"
	AssetOther      AssetType = "other"
)

// DateLayout is the ISO calendar date format used for keys, storage and the API.
const DateLayout = "2006-01-02"

type (
	// Kind tells an actual expense apart from a resisted (not made) purchase.
	Kind string

	AssetType string

	// Date is a calendar date without time of day. The embedded time is always
	// midnight UTC so comparisons never depend on a location.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID         int64           `json:"id"`
		Kind       Kind            `json:"kind"`
		Category   string          `json:"category"`
		Amount     decimal.Decimal `json:"amount"`
		Date       Date            `json:"date"`
		SourceText string          `json:"source_text,omitempty"`
		CreatedAt  time.Time       `json:"created_at"`
	}

	Asset struct {
		ID            int64           `json:"id"`
		Type          AssetType       `json:"type"`
		Name          string          `json:"name"`
		Ticker        string          `json:"ticker,omitempty"`
		Quantity      decimal.Decimal `json:"quantity"`
		PurchasePrice decimal.Decimal `json:"purchase_price"`
		PurchaseDate  Date            `json:"purchase_date"`
		Notes         string          `json:"notes,omitempty"`
		CreatedAt     time.Time       `json:"created_at"`
	}

	// ValuationSnapshot records what an asset was worth as of a date.
	// Snapshots are append-only; history is never rewritten.
	ValuationSnapshot struct {
		ID         int64           `json:"id"`
		AssetID    int64           `json:"asset_id"`
		Price      decimal.Decimal `json:"price"`
		TotalValue decimal.Decimal `json:"total_value"`
		AsOf       Date            `json:"as_of"`
		RecordedAt time.Time       `json:"recorded_at"`
	}

	NetWorthPoint struct {
		Date          Date            `json:"date"`
		TotalAssets   decimal.Decimal `json:"total_assets"`
		TotalExpenses decimal.Decimal `json:"total_expenses"` // cumulative up to and including Date
		NetWorth      decimal.Decimal `json:"net_worth"`
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidKind     = errors.New("invalid transaction kind")
	ErrEmptyCategory   = errors.New("empty category")
	ErrInvalidAsset    = errors.New("invalid asset type")
	ErrEmptyName       = errors.New("empty asset name")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// NewDate creates a new Date from year, month, day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the time of day of t, keeping the calendar date seen in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// MustParseDate is ParseDate for literals known to be valid.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic("core: bad date literal " + s)
	}
	return d
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// WeekdayFromMonday returns 0 for Monday through 6 for Sunday.
func (d Date) WeekdayFromMonday() int {
	return (int(d.Weekday()) + 6) % 7
}

// FirstOfMonth returns the first day of d's month.
func (d Date) FirstOfMonth() Date {
	return NewDate(d.Year(), d.Month(), 1)
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON overrides the promoted time.Time encoding so dates travel as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	return d.UnmarshalText([]byte(s))
}

func (k Kind) Validate() error {
	switch k {
	case KindExpense, KindResisted:
		return nil
	default:
		return ErrInvalidKind
	}
}

func (t AssetType) Validate() error {
	switch t {
	case AssetStock, AssetCrypto, AssetRealEstate, AssetCash, AssetOther:
		return nil
	default:
		return ErrInvalidAsset
	}
}

func (t Transaction) Validate() error {
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(t.SourceText) > 500 {
		return errors.New("source text too long (max 500 characters)")
	}
	return nil
}

func (a Asset) Validate() error {
	if err := a.Type.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if !a.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if a.PurchasePrice.IsNegative() {
		return ErrInvalidAmount
	}
	if err := a.PurchaseDate.Validate(); err != nil {
		return fmt.Errorf("invalid purchase date: %w", err)
	}
	return nil
}

// InitialSnapshot is the valuation recorded together with the asset itself.
func (a Asset) InitialSnapshot() ValuationSnapshot {
	return ValuationSnapshot{
		AssetID:    a.ID,
		Price:      a.PurchasePrice,
		TotalValue: a.PurchasePrice.Mul(a.Quantity),
		AsOf:       a.PurchaseDate,
	}
}

// Valuation prices the asset's full quantity at price as of the given date.
func (a Asset) Valuation(price decimal.Decimal, asOf Date) ValuationSnapshot {
	return ValuationSnapshot{
		AssetID:    a.ID,
		Price:      price,
		TotalValue: price.Mul(a.Quantity),
		AsOf:       asOf,
	}
}

func (s ValuationSnapshot) Validate() error {
	if s.Price.IsNegative() || s.TotalValue.IsNegative() {
		return ErrInvalidAmount
	}
	return s.AsOf.Validate()
}

// NewerThan reports whether s supersedes o when both are candidates for the
// same asset: later RecordedAt wins, then the higher ID.
func (s ValuationSnapshot) NewerThan(o ValuationSnapshot) bool {
	if !s.RecordedAt.Equal(o.RecordedAt) {
		return s.RecordedAt.After(o.RecordedAt)
	}
	return s.ID > o.ID
}
