// Package storage is the SQLite record store. Money and dates are persisted as
// TEXT and converted back to decimals and calendar dates on read, so sums done
// by the ledger stay exact.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
	"tally/internal/ledger"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// maxDate closes an open-ended date filter.
const maxDate = "9999-12-31"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

// Option configures a SQLiteRepository.
type Option func(*SQLiteRepository)

// WithClock sets the clock used to stamp created_at and recorded_at columns.
func WithClock(now func() time.Time) Option {
	return func(r *SQLiteRepository) { r.now = now }
}

var _ ledger.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, opts ...Option) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY between our own goroutines.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := &SQLiteRepository{db: db, queries: New(db), now: time.Now}
	for _, o := range opts {
		o(repo)
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) stamp() string {
	return r.now().UTC().Format(timeLayout)
}

// AppendTransaction implements ledger.TransactionStore.
func (r *SQLiteRepository) AppendTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	createdAt := r.stamp()
	if !tx.CreatedAt.IsZero() {
		createdAt = tx.CreatedAt.UTC().Format(timeLayout)
	}
	row, err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		Kind:       string(tx.Kind),
		Category:   tx.Category,
		Amount:     tx.Amount.String(),
		Date:       tx.Date.String(),
		SourceText: tx.SourceText,
		CreatedAt:  createdAt,
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", row.ID,
		"kind", row.Kind,
		"category", row.Category,
		"amount", row.Amount,
		"date", row.Date)

	return toTransaction(row)
}

// ListTransactions implements ledger.TransactionStore.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]core.Transaction, error) {
	params := ListTransactionsParams{Kind: string(f.Kind), To: maxDate}
	if !f.From.IsZero() {
		params.From = f.From.String()
	}
	if !f.To.IsZero() {
		params.To = f.To.String()
	}
	rows, err := r.queries.ListTransactions(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := toTransaction(row)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// CreateAsset implements ledger.AssetStore. The asset row and its initial
// valuation are committed together.
func (r *SQLiteRepository) CreateAsset(ctx context.Context, a core.Asset) (core.Asset, error) {
	if err := a.Validate(); err != nil {
		return core.Asset{}, err
	}
	now := r.stamp()

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Asset{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()
	q := r.queries.WithTx(dbTx)

	row, err := q.CreateAsset(ctx, CreateAssetParams{
		Type:          string(a.Type),
		Name:          a.Name,
		Ticker:        a.Ticker,
		Quantity:      a.Quantity.String(),
		PurchasePrice: a.PurchasePrice.String(),
		PurchaseDate:  a.PurchaseDate.String(),
		Notes:         a.Notes,
		CreatedAt:     now,
	})
	if err != nil {
		return core.Asset{}, fmt.Errorf("create asset: %w", err)
	}
	created, err := toAsset(row)
	if err != nil {
		return core.Asset{}, err
	}

	initial := created.InitialSnapshot()
	if _, err := q.CreateAssetValuation(ctx, CreateAssetValuationParams{
		AssetID:    created.ID,
		Price:      initial.Price.String(),
		TotalValue: initial.TotalValue.String(),
		AsOfDate:   initial.AsOf.String(),
		RecordedAt: now,
	}); err != nil {
		return core.Asset{}, fmt.Errorf("create initial valuation: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return core.Asset{}, fmt.Errorf("commit asset: %w", err)
	}

	slog.InfoContext(ctx, "Asset saved to SQLite",
		"id", created.ID,
		"type", created.Type,
		"name", created.Name,
		"initial_value", initial.TotalValue.String())

	return created, nil
}

// GetAsset implements ledger.AssetStore.
func (r *SQLiteRepository) GetAsset(ctx context.Context, id int64) (core.Asset, error) {
	row, err := r.queries.GetAsset(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Asset{}, ledger.ErrAssetNotFound
	}
	if err != nil {
		return core.Asset{}, fmt.Errorf("get asset %d: %w", id, err)
	}
	return toAsset(row)
}

// ListAssets implements ledger.AssetStore.
func (r *SQLiteRepository) ListAssets(ctx context.Context) ([]core.Asset, error) {
	rows, err := r.queries.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	out := make([]core.Asset, 0, len(rows))
	for _, row := range rows {
		a, err := toAsset(row)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// AppendSnapshot implements ledger.AssetStore.
func (r *SQLiteRepository) AppendSnapshot(ctx context.Context, s core.ValuationSnapshot) (core.ValuationSnapshot, error) {
	if err := s.Validate(); err != nil {
		return core.ValuationSnapshot{}, err
	}
	if _, err := r.GetAsset(ctx, s.AssetID); err != nil {
		return core.ValuationSnapshot{}, err
	}
	recordedAt := r.stamp()
	if !s.RecordedAt.IsZero() {
		recordedAt = s.RecordedAt.UTC().Format(timeLayout)
	}
	row, err := r.queries.CreateAssetValuation(ctx, CreateAssetValuationParams{
		AssetID:    s.AssetID,
		Price:      s.Price.String(),
		TotalValue: s.TotalValue.String(),
		AsOfDate:   s.AsOf.String(),
		RecordedAt: recordedAt,
	})
	if err != nil {
		return core.ValuationSnapshot{}, fmt.Errorf("create valuation: %w", err)
	}
	return toSnapshot(row)
}

// ListSnapshots implements ledger.AssetStore.
func (r *SQLiteRepository) ListSnapshots(ctx context.Context, asOf core.Date) ([]core.ValuationSnapshot, error) {
	rows, err := r.queries.ListAssetValuationsAsOf(ctx, asOf.String())
	if err != nil {
		return nil, fmt.Errorf("list valuations as of %s: %w", asOf, err)
	}
	out := make([]core.ValuationSnapshot, 0, len(rows))
	for _, row := range rows {
		s, err := toSnapshot(row)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// UpsertNetWorth implements ledger.NetWorthStore.
func (r *SQLiteRepository) UpsertNetWorth(ctx context.Context, p core.NetWorthPoint) error {
	if err := p.Date.Validate(); err != nil {
		return err
	}
	err := r.queries.UpsertNetWorth(ctx, NetWorthHistory{
		Date:          p.Date.String(),
		TotalAssets:   p.TotalAssets.String(),
		TotalExpenses: p.TotalExpenses.String(),
		NetWorth:      p.NetWorth.String(),
		UpdatedAt:     r.stamp(),
	})
	if err != nil {
		return fmt.Errorf("upsert net worth %s: %w", p.Date, err)
	}
	return nil
}

// GetNetWorth implements ledger.NetWorthStore.
func (r *SQLiteRepository) GetNetWorth(ctx context.Context, date core.Date) (core.NetWorthPoint, error) {
	row, err := r.queries.GetNetWorth(ctx, date.String())
	if errors.Is(err, sql.ErrNoRows) {
		return core.NetWorthPoint{}, ledger.ErrNetWorthNotFound
	}
	if err != nil {
		return core.NetWorthPoint{}, fmt.Errorf("get net worth %s: %w", date, err)
	}
	return toNetWorth(row)
}

// ListNetWorth implements ledger.NetWorthStore.
func (r *SQLiteRepository) ListNetWorth(ctx context.Context, from, to core.Date) ([]core.NetWorthPoint, error) {
	rows, err := r.queries.ListNetWorth(ctx, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list net worth: %w", err)
	}
	out := make([]core.NetWorthPoint, 0, len(rows))
	for _, row := range rows {
		p, err := toNetWorth(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func toTransaction(row Transaction) (core.Transaction, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d amount %q: %w", row.ID, row.Amount, err)
	}
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d date %q: %w", row.ID, row.Date, err)
	}
	createdAt, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d created_at %q: %w", row.ID, row.CreatedAt, err)
	}
	return core.Transaction{
		ID:         row.ID,
		Kind:       core.Kind(row.Kind),
		Category:   row.Category,
		Amount:     amount,
		Date:       date,
		SourceText: row.SourceText,
		CreatedAt:  createdAt,
	}, nil
}

func toAsset(row Asset) (core.Asset, error) {
	qty, err := decimal.NewFromString(row.Quantity)
	if err != nil {
		return core.Asset{}, fmt.Errorf("asset %d quantity %q: %w", row.ID, row.Quantity, err)
	}
	price, err := decimal.NewFromString(row.PurchasePrice)
	if err != nil {
		return core.Asset{}, fmt.Errorf("asset %d purchase price %q: %w", row.ID, row.PurchasePrice, err)
	}
	purchased, err := core.ParseDate(row.PurchaseDate)
	if err != nil {
		return core.Asset{}, fmt.Errorf("asset %d purchase date %q: %w", row.ID, row.PurchaseDate, err)
	}
	createdAt, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return core.Asset{}, fmt.Errorf("asset %d created_at %q: %w", row.ID, row.CreatedAt, err)
	}
	return core.Asset{
		ID:            row.ID,
		Type:          core.AssetType(row.Type),
		Name:          row.Name,
		Ticker:        row.Ticker,
		Quantity:      qty,
		PurchasePrice: price,
		PurchaseDate:  purchased,
		Notes:         row.Notes,
		CreatedAt:     createdAt,
	}, nil
}

func toSnapshot(row AssetValuation) (core.ValuationSnapshot, error) {
	price, err := decimal.NewFromString(row.Price)
	if err != nil {
		return core.ValuationSnapshot{}, fmt.Errorf("valuation %d price %q: %w", row.ID, row.Price, err)
	}
	total, err := decimal.NewFromString(row.TotalValue)
	if err != nil {
		return core.ValuationSnapshot{}, fmt.Errorf("valuation %d total %q: %w", row.ID, row.TotalValue, err)
	}
	asOf, err := core.ParseDate(row.AsOfDate)
	if err != nil {
		return core.ValuationSnapshot{}, fmt.Errorf("valuation %d as_of %q: %w", row.ID, row.AsOfDate, err)
	}
	recordedAt, err := time.Parse(timeLayout, row.RecordedAt)
	if err != nil {
		return core.ValuationSnapshot{}, fmt.Errorf("valuation %d recorded_at %q: %w", row.ID, row.RecordedAt, err)
	}
	return core.ValuationSnapshot{
		ID:         row.ID,
		AssetID:    row.AssetID,
		Price:      price,
		TotalValue: total,
		AsOf:       asOf,
		RecordedAt: recordedAt,
	}, nil
}

func toNetWorth(row NetWorthHistory) (core.NetWorthPoint, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.NetWorthPoint{}, fmt.Errorf("net worth date %q: %w", row.Date, err)
	}
	parse := func(field, v string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("net worth %s %s %q: %w", row.Date, field, v, err)
		}
		return d, nil
	}
	assets, err := parse("total_assets", row.TotalAssets)
	if err != nil {
		return core.NetWorthPoint{}, err
	}
	expenses, err := parse("total_expenses", row.TotalExpenses)
	if err != nil {
		return core.NetWorthPoint{}, err
	}
	net, err := parse("net_worth", row.NetWorth)
	if err != nil {
		return core.NetWorthPoint{}, err
	}
	return core.NetWorthPoint{Date: date, TotalAssets: assets, TotalExpenses: expenses, NetWorth: net}, nil
}
