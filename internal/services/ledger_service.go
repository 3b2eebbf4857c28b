package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"

	"tally/internal/core"
	"tally/internal/ledger"
)

// ErrInvalidInput wraps every validation failure of an ingested record.
var ErrInvalidInput = errors.New("invalid input")

// RefreshPublisher announces that the net worth for a date needs recomputing.
type RefreshPublisher interface {
	PublishNetWorthRefresh(ctx context.Context, date core.Date, reason string) error
}

// LedgerService is the write side: it appends records to the store and then
// asks for today's net worth to be refreshed.
type LedgerService struct {
	store     ledger.Store
	publisher RefreshPublisher
	cal       Calendar
}

// NewLedgerService accepts a nil publisher; refreshes are then skipped.
func NewLedgerService(store ledger.Store, publisher RefreshPublisher, cal Calendar) *LedgerService {
	return &LedgerService{store: store, publisher: publisher, cal: cal}
}

// AddTransaction stores an expense or resisted purchase. A zero date means today.
func (s *LedgerService) AddTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.Date.IsZero() {
		tx.Date = s.cal.Today()
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	saved, err := s.store.AppendTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: save transaction: %w", ledger.ErrStoreUnavailable, err)
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"component", "ledger",
		"id", saved.ID,
		"kind", saved.Kind,
		"category", saved.Category,
		"amount", saved.Amount.String(),
		"date", saved.Date.String())

	if saved.Kind == core.KindExpense {
		s.refresh(ctx, "transaction")
	}
	return saved, nil
}

// AddAsset stores an asset with its initial valuation. A zero purchase date means today.
func (s *LedgerService) AddAsset(ctx context.Context, a core.Asset) (core.Asset, error) {
	if a.PurchaseDate.IsZero() {
		a.PurchaseDate = s.cal.Today()
	}
	if err := a.Validate(); err != nil {
		return core.Asset{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	saved, err := s.store.CreateAsset(ctx, a)
	if err != nil {
		return core.Asset{}, fmt.Errorf("%w: save asset: %w", ledger.ErrStoreUnavailable, err)
	}
	s.refresh(ctx, "asset")
	return saved, nil
}

// UpdateAssetValue appends a valuation pricing the asset's whole quantity at
// price as of asOf (today when zero).
func (s *LedgerService) UpdateAssetValue(ctx context.Context, assetID int64, price decimal.Decimal, asOf core.Date) (core.ValuationSnapshot, error) {
	if asOf.IsZero() {
		asOf = s.cal.Today()
	}

	a, err := s.store.GetAsset(ctx, assetID)
	if errors.Is(err, ledger.ErrAssetNotFound) {
		return core.ValuationSnapshot{}, fmt.Errorf("asset %d: %w", assetID, err)
	}
	if err != nil {
		return core.ValuationSnapshot{}, fmt.Errorf("%w: get asset %d: %w", ledger.ErrStoreUnavailable, assetID, err)
	}

	snap := a.Valuation(price, asOf)
	if err := snap.Validate(); err != nil {
		return core.ValuationSnapshot{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	saved, err := s.store.AppendSnapshot(ctx, snap)
	if err != nil {
		return core.ValuationSnapshot{}, fmt.Errorf("%w: save valuation: %w", ledger.ErrStoreUnavailable, err)
	}

	slog.InfoContext(ctx, "Asset value updated",
		"component", "ledger",
		"asset_id", assetID,
		"price", price.String(),
		"total_value", saved.TotalValue.String(),
		"as_of", asOf.String())

	s.refresh(ctx, "valuation")
	return saved, nil
}

// refresh never fails the write; the record is already stored.
func (s *LedgerService) refresh(ctx context.Context, reason string) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No refresh publisher, skipping net worth refresh", "component", "ledger")
		return
	}
	if err := s.publisher.PublishNetWorthRefresh(ctx, s.cal.Today(), reason); err != nil {
		slog.ErrorContext(ctx, "Failed to publish net worth refresh",
			"component", "ledger",
			"reason", reason,
			"error", err)
	}
}

// Close closes the store and publisher when they hold resources.
func (s *LedgerService) Close() error {
	var errs []error
	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
