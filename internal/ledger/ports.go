// Package ledger is the read side of the record store: it scopes raw
// transactions and valuation snapshots to resolved ranges and reduces them
// with exact decimal arithmetic. The store itself is reached only through the
// narrow ports declared here.
package ledger

import (
	"context"
	"errors"

	"tally/internal/core"
)

var (
	// ErrStoreUnavailable wraps every failure coming back from the store.
	// Callers decide whether to retry; this package never does.
	ErrStoreUnavailable = errors.New("record store unavailable")

	ErrAssetNotFound    = errors.New("asset not found")
	ErrNetWorthNotFound = errors.New("net worth point not found")
)

// TransactionFilter selects transactions by kind and date. A zero From leaves
// the window open on the left; To is always inclusive.
type TransactionFilter struct {
	Kind core.Kind // empty selects every kind
	From core.Date
	To   core.Date
}

// Ports for outbound adapters.
type (
	TransactionStore interface {
		// AppendTransaction stores tx and returns it with ID and CreatedAt set.
		AppendTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		// ListTransactions returns matching records ordered by creation.
		ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
	}

	AssetStore interface {
		// CreateAsset stores the asset together with its initial valuation
		// snapshot; either both are written or neither is.
		CreateAsset(ctx context.Context, a core.Asset) (core.Asset, error)
		GetAsset(ctx context.Context, id int64) (core.Asset, error)
		ListAssets(ctx context.Context) ([]core.Asset, error)
		AppendSnapshot(ctx context.Context, s core.ValuationSnapshot) (core.ValuationSnapshot, error)
		// ListSnapshots returns every snapshot whose as-of date is on or before asOf.
		ListSnapshots(ctx context.Context, asOf core.Date) ([]core.ValuationSnapshot, error)
	}

	NetWorthStore interface {
		// UpsertNetWorth writes the point for p.Date, replacing any existing one.
		UpsertNetWorth(ctx context.Context, p core.NetWorthPoint) error
		GetNetWorth(ctx context.Context, date core.Date) (core.NetWorthPoint, error)
		// ListNetWorth returns points with from <= date <= to, ascending by date.
		ListNetWorth(ctx context.Context, from, to core.Date) ([]core.NetWorthPoint, error)
	}

	// Store is everything a complete backend provides.
	Store interface {
		TransactionStore
		AssetStore
		NetWorthStore
	}
)
