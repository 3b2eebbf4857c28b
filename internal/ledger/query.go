package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"tally/internal/core"
	"tally/internal/period"
)

// Records holds the expenses and resisted purchases of one range, each in
// creation order.
type Records struct {
	Expenses []core.Transaction
	Resisted []core.Transaction
}

// Query answers range scoped questions over the store.
type Query struct {
	txs    TransactionStore
	assets AssetStore
}

func NewQuery(txs TransactionStore, assets AssetStore) *Query {
	return &Query{txs: txs, assets: assets}
}

// Transactions returns the records of one kind dated inside r, in creation
// order. An inverted range returns nothing and does not reach the store.
func (q *Query) Transactions(ctx context.Context, r period.Range, kind core.Kind) ([]core.Transaction, error) {
	if r.Empty() {
		return []core.Transaction{}, nil
	}
	txs, err := q.txs.ListTransactions(ctx, TransactionFilter{Kind: kind, From: r.Start, To: r.End})
	if err != nil {
		return nil, fmt.Errorf("%w: list %s transactions: %w", ErrStoreUnavailable, kind, err)
	}
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Kind == kind && r.Contains(tx.Date) {
			out = append(out, tx)
		}
	}
	core.SortTransactions(out)
	return out, nil
}

// Fetch loads both kinds for r concurrently.
func (q *Query) Fetch(ctx context.Context, r period.Range) (Records, error) {
	var rec Records
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rec.Expenses, err = q.Transactions(gctx, r, core.KindExpense)
		return err
	})
	g.Go(func() error {
		var err error
		rec.Resisted, err = q.Transactions(gctx, r, core.KindResisted)
		return err
	})
	if err := g.Wait(); err != nil {
		return Records{}, err
	}
	return rec, nil
}

// CategorySums returns the expense total of every category present in r.
func (q *Query) CategorySums(ctx context.Context, r period.Range) (map[string]decimal.Decimal, error) {
	txs, err := q.Transactions(ctx, r, core.KindExpense)
	if err != nil {
		return nil, err
	}
	return SumByCategory(txs), nil
}

// ResistedTotal returns the sum of resisted amounts in r.
func (q *Query) ResistedTotal(ctx context.Context, r period.Range) (decimal.Decimal, error) {
	txs, err := q.Transactions(ctx, r, core.KindResisted)
	if err != nil {
		return decimal.Zero, err
	}
	return Total(txs), nil
}

// BucketSums returns the total of one kind per bucket key, for occupied buckets only.
func (q *Query) BucketSums(ctx context.Context, r period.Range, g period.Granularity, kind core.Kind) (map[string]decimal.Decimal, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	txs, err := q.Transactions(ctx, r, kind)
	if err != nil {
		return nil, err
	}
	return SumByBucket(txs, g)
}

// CumulativeExpenses sums every expense dated on or before upTo.
// Resisted purchases never count.
func (q *Query) CumulativeExpenses(ctx context.Context, upTo core.Date) (decimal.Decimal, error) {
	txs, err := q.txs.ListTransactions(ctx, TransactionFilter{Kind: core.KindExpense, To: upTo})
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: list expenses up to %s: %w", ErrStoreUnavailable, upTo, err)
	}
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Kind == core.KindExpense && !tx.Date.After(upTo) {
			total = total.Add(tx.Amount)
		}
	}
	return total, nil
}

// Assets lists every asset known to the store.
func (q *Query) Assets(ctx context.Context) ([]core.Asset, error) {
	assets, err := q.assets.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list assets: %w", ErrStoreUnavailable, err)
	}
	return assets, nil
}

// LatestValuations returns, per asset id, the snapshot in force on asOf.
// Assets without any snapshot dated on or before asOf are absent.
func (q *Query) LatestValuations(ctx context.Context, asOf core.Date) (map[int64]core.ValuationSnapshot, error) {
	snaps, err := q.assets.ListSnapshots(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("%w: list snapshots as of %s: %w", ErrStoreUnavailable, asOf, err)
	}
	return LatestPerAsset(snaps, asOf), nil
}

// LatestValuationsAt is LatestValuations for several dates, keyed by the
// date's ISO string. Snapshots are read once, for the latest date asked.
func (q *Query) LatestValuationsAt(ctx context.Context, dates []core.Date) (map[string]map[int64]core.ValuationSnapshot, error) {
	out := make(map[string]map[int64]core.ValuationSnapshot, len(dates))
	if len(dates) == 0 {
		return out, nil
	}
	latest := dates[0]
	for _, d := range dates[1:] {
		if d.After(latest) {
			latest = d
		}
	}
	snaps, err := q.assets.ListSnapshots(ctx, latest)
	if err != nil {
		return nil, fmt.Errorf("%w: list snapshots as of %s: %w", ErrStoreUnavailable, latest, err)
	}
	for _, d := range dates {
		out[d.String()] = LatestPerAsset(snaps, d)
	}
	return out, nil
}

// Total sums the amounts of txs.
func Total(txs []core.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}
	return total
}

// SumByCategory groups on the exact category string. A category whose
// records all carry a zero amount is kept with a zero total.
func SumByCategory(txs []core.Transaction) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		out[tx.Category] = out[tx.Category].Add(tx.Amount)
	}
	return out
}

// GroupByCategory keeps the input order inside each category.
func GroupByCategory(txs []core.Transaction) map[string][]core.Transaction {
	out := make(map[string][]core.Transaction)
	for _, tx := range txs {
		out[tx.Category] = append(out[tx.Category], tx)
	}
	return out
}

// SumByBucket totals txs per bucket key.
func SumByBucket(txs []core.Transaction, g period.Granularity) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		key, err := period.BucketKey(tx.Date, g)
		if err != nil {
			return nil, err
		}
		out[key] = out[key].Add(tx.Amount)
	}
	return out, nil
}

// GroupByBucket splits txs per bucket key, keeping the input order inside each bucket.
func GroupByBucket(txs []core.Transaction, g period.Granularity) (map[string][]core.Transaction, error) {
	out := make(map[string][]core.Transaction)
	for _, tx := range txs {
		key, err := period.BucketKey(tx.Date, g)
		if err != nil {
			return nil, err
		}
		out[key] = append(out[key], tx)
	}
	return out, nil
}

// LatestPerAsset picks, for each asset, the newest snapshot with AsOf <= asOf.
func LatestPerAsset(snaps []core.ValuationSnapshot, asOf core.Date) map[int64]core.ValuationSnapshot {
	out := make(map[int64]core.ValuationSnapshot)
	for _, s := range snaps {
		if s.AsOf.After(asOf) {
			continue
		}
		if cur, ok := out[s.AssetID]; !ok || s.NewerThan(cur) {
			out[s.AssetID] = s
		}
	}
	return out
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
