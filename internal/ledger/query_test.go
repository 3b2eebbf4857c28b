package ledger_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core"
	"tally/internal/ledger"
	"tally/internal/period"
	"tally/internal/storage/memory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seeded(t *testing.T) (*memory.Store, *ledger.Query) {
	t.Helper()
	ctx := context.Background()
	s := memory.New(memory.WithClock(func() time.Time { return time.Date(2025, 8, 10, 9, 0, 0, 0, time.UTC) }))
	for _, tx := range []core.Transaction{
		{Kind: core.KindExpense, Category: "Food", Amount: dec("12.50"), Date: core.MustParseDate("2025-08-01")},
		{Kind: core.KindExpense, Category: "Food", Amount: dec("7.00"), Date: core.MustParseDate("2025-08-02")},
		{Kind: core.KindResisted, Category: "Food", Amount: dec("5.00"), Date: core.MustParseDate("2025-08-02")},
		{Kind: core.KindExpense, Category: "food", Amount: dec("1.00"), Date: core.MustParseDate("2025-08-02")},
		{Kind: core.KindExpense, Category: "Gifts", Amount: dec("0"), Date: core.MustParseDate("2025-08-02")},
		{Kind: core.KindExpense, Category: "Rent", Amount: dec("800"), Date: core.MustParseDate("2025-07-01")},
	} {
		_, err := s.AppendTransaction(ctx, tx)
		require.NoError(t, err)
	}
	return s, ledger.NewQuery(s, s)
}

var aug = period.Range{Start: core.MustParseDate("2025-08-01"), End: core.MustParseDate("2025-08-02")}

func TestCategorySums(t *testing.T) {
	_, q := seeded(t)
	sums, err := q.CategorySums(context.Background(), aug)
	require.NoError(t, err)

	require.Len(t, sums, 3)
	assert.True(t, dec("19.50").Equal(sums["Food"]))
	assert.True(t, dec("1").Equal(sums["food"]), "categories group on the exact string")
	assert.Contains(t, sums, "Gifts", "zero amount categories are kept")
}

func TestResistedTotal(t *testing.T) {
	_, q := seeded(t)
	total, err := q.ResistedTotal(context.Background(), aug)
	require.NoError(t, err)
	assert.True(t, dec("5").Equal(total))
}

func TestTransactionsCreationOrder(t *testing.T) {
	_, q := seeded(t)
	txs, err := q.Transactions(context.Background(), aug, core.KindExpense)
	require.NoError(t, err)
	require.Len(t, txs, 4)
	for i := 1; i < len(txs); i++ {
		assert.Less(t, txs[i-1].ID, txs[i].ID)
	}
}

func TestBucketSums(t *testing.T) {
	_, q := seeded(t)
	r := period.Range{Start: core.MustParseDate("2025-07-01"), End: core.MustParseDate("2025-08-31")}

	sums, err := q.BucketSums(context.Background(), r, period.Month, core.KindExpense)
	require.NoError(t, err)
	assert.True(t, dec("800").Equal(sums["2025-07"]))
	assert.True(t, dec("20.50").Equal(sums["2025-08"]))

	_, err = q.BucketSums(context.Background(), r, period.Granularity("year"), core.KindExpense)
	assert.ErrorIs(t, err, period.ErrInvalidGranularity)
}

type failingStore struct {
	ledger.Store
	calls atomic.Int32
}

var errDisk = errors.New("disk on fire")

func (f *failingStore) ListTransactions(context.Context, ledger.TransactionFilter) ([]core.Transaction, error) {
	f.calls.Add(1)
	return nil, errDisk
}

func (f *failingStore) ListSnapshots(context.Context, core.Date) ([]core.ValuationSnapshot, error) {
	f.calls.Add(1)
	return nil, errDisk
}

func TestInvertedRangeIsEmptyAndSkipsStore(t *testing.T) {
	f := &failingStore{}
	q := ledger.NewQuery(f, f)
	inverted := period.Range{Start: core.MustParseDate("2025-08-02"), End: core.MustParseDate("2025-08-01")}

	sums, err := q.CategorySums(context.Background(), inverted)
	require.NoError(t, err)
	assert.Empty(t, sums)

	rec, err := q.Fetch(context.Background(), inverted)
	require.NoError(t, err)
	assert.Empty(t, rec.Expenses)
	assert.Empty(t, rec.Resisted)

	buckets, err := q.BucketSums(context.Background(), inverted, period.Day, core.KindResisted)
	require.NoError(t, err)
	assert.Empty(t, buckets)
	assert.Zero(t, f.calls.Load())
}

func TestStoreFailureIsWrapped(t *testing.T) {
	f := &failingStore{}
	q := ledger.NewQuery(f, f)

	_, err := q.Fetch(context.Background(), aug)
	assert.ErrorIs(t, err, ledger.ErrStoreUnavailable)
	assert.ErrorIs(t, err, errDisk)

	_, err = q.CumulativeExpenses(context.Background(), aug.End)
	assert.ErrorIs(t, err, ledger.ErrStoreUnavailable)

	_, err = q.LatestValuations(context.Background(), aug.End)
	assert.ErrorIs(t, err, ledger.ErrStoreUnavailable)
}

func TestCumulativeExpensesExcludesResisted(t *testing.T) {
	_, q := seeded(t)
	total, err := q.CumulativeExpenses(context.Background(), core.MustParseDate("2025-08-01"))
	require.NoError(t, err)
	assert.True(t, dec("812.50").Equal(total))
}

func TestLatestPerAsset(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	snaps := []core.ValuationSnapshot{
		{ID: 1, AssetID: 1, TotalValue: dec("100"), AsOf: core.MustParseDate("2025-01-01"), RecordedAt: base},
		{ID: 2, AssetID: 1, TotalValue: dec("150"), AsOf: core.MustParseDate("2025-06-01"), RecordedAt: base.Add(time.Hour)},
		{ID: 3, AssetID: 2, TotalValue: dec("10"), AsOf: core.MustParseDate("2025-02-01"), RecordedAt: base},
		{ID: 4, AssetID: 2, TotalValue: dec("11"), AsOf: core.MustParseDate("2025-02-01"), RecordedAt: base},
	}

	tests := []struct {
		name  string
		asOf  string
		want1 string
		want2 string
	}{
		{"before second snapshot", "2025-03-01", "100", "11"},
		{"after second snapshot", "2025-07-01", "150", "11"},
		{"before any", "2024-12-31", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ledger.LatestPerAsset(snaps, core.MustParseDate(tt.asOf))
			check := func(id int64, want string) {
				s, ok := got[id]
				if want == "" {
					assert.False(t, ok)
					return
				}
				require.True(t, ok)
				assert.True(t, dec(want).Equal(s.TotalValue), "asset %d: got %s", id, s.TotalValue)
			}
			check(1, tt.want1)
			check(2, tt.want2)
		})
	}
}

func TestLatestValuationsAt(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	a, err := s.CreateAsset(ctx, core.Asset{
		Type: core.AssetCash, Name: "Savings", Quantity: dec("1"), PurchasePrice: dec("100"),
		PurchaseDate: core.MustParseDate("2025-01-01"),
	})
	require.NoError(t, err)
	_, err = s.AppendSnapshot(ctx, a.Valuation(dec("150"), core.MustParseDate("2025-06-01")))
	require.NoError(t, err)

	q := ledger.NewQuery(s, s)
	got, err := q.LatestValuationsAt(ctx, []core.Date{core.MustParseDate("2025-03-01"), core.MustParseDate("2025-07-01")})
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(got["2025-03-01"][a.ID].TotalValue))
	assert.True(t, dec("150").Equal(got["2025-07-01"][a.ID].TotalValue))
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"2025-W52", "2026-W01"}, ledger.SortedKeys(map[string]int{"2026-W01": 1, "2025-W52": 2}))
}
