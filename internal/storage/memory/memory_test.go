package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core"
	"tally/internal/ledger"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAppendAndListTransactions(t *testing.T) {
	ctx := context.Background()
	s := New(WithClock(fixedClock(time.Date(2025, 8, 3, 10, 0, 0, 0, time.UTC))))

	add := func(kind core.Kind, cat, amount, date string) core.Transaction {
		t.Helper()
		tx, err := s.AppendTransaction(ctx, core.Transaction{
			Kind: kind, Category: cat, Amount: decimal.RequireFromString(amount), Date: core.MustParseDate(date),
		})
		require.NoError(t, err)
		return tx
	}
	first := add(core.KindExpense, "Food", "12.50", "2025-08-01")
	add(core.KindResisted, "Food", "5.00", "2025-08-02")
	add(core.KindExpense, "Rent", "800", "2025-09-01")

	assert.NotZero(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	all, err := s.ListTransactions(ctx, ledger.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	expenses, err := s.ListTransactions(ctx, ledger.TransactionFilter{
		Kind: core.KindExpense, From: core.MustParseDate("2025-08-01"), To: core.MustParseDate("2025-08-31"),
	})
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, first.ID, expenses[0].ID)
}

func TestAppendTransactionRejectsInvalid(t *testing.T) {
	s := New()
	_, err := s.AppendTransaction(context.Background(), core.Transaction{
		Kind: core.KindExpense, Category: "Food", Amount: decimal.NewFromInt(-1), Date: core.MustParseDate("2025-08-01"),
	})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestCreateAssetWritesInitialSnapshot(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, err := s.CreateAsset(ctx, core.Asset{
		Type: core.AssetStock, Name: "ACME", Quantity: decimal.NewFromInt(4),
		PurchasePrice: decimal.NewFromInt(25), PurchaseDate: core.MustParseDate("2025-01-01"),
	})
	require.NoError(t, err)

	snaps, err := s.ListSnapshots(ctx, core.MustParseDate("2025-01-01"))
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, a.ID, snaps[0].AssetID)
	assert.True(t, decimal.NewFromInt(100).Equal(snaps[0].TotalValue))

	none, err := s.ListSnapshots(ctx, core.MustParseDate("2024-12-31"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAppendSnapshotUnknownAsset(t *testing.T) {
	_, err := New().AppendSnapshot(context.Background(), core.ValuationSnapshot{
		AssetID: 42, Price: decimal.NewFromInt(1), TotalValue: decimal.NewFromInt(1), AsOf: core.MustParseDate("2025-01-01"),
	})
	assert.ErrorIs(t, err, ledger.ErrAssetNotFound)
}

func TestNetWorthUpsertAndList(t *testing.T) {
	ctx := context.Background()
	s := New()
	d := core.MustParseDate("2025-03-01")

	require.NoError(t, s.UpsertNetWorth(ctx, core.NetWorthPoint{Date: d, NetWorth: decimal.NewFromInt(10)}))
	require.NoError(t, s.UpsertNetWorth(ctx, core.NetWorthPoint{Date: d, NetWorth: decimal.NewFromInt(20)}))
	require.NoError(t, s.UpsertNetWorth(ctx, core.NetWorthPoint{Date: d.AddDays(-1), NetWorth: decimal.NewFromInt(5)}))

	got, err := s.GetNetWorth(ctx, d)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(20).Equal(got.NetWorth))

	pts, err := s.ListNetWorth(ctx, d.AddDays(-7), d)
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.True(t, pts[0].Date.Before(pts[1].Date))

	_, err = s.GetNetWorth(ctx, d.AddDays(1))
	assert.ErrorIs(t, err, ledger.ErrNetWorthNotFound)
}
