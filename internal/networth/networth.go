// Package networth derives point-in-time net worth: the value of every asset
// as of a date minus all expenses up to that date.
package networth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"tally/internal/core"
	"tally/internal/ledger"
	"tally/internal/period"
)

// Source is the read side a Deriver needs; *ledger.Query satisfies it.
type Source interface {
	Assets(ctx context.Context) ([]core.Asset, error)
	LatestValuations(ctx context.Context, asOf core.Date) (map[int64]core.ValuationSnapshot, error)
	CumulativeExpenses(ctx context.Context, upTo core.Date) (decimal.Decimal, error)
}

// Series is a net worth curve with one entry per occupied bucket. Values are
// the mean of the points recorded in the bucket.
type Series struct {
	Granularity period.Granularity `json:"granularity"`
	Buckets     []period.Bucket    `json:"buckets"`
	NetWorth    []decimal.Decimal  `json:"net_worth"`
	Assets      []decimal.Decimal  `json:"assets"`
	Expenses    []decimal.Decimal  `json:"expenses"`
}

type Deriver struct {
	src   Source
	store ledger.NetWorthStore
	group singleflight.Group
}

func NewDeriver(src Source, store ledger.NetWorthStore) *Deriver {
	return &Deriver{src: src, store: store}
}

// Compute derives the net worth point for date without storing it. An asset
// with no valuation on or before date contributes zero and is logged.
func (d *Deriver) Compute(ctx context.Context, date core.Date) (core.NetWorthPoint, error) {
	var (
		assets   []core.Asset
		latest   map[int64]core.ValuationSnapshot
		expenses decimal.Decimal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		assets, err = d.src.Assets(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		latest, err = d.src.LatestValuations(gctx, date)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = d.src.CumulativeExpenses(gctx, date)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.NetWorthPoint{}, err
	}

	total := decimal.Zero
	for _, a := range assets {
		snap, ok := latest[a.ID]
		if !ok {
			slog.WarnContext(ctx, "Asset has no valuation as of date",
				"component", "networth",
				"condition", "missing_asset_valuation",
				"asset_id", a.ID,
				"asset", a.Name,
				"date", date.String())
			continue
		}
		total = total.Add(snap.TotalValue)
	}

	return core.NetWorthPoint{
		Date:          date,
		TotalAssets:   total,
		TotalExpenses: expenses,
		NetWorth:      total.Sub(expenses),
	}, nil
}

// Record computes and upserts the point for date. Concurrent calls for the
// same date in this process share one computation, which runs detached from
// any single caller's cancellation; each caller waits on its own ctx.
func (d *Deriver) Record(ctx context.Context, date core.Date) (core.NetWorthPoint, error) {
	shared := context.WithoutCancel(ctx)
	ch := d.group.DoChan(date.String(), func() (any, error) {
		p, err := d.Compute(shared, date)
		if err != nil {
			return core.NetWorthPoint{}, err
		}
		if err := d.store.UpsertNetWorth(shared, p); err != nil {
			return core.NetWorthPoint{}, fmt.Errorf("%w: upsert net worth %s: %w", ledger.ErrStoreUnavailable, date, err)
		}
		return p, nil
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return core.NetWorthPoint{}, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return core.NetWorthPoint{}, res.Err
	}
	p := res.Val.(core.NetWorthPoint)
	slog.InfoContext(ctx, "Net worth recorded",
		"component", "networth",
		"date", date.String(),
		"net_worth", p.NetWorth.String(),
		"shared", res.Shared)
	return p, nil
}

// History averages the stored points of r per bucket. Buckets without any
// stored point are left out: a missing level is not a zero level.
func (d *Deriver) History(ctx context.Context, r period.Range, g period.Granularity) (Series, error) {
	if err := g.Validate(); err != nil {
		return Series{}, err
	}
	s := Series{
		Granularity: g,
		Buckets:     []period.Bucket{},
		NetWorth:    []decimal.Decimal{},
		Assets:      []decimal.Decimal{},
		Expenses:    []decimal.Decimal{},
	}
	if r.Empty() {
		return s, nil
	}
	points, err := d.store.ListNetWorth(ctx, r.Start, r.End)
	if err != nil {
		return Series{}, fmt.Errorf("%w: list net worth: %w", ledger.ErrStoreUnavailable, err)
	}

	byBucket := make(map[string][]core.NetWorthPoint)
	for _, p := range points {
		if !r.Contains(p.Date) {
			continue
		}
		key, err := period.BucketKey(p.Date, g)
		if err != nil {
			return Series{}, err
		}
		byBucket[key] = append(byBucket[key], p)
	}

	for _, key := range ledger.SortedKeys(byBucket) {
		b, err := period.NewBucket(key, g)
		if err != nil {
			return Series{}, err
		}
		pts := byBucket[key]
		net := make([]decimal.Decimal, len(pts))
		assets := make([]decimal.Decimal, len(pts))
		expenses := make([]decimal.Decimal, len(pts))
		for i, p := range pts {
			net[i], assets[i], expenses[i] = p.NetWorth, p.TotalAssets, p.TotalExpenses
		}
		s.Buckets = append(s.Buckets, b)
		s.NetWorth = append(s.NetWorth, core.Mean(net))
		s.Assets = append(s.Assets, core.Mean(assets))
		s.Expenses = append(s.Expenses, core.Mean(expenses))
	}
	return s, nil
}
