package services

import (
	"context"
	"log/slog"

	"tally/internal/core"
	"tally/internal/ledger"
	"tally/internal/networth"
	"tally/internal/period"
	"tally/internal/report"
)

// Engine is the read-side entry point: range resolution, reports and the
// net worth curve over one store.
type Engine struct {
	cal   Calendar
	query *ledger.Query
	agg   *report.Aggregator
	nw    *networth.Deriver
}

func NewEngine(store ledger.Store, cal Calendar) *Engine {
	q := ledger.NewQuery(store, store)
	return &Engine{
		cal:   cal,
		query: q,
		agg:   report.NewAggregator(q),
		nw:    networth.NewDeriver(q, store),
	}
}

func (e *Engine) Today() core.Date {
	return e.cal.Today()
}

// Resolve never fails: an unreadable spec resolves to today.
func (e *Engine) Resolve(ctx context.Context, spec string) period.Range {
	today := e.cal.Today()
	r, err := period.Parse(spec, today)
	if err != nil {
		slog.DebugContext(ctx, "Range spec not understood, using today",
			"component", "engine",
			"spec", spec,
			"error", err)
		return period.Single(today)
	}
	return r
}

func (e *Engine) Summarize(ctx context.Context, r period.Range) (report.Summary, error) {
	return e.agg.Summarize(ctx, r)
}

func (e *Engine) Detail(ctx context.Context, r period.Range) (report.Detail, error) {
	return e.agg.Detail(ctx, r)
}

func (e *Engine) TimeSeries(ctx context.Context, r period.Range, g period.Granularity) (report.TimeSeries, error) {
	return e.agg.TimeSeries(ctx, r, g)
}

func (e *Engine) SummaryGrouped(ctx context.Context, r period.Range, g period.Granularity) ([]report.PeriodSummary, error) {
	return e.agg.SummaryGrouped(ctx, r, g)
}

func (e *Engine) DetailGrouped(ctx context.Context, r period.Range, g period.Granularity) ([]report.PeriodDetail, error) {
	return e.agg.DetailGrouped(ctx, r, g)
}

func (e *Engine) History(ctx context.Context, r period.Range, g period.Granularity) (networth.Series, error) {
	return e.nw.History(ctx, r, g)
}

// RecordNetWorth stores the net worth point for date; a zero date means today.
func (e *Engine) RecordNetWorth(ctx context.Context, date core.Date) (core.NetWorthPoint, error) {
	if date.IsZero() {
		date = e.cal.Today()
	}
	return e.nw.Record(ctx, date)
}
