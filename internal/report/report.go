// Package report turns the records of a range into category summaries,
// itemized detail and bucket-aligned series. Every result is plain data;
// formatting for display belongs to the caller.
package report

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"tally/internal/core"
	"tally/internal/ledger"
	"tally/internal/period"
)

// Source provides the expense and resisted records of a range.
type Source interface {
	Fetch(ctx context.Context, r period.Range) (ledger.Records, error)
}

type (
	Summary struct {
		ExpensesByCategory map[string]decimal.Decimal `json:"expenses_by_category"`
		// Categories lists the keys of ExpensesByCategory by descending amount, then name.
		Categories    []string        `json:"categories"`
		TotalExpenses decimal.Decimal `json:"total_expenses"`
		TotalResisted decimal.Decimal `json:"total_resisted"`
	}

	Detail struct {
		// Each list is in creation order.
		ExpensesByCategory map[string][]core.Transaction `json:"expenses_by_category"`
		// Categories lists the keys of ExpensesByCategory by name.
		Categories []string           `json:"categories"`
		Resisted   []core.Transaction `json:"resisted"`
	}

	// TimeSeries has one entry per bucket in Buckets; empty buckets hold zero.
	TimeSeries struct {
		Granularity period.Granularity `json:"granularity"`
		Buckets     []period.Bucket    `json:"buckets"`
		Expenses    []decimal.Decimal  `json:"expenses"`
		Resisted    []decimal.Decimal  `json:"resisted"`
	}

	PeriodSummary struct {
		Bucket period.Bucket `json:"bucket"`
		Summary
	}

	PeriodDetail struct {
		Bucket period.Bucket `json:"bucket"`
		Detail
	}
)

type Aggregator struct {
	src Source
}

func NewAggregator(src Source) *Aggregator {
	return &Aggregator{src: src}
}

func (a *Aggregator) Summarize(ctx context.Context, r period.Range) (Summary, error) {
	rec, err := a.src.Fetch(ctx, r)
	if err != nil {
		return Summary{}, err
	}
	s := summarize(rec)
	slog.DebugContext(ctx, "Summary computed",
		"component", "report",
		"range", r.String(),
		"categories", len(s.Categories),
		"total_expenses", s.TotalExpenses.String())
	return s, nil
}

func (a *Aggregator) Detail(ctx context.Context, r period.Range) (Detail, error) {
	rec, err := a.src.Fetch(ctx, r)
	if err != nil {
		return Detail{}, err
	}
	return detail(rec), nil
}

// TimeSeries aligns both kinds on every bucket that overlaps r.
func (a *Aggregator) TimeSeries(ctx context.Context, r period.Range, g period.Granularity) (TimeSeries, error) {
	buckets, err := period.Buckets(r, g)
	if err != nil {
		return TimeSeries{}, err
	}
	rec, err := a.src.Fetch(ctx, r)
	if err != nil {
		return TimeSeries{}, err
	}
	expenses, err := ledger.SumByBucket(rec.Expenses, g)
	if err != nil {
		return TimeSeries{}, err
	}
	resisted, err := ledger.SumByBucket(rec.Resisted, g)
	if err != nil {
		return TimeSeries{}, err
	}

	ts := TimeSeries{
		Granularity: g,
		Buckets:     buckets,
		Expenses:    make([]decimal.Decimal, len(buckets)),
		Resisted:    make([]decimal.Decimal, len(buckets)),
	}
	for i, b := range buckets {
		// missing keys read as decimal.Zero
		ts.Expenses[i] = expenses[b.Key]
		ts.Resisted[i] = resisted[b.Key]
	}
	return ts, nil
}

// SummaryGrouped summarizes each occupied bucket of r, ascending by key. A
// bucket with only resisted records still appears.
func (a *Aggregator) SummaryGrouped(ctx context.Context, r period.Range, g period.Granularity) ([]PeriodSummary, error) {
	groups, err := a.grouped(ctx, r, g)
	if err != nil {
		return nil, err
	}
	out := make([]PeriodSummary, 0, len(groups))
	for _, grp := range groups {
		out = append(out, PeriodSummary{Bucket: grp.bucket, Summary: summarize(grp.records)})
	}
	return out, nil
}

// DetailGrouped is SummaryGrouped with itemized records.
func (a *Aggregator) DetailGrouped(ctx context.Context, r period.Range, g period.Granularity) ([]PeriodDetail, error) {
	groups, err := a.grouped(ctx, r, g)
	if err != nil {
		return nil, err
	}
	out := make([]PeriodDetail, 0, len(groups))
	for _, grp := range groups {
		out = append(out, PeriodDetail{Bucket: grp.bucket, Detail: detail(grp.records)})
	}
	return out, nil
}

type group struct {
	bucket  period.Bucket
	records ledger.Records
}

func (a *Aggregator) grouped(ctx context.Context, r period.Range, g period.Granularity) ([]group, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	rec, err := a.src.Fetch(ctx, r)
	if err != nil {
		return nil, err
	}
	expenses, err := ledger.GroupByBucket(rec.Expenses, g)
	if err != nil {
		return nil, err
	}
	resisted, err := ledger.GroupByBucket(rec.Resisted, g)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]struct{}, len(expenses)+len(resisted))
	for k := range expenses {
		keys[k] = struct{}{}
	}
	for k := range resisted {
		keys[k] = struct{}{}
	}

	out := make([]group, 0, len(keys))
	for _, k := range ledger.SortedKeys(keys) {
		b, err := period.NewBucket(k, g)
		if err != nil {
			return nil, err
		}
		out = append(out, group{
			bucket:  b,
			records: ledger.Records{Expenses: expenses[k], Resisted: resisted[k]},
		})
	}
	return out, nil
}

func summarize(rec ledger.Records) Summary {
	byCategory := ledger.SumByCategory(rec.Expenses)
	ranked := core.SortedByAmount(byCategory)
	names := make([]string, len(ranked))
	for i, c := range ranked {
		names[i] = c.Name
	}
	return Summary{
		ExpensesByCategory: byCategory,
		Categories:         names,
		TotalExpenses:      ledger.Total(rec.Expenses),
		TotalResisted:      ledger.Total(rec.Resisted),
	}
}

func detail(rec ledger.Records) Detail {
	byCategory := ledger.GroupByCategory(rec.Expenses)
	resisted := rec.Resisted
	if resisted == nil {
		resisted = []core.Transaction{}
	}
	return Detail{
		ExpensesByCategory: byCategory,
		Categories:         ledger.SortedKeys(byCategory),
		Resisted:           resisted,
	}
}
