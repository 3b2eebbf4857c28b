package services

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"tally/internal/core"
)

var hundred = decimal.NewFromInt(100)

type (
	// Holding is one asset priced at its latest valuation.
	Holding struct {
		Asset core.Asset `json:"asset"`
		// Valued is false when no snapshot exists on or before the portfolio date.
		Valued       bool            `json:"valued"`
		CurrentPrice decimal.Decimal `json:"current_price"`
		CurrentValue decimal.Decimal `json:"current_value"`
		CostBasis    decimal.Decimal `json:"cost_basis"`
		GainLoss     decimal.Decimal `json:"gain_loss"`
		// GainLossPct is the price change against purchase price, in percent.
		GainLossPct decimal.Decimal `json:"gain_loss_pct"`
		ValuedAsOf  core.Date       `json:"valued_as_of"`
	}

	AssetGroup struct {
		Type     core.AssetType  `json:"type"`
		Holdings []Holding       `json:"holdings"`
		Total    decimal.Decimal `json:"total"`
	}

	Portfolio struct {
		AsOf      core.Date       `json:"as_of"`
		Groups    []AssetGroup    `json:"groups"`
		Total     decimal.Decimal `json:"total"`
		CostBasis decimal.Decimal `json:"cost_basis"`
		GainLoss  decimal.Decimal `json:"gain_loss"`
	}
)

// Portfolio lists every asset with its value as of asOf (today when zero),
// grouped by type. Groups are ordered by type, holdings by name. Assets not
// yet valued on asOf are listed but left out of the cost basis.
func (e *Engine) Portfolio(ctx context.Context, asOf core.Date) (Portfolio, error) {
	if asOf.IsZero() {
		asOf = e.cal.Today()
	}

	var (
		assets []core.Asset
		latest map[int64]core.ValuationSnapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		assets, err = e.query.Assets(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		latest, err = e.query.LatestValuations(gctx, asOf)
		return err
	})
	if err := g.Wait(); err != nil {
		return Portfolio{}, err
	}

	byType := make(map[core.AssetType][]Holding)
	for _, a := range assets {
		byType[a.Type] = append(byType[a.Type], holding(a, latest))
	}

	p := Portfolio{AsOf: asOf, Groups: []AssetGroup{}, Total: decimal.Zero, CostBasis: decimal.Zero}
	types := make([]core.AssetType, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	for _, t := range types {
		hs := byType[t]
		sort.SliceStable(hs, func(i, j int) bool { return hs[i].Asset.Name < hs[j].Asset.Name })
		grp := AssetGroup{Type: t, Holdings: hs, Total: decimal.Zero}
		for _, h := range hs {
			grp.Total = grp.Total.Add(h.CurrentValue)
			if h.Valued {
				p.CostBasis = p.CostBasis.Add(h.CostBasis)
			}
		}
		p.Total = p.Total.Add(grp.Total)
		p.Groups = append(p.Groups, grp)
	}
	p.GainLoss = p.Total.Sub(p.CostBasis)
	return p, nil
}

func holding(a core.Asset, latest map[int64]core.ValuationSnapshot) Holding {
	h := Holding{
		Asset:     a,
		CostBasis: a.PurchasePrice.Mul(a.Quantity),
	}
	snap, ok := latest[a.ID]
	if !ok {
		return h
	}
	h.Valued = true
	h.CurrentPrice = snap.Price
	h.CurrentValue = snap.TotalValue
	h.ValuedAsOf = snap.AsOf
	h.GainLoss = snap.TotalValue.Sub(h.CostBasis)
	if a.PurchasePrice.IsPositive() {
		h.GainLossPct = snap.Price.Sub(a.PurchasePrice).Div(a.PurchasePrice).Mul(hundred).Round(2)
	}
	return h
}
