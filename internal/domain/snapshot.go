package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PriceFunc resolves the current USD price of an asset. The second return
// is false when no price is known; valuation then falls back to zero
// instead of failing.
type PriceFunc func(asset string) (decimal.Decimal, bool)

// PositionValuation is the frozen per-asset view captured in a snapshot.
type PositionValuation struct {
	Asset      string          `json:"asset"`
	Qty        decimal.Decimal `json:"qty"`
	AvgCostUSD decimal.Decimal `json:"avg_cost_usd"`
	PriceUSD   decimal.Decimal `json:"price_usd"`
	ValueUSD   decimal.Decimal `json:"value_usd"`
	CostUSD    decimal.Decimal `json:"cost_usd"`
	PnlUSD     decimal.Decimal `json:"pnl_usd"`
	PnlPct     decimal.Decimal `json:"pnl_pct"`
}

// PortfolioSnapshot is a timestamped valuation of a whole portfolio.
// Immutable once created: a frozen view, never recomputed retroactively.
type PortfolioSnapshot struct {
	Portfolio     string              `json:"portfolio"`
	TakenAt       time.Time           `json:"taken_at"`
	ValueUSD      decimal.Decimal     `json:"value_usd"`
	CostBasisUSD  decimal.Decimal     `json:"cost_basis_usd"`
	UnrealizedPnl decimal.Decimal     `json:"unrealized_pnl"`
	UnrealizedPct decimal.Decimal     `json:"unrealized_pct"`
	Positions     []PositionValuation `json:"positions"`
}

// SnapshotRecord pairs a persisted snapshot with its storage index, used
// by streaming readers.
type SnapshotRecord struct {
	Index    uint64            `json:"index"`
	Snapshot PortfolioSnapshot `json:"snapshot"`
}

// BuildSnapshot values every held position at the supplied prices. Missing
// prices value as zero, never error. A portfolio with no held positions
// still snapshots, with zero totals and an empty position list.
func BuildSnapshot(portfolio string, positions Positions, priceOf PriceFunc, at time.Time) PortfolioSnapshot {
	snap := PortfolioSnapshot{
		Portfolio:     portfolio,
		TakenAt:       at,
		ValueUSD:      decimal.Zero,
		CostBasisUSD:  decimal.Zero,
		UnrealizedPnl: decimal.Zero,
		UnrealizedPct: decimal.Zero,
		Positions:     make([]PositionValuation, 0, len(positions)),
	}

	assets := make([]string, 0, len(positions))
	for asset := range positions {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	for _, asset := range assets {
		pos := positions[asset]
		if !pos.Qty.IsPositive() {
			continue
		}

		price := decimal.Zero
		if p, ok := priceOf(asset); ok {
			price = p
		}

		value := pos.Qty.Mul(price)
		pnl := value.Sub(pos.CostUSD)
		pnlPct := decimal.Zero
		if !pos.CostUSD.IsZero() {
			pnlPct = pnl.Div(pos.CostUSD).Mul(decimal.NewFromInt(100))
		}

		snap.Positions = append(snap.Positions, PositionValuation{
			Asset:      asset,
			Qty:        pos.Qty,
			AvgCostUSD: pos.AvgCostUSD(),
			PriceUSD:   price,
			ValueUSD:   value,
			CostUSD:    pos.CostUSD,
			PnlUSD:     pnl,
			PnlPct:     pnlPct,
		})

		snap.ValueUSD = snap.ValueUSD.Add(value)
		snap.CostBasisUSD = snap.CostBasisUSD.Add(pos.CostUSD)
	}

	snap.UnrealizedPnl = snap.ValueUSD.Sub(snap.CostBasisUSD)
	if !snap.CostBasisUSD.IsZero() {
		snap.UnrealizedPct = snap.UnrealizedPnl.Div(snap.CostBasisUSD).Mul(decimal.NewFromInt(100))
	}

	return snap
}
