package domain

import "github.com/shopspring/decimal"

// Position is the derived holding of one asset inside a portfolio. It is
// never persisted; Replay recomputes it from the full transaction history.
type Position struct {
	Asset   string          `json:"asset"`
	Qty     decimal.Decimal `json:"qty"`
	CostUSD decimal.Decimal `json:"cost_usd"`
}

// AvgCostUSD returns the weighted average acquisition cost per unit,
// zero when the position holds nothing.
func (p Position) AvgCostUSD() decimal.Decimal {
	if p.Qty.IsZero() {
		return decimal.Zero
	}
	return p.CostUSD.Div(p.Qty)
}

// Positions maps an asset symbol to its derived position.
type Positions map[string]Position
