// Package domain holds the portfolio tracker's core data structures and
// the pure accounting/planning functions operating on them.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TxType is the kind of a ledger transaction.
type TxType string

const (
	TxBuy      TxType = "BUY"
	TxSell     TxType = "SELL"
	TxSwap     TxType = "SWAP"
	TxDeposit  TxType = "DEPOSIT"
	TxWithdraw TxType = "WITHDRAW"
	TxFee      TxType = "FEE"
)

// Transaction is a single immutable entry of a portfolio's ledger.
// Replay order is ascending Timestamp, ties resolved by insertion order.
type Transaction struct {
	ID        string    `json:"id"`
	Portfolio string    `json:"portfolio"`
	Type      TxType    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// BaseAsset/BaseQty: the asset directly acquired or disposed. Absent for FEE.
	BaseAsset string          `json:"base_asset,omitempty"`
	BaseQty   decimal.Decimal `json:"base_qty"`

	// QuoteAsset/QuoteQty: counter side for BUY/SELL/SWAP. For BUY/SELL the
	// quote quantity is USD paid/received; for SWAP it is the quantity of the
	// asset received.
	QuoteAsset string          `json:"quote_asset,omitempty"`
	QuoteQty   decimal.Decimal `json:"quote_qty"`

	// ValueUSD: SWAP only, USD value of the swap. When nil the quote quantity
	// is assumed to already be USD denominated (swap into a stablecoin).
	ValueUSD *decimal.Decimal `json:"value_usd,omitempty"`

	// CostBasisUSD: DEPOSIT only. When nil the deposit contributes quantity
	// at zero cost, which under-costs the position. Allowed, not an error.
	CostBasisUSD *decimal.Decimal `json:"cost_basis_usd,omitempty"`

	// FeeAsset/FeeQty: optional on any type, mandatory on FEE.
	FeeAsset string          `json:"fee_asset,omitempty"`
	FeeQty   decimal.Decimal `json:"fee_qty"`
}

// Validate checks the per-type field requirements before a transaction is
// accepted into the ledger.
func (t Transaction) Validate() error {
	switch t.Type {
	case TxBuy, TxSell, TxSwap:
		if t.BaseAsset == "" || !t.BaseQty.IsPositive() {
			return fmt.Errorf("%s transaction requires a base asset and positive base quantity", t.Type)
		}
		if t.QuoteAsset == "" || !t.QuoteQty.IsPositive() {
			return fmt.Errorf("%s transaction requires a quote asset and positive quote quantity", t.Type)
		}
	case TxDeposit, TxWithdraw:
		if t.BaseAsset == "" || !t.BaseQty.IsPositive() {
			return fmt.Errorf("%s transaction requires a base asset and positive base quantity", t.Type)
		}
	case TxFee:
		if t.FeeAsset == "" || !t.FeeQty.IsPositive() {
			return fmt.Errorf("FEE transaction requires a fee asset and positive fee quantity")
		}
	default:
		return fmt.Errorf("unknown transaction type %q", t.Type)
	}

	if t.FeeAsset != "" && t.FeeQty.IsNegative() {
		return fmt.Errorf("fee quantity must not be negative")
	}
	if t.ValueUSD != nil && t.Type != TxSwap {
		return fmt.Errorf("value_usd is only valid on SWAP transactions")
	}
	if t.CostBasisUSD != nil && t.Type != TxDeposit {
		return fmt.Errorf("cost_basis_usd is only valid on DEPOSIT transactions")
	}

	return nil
}
