package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// InsufficientBalanceError reports a disposal exceeding the quantity a
// position holds at that point of the replay. It aborts the whole replay:
// callers must not persist anything derived from a failed run.
type InsufficientBalanceError struct {
	Asset     string
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: required %s, available %s",
		e.Asset, e.Required.String(), e.Available.String())
}

// Replay folds a portfolio's transactions, in ascending timestamp order,
// into per-asset positions using weighted average cost accounting.
//
// Pure and deterministic: no I/O, no state across calls. The input slice is
// not mutated. On error no positions are returned, so a failed replay can
// never leak a partially applied state.
func Replay(txs []Transaction) (Positions, error) {
	ordered := make([]Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	acc := make(Positions)
	for _, tx := range ordered {
		if err := apply(acc, tx); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func apply(acc Positions, tx Transaction) error {
	switch tx.Type {
	case TxBuy:
		credit(acc, tx.BaseAsset, tx.BaseQty, tx.QuoteQty)
	case TxSell:
		if err := debit(acc, tx.BaseAsset, tx.BaseQty); err != nil {
			return err
		}
	case TxSwap:
		// atomic SELL of the base leg followed by a BUY of the quote leg
		if err := debit(acc, tx.BaseAsset, tx.BaseQty); err != nil {
			return err
		}
		cost := tx.QuoteQty // swap-to-stable shortcut: quote qty already USD
		if tx.ValueUSD != nil {
			cost = *tx.ValueUSD
		}
		credit(acc, tx.QuoteAsset, tx.QuoteQty, cost)
	case TxDeposit:
		cost := decimal.Zero
		if tx.CostBasisUSD != nil {
			cost = *tx.CostBasisUSD
		}
		credit(acc, tx.BaseAsset, tx.BaseQty, cost)
	case TxWithdraw:
		if err := debit(acc, tx.BaseAsset, tx.BaseQty); err != nil {
			return err
		}
	case TxFee:
		// standalone fee, applied below with any attached fee
	default:
		return fmt.Errorf("unknown transaction type %q", tx.Type)
	}

	if tx.FeeAsset != "" && tx.FeeQty.IsPositive() {
		applyFee(acc, tx.FeeAsset, tx.FeeQty)
	}

	return nil
}

// credit adds quantity at the given USD cost and re-averages the position.
func credit(acc Positions, asset string, qty, costUSD decimal.Decimal) {
	pos := acc[asset]
	pos.Asset = asset
	pos.Qty = pos.Qty.Add(qty)
	pos.CostUSD = pos.CostUSD.Add(costUSD)
	acc[asset] = pos
}

// debit removes quantity at the pre-disposal average cost. The realized
// gain or loss is implicit and not separately tracked.
func debit(acc Positions, asset string, qty decimal.Decimal) error {
	pos := acc[asset]
	if pos.Qty.LessThan(qty) {
		return &InsufficientBalanceError{Asset: asset, Required: qty, Available: pos.Qty}
	}

	avg := pos.AvgCostUSD()
	pos.Asset = asset
	pos.Qty = pos.Qty.Sub(qty)
	if pos.Qty.IsZero() {
		pos.CostUSD = decimal.Zero
	} else {
		pos.CostUSD = pos.CostUSD.Sub(avg.Mul(qty))
	}
	acc[asset] = pos
	return nil
}

// applyFee shrinks the fee asset's quantity and writes its cost basis down
// by the proportion the fee represents of the pre-fee quantity:
// proportion = feeQty / (qtyAfterFee + feeQty).
//
// A fee exceeding the held quantity (reachable only through a swap's
// attached fee) zeroes the position instead of driving it negative. That is
// a fallback for inconsistent histories, not a correctness guarantee.
func applyFee(acc Positions, asset string, feeQty decimal.Decimal) {
	pos := acc[asset]
	pos.Asset = asset

	qtyAfter := pos.Qty.Sub(feeQty)
	if !qtyAfter.IsPositive() {
		pos.Qty = decimal.Zero
		pos.CostUSD = decimal.Zero
		acc[asset] = pos
		return
	}

	proportion := feeQty.Div(qtyAfter.Add(feeQty))
	pos.Qty = qtyAfter
	pos.CostUSD = pos.CostUSD.Mul(decimal.NewFromInt(1).Sub(proportion))
	acc[asset] = pos
}
