// Package wallet exposes exchange account balances, used as the capital
// pool lookup for the zone planner.
package wallet

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrCapitalUnavailable marks a balance lookup failure callers should
// absorb by degrading to zero capital rather than failing the plan.
var ErrCapitalUnavailable = errors.New("capital balance unavailable")

// BalanceSource resolves the free balance of one currency.
type BalanceSource interface {
	Balance(ctx context.Context, currency string) (decimal.Decimal, error)
}
