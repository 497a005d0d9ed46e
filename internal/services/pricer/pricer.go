// Package pricer exposes exchange spot prices behind one interface.
package pricer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/mpared/folio/internal/domain"
)

// ErrPriceUnavailable marks a lookup failure callers should absorb by
// degrading to "no data" rather than failing their computation.
var ErrPriceUnavailable = errors.New("price unavailable")

// Pricer resolves the current market price of a pair.
type Pricer interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}
