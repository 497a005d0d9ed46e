package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidZoneRange reports a zone whose lower price edge is not below
// its upper edge. Raised at definition write time, never by the planner.
var ErrInvalidZoneRange = errors.New("zone price range invalid: price_min must be below price_max")

// ErrAllocationOverflow reports sibling zones (same portfolio and asset)
// whose base percentages sum above 100.
var ErrAllocationOverflow = errors.New("zone allocation overflow: sibling base percentages exceed 100")

// Zone is a user-defined price-range bucket with a planned share of the
// capital pool, used for staged buying on the way down.
type Zone struct {
	ID          string          `json:"id"`
	Portfolio   string          `json:"portfolio"`
	Asset       string          `json:"asset"`
	Label       string          `json:"label,omitempty"`
	PriceMin    decimal.Decimal `json:"price_min"`
	PriceMax    decimal.Decimal `json:"price_max"`
	PercentBase decimal.Decimal `json:"percent_base"`
	Order       int             `json:"order"`
	Executed    bool            `json:"executed"`
}

// Validate enforces the write-time constraints of a single zone. The
// sibling-sum constraint is enforced by the store, which sees the whole set.
func (z Zone) Validate() error {
	if z.PriceMin.GreaterThanOrEqual(z.PriceMax) {
		return errors.Wrapf(ErrInvalidZoneRange, "zone %s: min %s, max %s", z.ID, z.PriceMin, z.PriceMax)
	}
	if z.PercentBase.IsNegative() || z.PercentBase.GreaterThan(decimal.NewFromInt(100)) {
		return errors.Errorf("zone %s: percent_base must be within 0..100, got %s", z.ID, z.PercentBase)
	}
	return nil
}

// ValidateZoneSet checks every zone individually and the sibling allocation
// sum per (portfolio, asset) group.
func ValidateZoneSet(zones []Zone) error {
	sums := make(map[string]decimal.Decimal)
	for _, z := range zones {
		if err := z.Validate(); err != nil {
			return err
		}
		key := z.Portfolio + "/" + z.Asset
		sums[key] = sums[key].Add(z.PercentBase)
	}
	for key, sum := range sums {
		if sum.GreaterThan(decimal.NewFromInt(100)) {
			return errors.Wrapf(ErrAllocationOverflow, "%s allocates %s%%", key, sum)
		}
	}
	return nil
}
