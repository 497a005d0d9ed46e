package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ZoneStatus is the live state of a buy zone relative to the current price.
type ZoneStatus string

const (
	// ZoneActive: price is inside the zone's range right now.
	ZoneActive ZoneStatus = "ACTIVE"
	// ZoneWaiting: the zone sits below the current price and is still
	// reachable on further decline.
	ZoneWaiting ZoneStatus = "WAITING"
	// ZoneSkipped: price fell past the zone without it executing; its range
	// is now entirely above the current price.
	ZoneSkipped ZoneStatus = "SKIPPED"
	// ZoneFilled: the zone was marked executed.
	ZoneFilled ZoneStatus = "FILLED"
)

// ComputedZone is the planner's derived view of one zone. Never persisted;
// recomputed on every invocation.
type ComputedZone struct {
	Zone            Zone            `json:"zone"`
	Status          ZoneStatus      `json:"status"`
	PercentAdjusted decimal.Decimal `json:"percent_adjusted"`
	TargetUSD       decimal.Decimal `json:"target_usd"`
	DistancePct     decimal.Decimal `json:"distance_pct"`
}

// ZonePlan is the result of one planner invocation.
type ZonePlan struct {
	Zones []ComputedZone `json:"zones"`
	// UnallocatedPct is the share freed by skipped zones that had no
	// remaining active or waiting zone to absorb it. Reported explicitly
	// rather than silently dropped or force-assigned.
	UnallocatedPct decimal.Decimal `json:"unallocated_pct"`
}

var hundred = decimal.NewFromInt(100)

// PlanZones computes each zone's status, its adjusted allocation and its
// USD target given the current price and the capital pool.
//
// Pure and deterministic: identical inputs yield identical output, there is
// no hidden clock or randomness. The redistribution invariant holds: the
// adjusted percentages over ACTIVE+WAITING+FILLED zones plus UnallocatedPct
// equal the base percentages over all zones.
//
// A non-positive currentPrice means no market data; every non-filled zone
// is then WAITING and no redistribution happens.
func PlanZones(zones []Zone, currentPrice, capitalTotal decimal.Decimal) ZonePlan {
	ordered := make([]Zone, len(zones))
	copy(ordered, zones)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	computed := make([]ComputedZone, len(ordered))
	skippedPool := decimal.Zero
	absorbBase := decimal.Zero

	for i, z := range ordered {
		status := zoneStatus(z, currentPrice)
		computed[i] = ComputedZone{
			Zone:        z,
			Status:      status,
			DistancePct: zoneDistancePct(z, currentPrice, status),
		}
		switch status {
		case ZoneSkipped:
			skippedPool = skippedPool.Add(z.PercentBase)
		case ZoneActive, ZoneWaiting:
			absorbBase = absorbBase.Add(z.PercentBase)
		}
	}

	unallocated := decimal.Zero
	if skippedPool.IsPositive() && absorbBase.IsZero() {
		unallocated = skippedPool
	}

	for i := range computed {
		z := computed[i].Zone
		switch computed[i].Status {
		case ZoneActive, ZoneWaiting:
			adjusted := z.PercentBase
			if skippedPool.IsPositive() && absorbBase.IsPositive() {
				adjusted = adjusted.Add(skippedPool.Mul(z.PercentBase).Div(absorbBase))
			}
			computed[i].PercentAdjusted = adjusted
		case ZoneFilled:
			// already consumed: keeps its base share, absorbs nothing
			computed[i].PercentAdjusted = z.PercentBase
		case ZoneSkipped:
			computed[i].PercentAdjusted = decimal.Zero
		}
		computed[i].TargetUSD = computed[i].PercentAdjusted.Div(hundred).Mul(capitalTotal)
	}

	return ZonePlan{Zones: computed, UnallocatedPct: unallocated}
}

func zoneStatus(z Zone, currentPrice decimal.Decimal) ZoneStatus {
	if z.Executed {
		return ZoneFilled
	}
	if !currentPrice.IsPositive() {
		return ZoneWaiting
	}
	switch {
	case currentPrice.GreaterThanOrEqual(z.PriceMin) && currentPrice.LessThanOrEqual(z.PriceMax):
		return ZoneActive
	case z.PriceMax.LessThan(currentPrice):
		return ZoneWaiting
	default:
		return ZoneSkipped
	}
}

// zoneDistancePct is the signed percentage gap from the current price to
// the zone's near edge. Display/ranking only, not used for status.
func zoneDistancePct(z Zone, currentPrice decimal.Decimal, status ZoneStatus) decimal.Decimal {
	if !currentPrice.IsPositive() {
		return decimal.Zero
	}

	var edge decimal.Decimal
	switch status {
	case ZoneActive:
		return decimal.Zero
	case ZoneWaiting:
		edge = z.PriceMax
	case ZoneSkipped:
		edge = z.PriceMin
	case ZoneFilled:
		// nearest edge for display completeness
		if currentPrice.GreaterThan(z.PriceMax) {
			edge = z.PriceMax
		} else if currentPrice.LessThan(z.PriceMin) {
			edge = z.PriceMin
		} else {
			return decimal.Zero
		}
	}

	return edge.Sub(currentPrice).Div(currentPrice).Mul(hundred)
}
