package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// ladder of four zones descending in price, 25% of capital each
func testZones() []Zone {
	return []Zone{
		{ID: "z1", Portfolio: "main", Asset: "BTC", PriceMin: dec("90000"), PriceMax: dec("100000"), PercentBase: dec("25"), Order: 1},
		{ID: "z2", Portfolio: "main", Asset: "BTC", PriceMin: dec("80000"), PriceMax: dec("90000"), PercentBase: dec("25"), Order: 2},
		{ID: "z3", Portfolio: "main", Asset: "BTC", PriceMin: dec("70000"), PriceMax: dec("80000"), PercentBase: dec("25"), Order: 3},
		{ID: "z4", Portfolio: "main", Asset: "BTC", PriceMin: dec("60000"), PriceMax: dec("70000"), PercentBase: dec("25"), Order: 4},
	}
}

func planStatuses(plan ZonePlan) map[string]ZoneStatus {
	statuses := make(map[string]ZoneStatus, len(plan.Zones))
	for _, cz := range plan.Zones {
		statuses[cz.Zone.ID] = cz.Status
	}
	return statuses
}

func TestPlanZonesStatusAssignment(t *testing.T) {
	plan := PlanZones(testZones(), dec("85000"), dec("10000"))

	statuses := planStatuses(plan)
	require.Equal(t, ZoneSkipped, statuses["z1"], "range above price was passed without filling")
	require.Equal(t, ZoneActive, statuses["z2"])
	require.Equal(t, ZoneWaiting, statuses["z3"])
	require.Equal(t, ZoneWaiting, statuses["z4"])
}

func TestPlanZonesRedistributionConservesAllocation(t *testing.T) {
	zones := testZones()
	zones[1].Executed = true // z2 FILLED

	plan := PlanZones(zones, dec("75000"), dec("10000"))

	statuses := planStatuses(plan)
	require.Equal(t, ZoneSkipped, statuses["z1"])
	require.Equal(t, ZoneFilled, statuses["z2"])
	require.Equal(t, ZoneActive, statuses["z3"])
	require.Equal(t, ZoneWaiting, statuses["z4"])

	// skipped pool of 25% splits evenly across z3 and z4 (equal bases)
	total := plan.UnallocatedPct
	for _, cz := range plan.Zones {
		total = total.Add(cz.PercentAdjusted)
		switch cz.Zone.ID {
		case "z2":
			require.True(t, dec("25").Equal(cz.PercentAdjusted), "filled zone keeps its base share")
		case "z3", "z4":
			require.True(t, dec("37.5").Equal(cz.PercentAdjusted))
			require.True(t, dec("3750").Equal(cz.TargetUSD))
		case "z1":
			require.True(t, cz.PercentAdjusted.IsZero())
		}
	}
	require.True(t, dec("100").Equal(total), "no allocation is created or destroyed")
	require.True(t, plan.UnallocatedPct.IsZero())
}

func TestPlanZonesProportionalRedistribution(t *testing.T) {
	zones := []Zone{
		{ID: "a", PriceMin: dec("90"), PriceMax: dec("100"), PercentBase: dec("40"), Order: 1},
		{ID: "b", PriceMin: dec("70"), PriceMax: dec("80"), PercentBase: dec("45"), Order: 2},
		{ID: "c", PriceMin: dec("50"), PriceMax: dec("60"), PercentBase: dec("15"), Order: 3},
	}

	plan := PlanZones(zones, dec("75"), dec("1000"))

	for _, cz := range plan.Zones {
		switch cz.Zone.ID {
		case "a":
			require.Equal(t, ZoneSkipped, cz.Status)
		case "b":
			// 45 + 40 * 45/60 = 75
			require.True(t, dec("75").Equal(cz.PercentAdjusted))
		case "c":
			// 15 + 40 * 15/60 = 25
			require.True(t, dec("25").Equal(cz.PercentAdjusted))
		}
	}
}

func TestPlanZonesUnallocatedPoolWhenNothingCanAbsorb(t *testing.T) {
	zones := []Zone{
		{ID: "a", PriceMin: dec("90"), PriceMax: dec("100"), PercentBase: dec("60"), Order: 1},
		{ID: "b", PriceMin: dec("70"), PriceMax: dec("80"), PercentBase: dec("40"), Order: 2, Executed: true},
	}

	plan := PlanZones(zones, dec("65"), dec("1000"))

	require.True(t, dec("60").Equal(plan.UnallocatedPct),
		"skipped share with no absorber is reported, not silently dropped")

	total := plan.UnallocatedPct
	for _, cz := range plan.Zones {
		total = total.Add(cz.PercentAdjusted)
	}
	require.True(t, dec("100").Equal(total))
}

func TestPlanZonesDeterministic(t *testing.T) {
	zones := testZones()
	zones[0].Executed = true

	first := PlanZones(zones, dec("72500"), dec("8000"))
	second := PlanZones(zones, dec("72500"), dec("8000"))

	require.Equal(t, first, second, "identical inputs must yield identical plans")
}

func TestPlanZonesOrdersByZoneOrder(t *testing.T) {
	zones := testZones()
	// shuffle input order
	zones[0], zones[3] = zones[3], zones[0]

	plan := PlanZones(zones, dec("85000"), dec("10000"))

	require.Equal(t, "z1", plan.Zones[0].Zone.ID)
	require.Equal(t, "z4", plan.Zones[3].Zone.ID)
}

func TestPlanZonesDistancePct(t *testing.T) {
	plan := PlanZones(testZones(), dec("85000"), dec("10000"))

	for _, cz := range plan.Zones {
		switch cz.Zone.ID {
		case "z1":
			// skipped zone sits above price: positive gap to its lower edge
			require.True(t, cz.DistancePct.IsPositive())
		case "z2":
			require.True(t, cz.DistancePct.IsZero())
		case "z3", "z4":
			// waiting zone sits below price: negative gap to its upper edge
			require.True(t, cz.DistancePct.IsNegative())
		}
	}

	// z3 upper edge 80000 from 85000: (80000-85000)/85000*100
	var z3 ComputedZone
	for _, cz := range plan.Zones {
		if cz.Zone.ID == "z3" {
			z3 = cz
		}
	}
	expected := dec("-5000").Div(dec("85000")).Mul(dec("100"))
	require.True(t, expected.Equal(z3.DistancePct))
}

func TestPlanZonesNoPriceMeansEverythingWaits(t *testing.T) {
	zones := testZones()
	zones[1].Executed = true

	plan := PlanZones(zones, decimal.Zero, dec("10000"))

	for _, cz := range plan.Zones {
		if cz.Zone.ID == "z2" {
			require.Equal(t, ZoneFilled, cz.Status)
			continue
		}
		require.Equal(t, ZoneWaiting, cz.Status)
		require.True(t, cz.PercentAdjusted.Equal(cz.Zone.PercentBase), "no redistribution without market data")
	}
	require.True(t, plan.UnallocatedPct.IsZero())
}

func TestSplitEntryPoints(t *testing.T) {
	cz := ComputedZone{
		Zone:      Zone{PriceMin: dec("60000"), PriceMax: dec("70000")},
		TargetUSD: dec("3000"),
	}

	points := SplitEntryPoints(cz, 3)
	require.Len(t, points, 3)
	require.True(t, dec("70000").Equal(points[0].PriceUSD))
	require.True(t, dec("65000").Equal(points[1].PriceUSD))
	require.True(t, dec("60000").Equal(points[2].PriceUSD))
	for _, p := range points {
		require.True(t, dec("1000").Equal(p.AmountUSD))
	}

	single := SplitEntryPoints(cz, 1)
	require.Len(t, single, 1)
	require.True(t, dec("65000").Equal(single[0].PriceUSD))
	require.True(t, dec("3000").Equal(single[0].AmountUSD))

	require.Nil(t, SplitEntryPoints(cz, 0))
	require.Nil(t, SplitEntryPoints(ComputedZone{Zone: cz.Zone}, 2), "no target capital, no entry points")
}

func TestValidateZoneSet(t *testing.T) {
	zones := testZones()
	require.NoError(t, ValidateZoneSet(zones))

	overflow := append(testZones(), Zone{
		ID: "z5", Portfolio: "main", Asset: "BTC",
		PriceMin: dec("50000"), PriceMax: dec("60000"), PercentBase: dec("10"), Order: 5,
	})
	require.ErrorIs(t, ValidateZoneSet(overflow), ErrAllocationOverflow)

	// different asset gets its own 100% allocation
	otherAsset := append(testZones(), Zone{
		ID: "e1", Portfolio: "main", Asset: "ETH",
		PriceMin: dec("2000"), PriceMax: dec("2500"), PercentBase: dec("100"), Order: 1,
	})
	require.NoError(t, ValidateZoneSet(otherAsset))

	inverted := []Zone{{ID: "bad", PriceMin: dec("100"), PriceMax: dec("90"), PercentBase: dec("10")}}
	require.ErrorIs(t, ValidateZoneSet(inverted), ErrInvalidZoneRange)
}
