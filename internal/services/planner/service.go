// Package planner computes live buy-zone plans from stored definitions,
// the current market price and the available stablecoin capital.
package planner

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mpared/folio/internal/domain"
	"github.com/mpared/folio/internal/services/pricer"
	"github.com/mpared/folio/internal/services/wallet"
	"github.com/mpared/folio/pkg/retrier"
)

type zoneSource interface {
	Zones(portfolio string) ([]domain.Zone, error)
}

// Service wires the pure zone planner to its external lookups. Lookup
// failures degrade to zero (no price: every zone waits; no capital: zero
// USD targets) instead of failing the plan.
type Service struct {
	zones      zoneSource
	pricer     pricer.Pricer
	capital    wallet.BalanceSource
	stablecoin string
	quoteAsset string
	retrier    *retrier.Retrier
	logger     *zap.Logger
}

// New creates the planner service. stablecoin names the currency whose
// free balance forms the capital pool.
func New(zones zoneSource, p pricer.Pricer, capital wallet.BalanceSource, stablecoin, quoteAsset string, logger *zap.Logger) *Service {
	return &Service{
		zones:      zones,
		pricer:     p,
		capital:    capital,
		stablecoin: stablecoin,
		quoteAsset: quoteAsset,
		retrier:    retrier.New(),
		logger:     logger,
	}
}

// Plan computes the portfolio's zone plan for one asset.
func (s *Service) Plan(ctx context.Context, portfolio, asset string) (domain.ZonePlan, error) {
	all, err := s.zones.Zones(portfolio)
	if err != nil {
		return domain.ZonePlan{}, errors.Wrapf(err, "load zones for portfolio %s", portfolio)
	}

	var zones []domain.Zone
	for _, z := range all {
		if z.Asset == asset {
			zones = append(zones, z)
		}
	}

	price := s.currentPrice(ctx, asset)
	capital := s.capitalTotal(ctx, portfolio)

	plan := domain.PlanZones(zones, price, capital)
	if plan.UnallocatedPct.IsPositive() {
		s.logger.Warn("zone plan left capital unallocated",
			zap.String("portfolio", portfolio),
			zap.String("asset", asset),
			zap.String("unallocated_pct", plan.UnallocatedPct.String()))
	}
	return plan, nil
}

// EntryPoints splits one computed zone's target across discrete limit
// prices.
func (s *Service) EntryPoints(zone domain.ComputedZone, parts int) []domain.EntryPoint {
	return domain.SplitEntryPoints(zone, parts)
}

func (s *Service) currentPrice(ctx context.Context, asset string) decimal.Decimal {
	pair := domain.Pair{Base: asset, Quote: s.quoteAsset}
	price, err := retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) (decimal.Decimal, error) {
		return s.pricer.GetPrice(ctx, pair)
	})
	if err != nil {
		s.logger.Warn("price unavailable, planning without market data",
			zap.String("asset", asset),
			zap.Error(err))
		return decimal.Zero
	}
	return price
}

func (s *Service) capitalTotal(ctx context.Context, portfolio string) decimal.Decimal {
	capital, err := retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) (decimal.Decimal, error) {
		return s.capital.Balance(ctx, s.stablecoin)
	})
	if err != nil {
		s.logger.Warn("capital balance unavailable, planning with zero capital",
			zap.String("portfolio", portfolio),
			zap.String("stablecoin", s.stablecoin),
			zap.Error(err))
		return decimal.Zero
	}
	return capital
}
