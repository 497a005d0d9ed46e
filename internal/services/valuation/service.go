// Package valuation turns a portfolio's ledger into positions and
// persisted valuation snapshots.
package valuation

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mpared/folio/internal/domain"
	"github.com/mpared/folio/internal/services/pricer"
	"github.com/mpared/folio/pkg/retrier"
)

type ledgerSource interface {
	All(portfolio string) ([]domain.Transaction, error)
}

type snapshotSink interface {
	Save(snapshot domain.PortfolioSnapshot) error
}

// Service orchestrates ledger load, replay, pricing and snapshot
// persistence. The accounting itself stays in the pure domain functions;
// this layer owns the I/O around them.
type Service struct {
	ledger     ledgerSource
	snapshots  snapshotSink
	pricer     pricer.Pricer
	quoteAsset string
	retrier    *retrier.Retrier
	logger     *zap.Logger
	now        func() time.Time
}

// New creates the valuation service. quoteAsset is the stablecoin the
// exchange quotes prices in (prices of the quote asset itself are pegged
// to 1 USD).
func New(ledger ledgerSource, snapshots snapshotSink, p pricer.Pricer, quoteAsset string, logger *zap.Logger) *Service {
	return &Service{
		ledger:     ledger,
		snapshots:  snapshots,
		pricer:     p,
		quoteAsset: quoteAsset,
		retrier:    retrier.New(),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Positions replays the portfolio's full transaction history. A replay
// failure (InsufficientBalance) is fatal for this portfolio and surfaces
// before anything is persisted.
func (s *Service) Positions(portfolio string) (domain.Positions, error) {
	txs, err := s.ledger.All(portfolio)
	if err != nil {
		return nil, errors.Wrapf(err, "load ledger for portfolio %s", portfolio)
	}

	positions, err := domain.Replay(txs)
	if err != nil {
		return nil, errors.Wrapf(err, "replay ledger for portfolio %s", portfolio)
	}
	return positions, nil
}

// Snapshot values the portfolio's current positions and persists the
// result. Unavailable prices degrade the affected position to zero value;
// they never fail the snapshot.
func (s *Service) Snapshot(ctx context.Context, portfolio string) (domain.PortfolioSnapshot, error) {
	positions, err := s.Positions(portfolio)
	if err != nil {
		return domain.PortfolioSnapshot{}, err
	}

	snapshot := domain.BuildSnapshot(portfolio, positions, s.priceLookup(ctx), s.now())

	if err := s.snapshots.Save(snapshot); err != nil {
		return domain.PortfolioSnapshot{}, errors.Wrapf(err, "persist snapshot for portfolio %s", portfolio)
	}

	s.logger.Info("portfolio snapshot taken",
		zap.String("portfolio", portfolio),
		zap.String("value_usd", snapshot.ValueUSD.String()),
		zap.String("unrealized_pnl", snapshot.UnrealizedPnl.String()),
		zap.Int("positions", len(snapshot.Positions)))

	return snapshot, nil
}

func (s *Service) priceLookup(ctx context.Context) domain.PriceFunc {
	return func(asset string) (decimal.Decimal, bool) {
		if asset == s.quoteAsset {
			return decimal.NewFromInt(1), true
		}

		pair := domain.Pair{Base: asset, Quote: s.quoteAsset}
		price, err := retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) (decimal.Decimal, error) {
			return s.pricer.GetPrice(ctx, pair)
		})
		if err != nil {
			s.logger.Warn("price unavailable, valuing position at zero",
				zap.String("asset", asset),
				zap.Error(err))
			return decimal.Zero, false
		}
		return price, true
	}
}
