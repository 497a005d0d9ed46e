// Package alerts polls live prices against pending buy bands and raises
// deduplicated alerts.
package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mpared/folio/internal/domain"
	"github.com/mpared/folio/internal/services/notifier"
	"github.com/mpared/folio/internal/services/pricer"
	"github.com/mpared/folio/pkg/retrier"
)

// DefaultDedupWindow suppresses repeat alerts for a band within this
// trailing interval.
const DefaultDedupWindow = 6 * time.Hour

type bandSource interface {
	Bands(portfolio string) ([]domain.BuyBand, error)
}

type alertStore interface {
	SaveIfLastBefore(alert domain.BandAlert, cutoff time.Time) (bool, error)
	LastAlertAt(bandID string) (time.Time, bool)
}

// Checker runs one pass over a portfolio's bands per invocation.
type Checker struct {
	bands      bandSource
	alerts     alertStore
	pricer     pricer.Pricer
	notifier   notifier.Notifier
	quoteAsset string
	window     time.Duration
	retrier    *retrier.Retrier
	logger     *zap.Logger
	now        func() time.Time
}

// New creates the alert checker. A non-positive window falls back to
// DefaultDedupWindow.
func New(bands bandSource, alerts alertStore, p pricer.Pricer, n notifier.Notifier, quoteAsset string, window time.Duration, logger *zap.Logger) *Checker {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Checker{
		bands:      bands,
		alerts:     alerts,
		pricer:     p,
		notifier:   n,
		quoteAsset: quoteAsset,
		window:     window,
		retrier:    retrier.New(),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Check polls the price of every asset with a pending band and raises an
// alert per band whose target was crossed outside its dedup window. The
// record is written before any notification goes out; dispatch failures
// are logged and never roll back the record. Price lookup failures skip
// the affected bands.
func (c *Checker) Check(ctx context.Context, portfolio string) error {
	bands, err := c.bands.Bands(portfolio)
	if err != nil {
		return errors.Wrapf(err, "load bands for portfolio %s", portfolio)
	}

	prices := make(map[string]decimal.Decimal)
	now := c.now()
	cutoff := now.Add(-c.window)

	for _, band := range bands {
		if band.Executed {
			continue
		}

		price, ok := c.priceFor(ctx, prices, band.Asset)
		if !ok {
			continue
		}

		lastAlertAt, _ := c.alerts.LastAlertAt(band.ID)
		if !band.ShouldAlert(price, lastAlertAt, c.window, now) {
			continue
		}

		alert := domain.BandAlert{
			ID:        uuid.NewString(),
			BandID:    band.ID,
			Portfolio: portfolio,
			Asset:     band.Asset,
			PriceUSD:  price,
			TargetUSD: band.TargetUSD,
			CreatedAt: now,
		}

		// The store re-checks the window atomically with the insert, so a
		// concurrent run racing past ShouldAlert cannot double-alert.
		inserted, err := c.alerts.SaveIfLastBefore(alert, cutoff)
		if err != nil {
			return errors.Wrapf(err, "persist alert for band %s", band.ID)
		}
		if !inserted {
			continue
		}

		delivered := c.dispatch(ctx, band, price)

		c.logger.Info("buy band alert raised",
			zap.String("portfolio", portfolio),
			zap.String("band", band.ID),
			zap.String("asset", band.Asset),
			zap.String("price", price.String()),
			zap.String("target", band.TargetUSD.String()),
			zap.Bool("delivered", delivered))
	}

	return nil
}

func (c *Checker) priceFor(ctx context.Context, cache map[string]decimal.Decimal, asset string) (decimal.Decimal, bool) {
	if price, ok := cache[asset]; ok {
		return price, true
	}

	pair := domain.Pair{Base: asset, Quote: c.quoteAsset}
	price, err := retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) (decimal.Decimal, error) {
		return c.pricer.GetPrice(ctx, pair)
	})
	if err != nil {
		c.logger.Warn("price unavailable, skipping band checks for asset",
			zap.String("asset", asset),
			zap.Error(err))
		return decimal.Zero, false
	}

	cache[asset] = price
	return price, true
}

func (c *Checker) dispatch(ctx context.Context, band domain.BuyBand, price decimal.Decimal) bool {
	msg := "buy band hit: " + band.Asset + " at " + price.String() + " USD (target " + band.TargetUSD.String() + ")"
	if err := c.notifier.Notify(ctx, msg); err != nil {
		c.logger.Warn("notification delivery failed",
			zap.String("band", band.ID),
			zap.Error(err))
		return false
	}
	return true
}
