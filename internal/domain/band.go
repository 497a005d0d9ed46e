package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BandStatus is the lifecycle state of a buy band:
// PENDING -> (price crosses target) -> ALERTED -> (manually) EXECUTED.
type BandStatus string

const (
	BandPending  BandStatus = "PENDING"
	BandAlerted  BandStatus = "ALERTED"
	BandExecuted BandStatus = "EXECUTED"
)

// BuyBand is a flat-price trigger: when the market price falls to or below
// the target, an alert is raised.
type BuyBand struct {
	ID        string          `json:"id"`
	Portfolio string          `json:"portfolio"`
	Asset     string          `json:"asset"`
	TargetUSD decimal.Decimal `json:"target_usd"`
	Qty       decimal.Decimal `json:"qty"`
	Executed  bool            `json:"executed"`
}

// Status derives the band's lifecycle state from its executed flag and the
// time of its last alert (zero when never alerted).
func (b BuyBand) Status(lastAlertAt time.Time) BandStatus {
	if b.Executed {
		return BandExecuted
	}
	if !lastAlertAt.IsZero() {
		return BandAlerted
	}
	return BandPending
}

// ShouldAlert decides whether a price observation crosses the band's target
// and is outside the trailing deduplication window of the last alert. No
// second alert fires inside the window no matter how many checks run.
func (b BuyBand) ShouldAlert(price decimal.Decimal, lastAlertAt time.Time, window time.Duration, now time.Time) bool {
	if b.Executed {
		return false
	}
	if !price.IsPositive() || price.GreaterThan(b.TargetUSD) {
		return false
	}
	if !lastAlertAt.IsZero() && now.Sub(lastAlertAt) < window {
		return false
	}
	return true
}

// BandAlert is the immutable record of one crossing. The record is the
// source of truth; notification delivery is best-effort on top of it.
type BandAlert struct {
	ID        string          `json:"id"`
	BandID    string          `json:"band_id"`
	Portfolio string          `json:"portfolio"`
	Asset     string          `json:"asset"`
	PriceUSD  decimal.Decimal `json:"price_usd"`
	TargetUSD decimal.Decimal `json:"target_usd"`
	CreatedAt time.Time       `json:"created_at"`
}

// AlertRecord pairs a persisted alert with its storage index, used by
// streaming readers.
type AlertRecord struct {
	Index uint64    `json:"index"`
	Alert BandAlert `json:"alert"`
}
