package alerts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mpared/folio/internal/domain"
	alertstore "github.com/mpared/folio/internal/storage/alerts"
	"github.com/mpared/folio/pkg/retrier"
)

type fakeBandSource struct {
	bands []domain.BuyBand
	err   error
}

func (f *fakeBandSource) Bands(string) ([]domain.BuyBand, error) {
	return f.bands, f.err
}

type fakeAlertStore struct {
	saved     []domain.BandAlert
	lastAlert map[string]time.Time
	saveErr   error
}

func (f *fakeAlertStore) SaveIfLastBefore(alert domain.BandAlert, cutoff time.Time) (bool, error) {
	if f.saveErr != nil {
		return false, f.saveErr
	}
	if last, ok := f.lastAlert[alert.BandID]; ok && !last.Before(cutoff) {
		return false, nil
	}
	f.saved = append(f.saved, alert)
	if f.lastAlert == nil {
		f.lastAlert = make(map[string]time.Time)
	}
	f.lastAlert[alert.BandID] = alert.CreatedAt
	return true, nil
}

func (f *fakeAlertStore) LastAlertAt(bandID string) (time.Time, bool) {
	at, ok := f.lastAlert[bandID]
	return at, ok
}

type fakePricer struct {
	prices map[string]decimal.Decimal
	calls  int
}

func (f *fakePricer) GetPrice(_ context.Context, pair domain.Pair) (decimal.Decimal, error) {
	f.calls++
	price, ok := f.prices[pair.Base]
	if !ok {
		return decimal.Decimal{}, errors.New("no price")
	}
	return price, nil
}

type fakeNotifier struct {
	messages []string
	err      error
}

func (f *fakeNotifier) Notify(_ context.Context, msg string) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestChecker(bands *fakeBandSource, store *fakeAlertStore, prices *fakePricer, n *fakeNotifier) *Checker {
	c := New(bands, store, prices, n, "USDT", 6*time.Hour, zap.NewNop())
	c.retrier = retrier.New(retrier.WithMaxRetries(0))
	return c
}

func TestCheckRaisesAlertOnCrossing(t *testing.T) {
	bands := &fakeBandSource{bands: []domain.BuyBand{
		{ID: "b1", Portfolio: "main", Asset: "BTC", TargetUSD: dec("60000"), Qty: dec("0.1")},
	}}
	store := &fakeAlertStore{}
	prices := &fakePricer{prices: map[string]decimal.Decimal{"BTC": dec("59000")}}
	n := &fakeNotifier{}

	c := newTestChecker(bands, store, prices, n)
	require.NoError(t, c.Check(context.Background(), "main"))

	require.Len(t, store.saved, 1)
	alert := store.saved[0]
	require.Equal(t, "b1", alert.BandID)
	require.Equal(t, "main", alert.Portfolio)
	require.True(t, alert.PriceUSD.Equal(dec("59000")))
	require.True(t, alert.TargetUSD.Equal(dec("60000")))
	require.NotEmpty(t, alert.ID)
	require.Len(t, n.messages, 1)
}

func TestCheckDeduplicatesWithinWindow(t *testing.T) {
	bands := &fakeBandSource{bands: []domain.BuyBand{
		{ID: "b1", Portfolio: "main", Asset: "BTC", TargetUSD: dec("60000")},
	}}
	store := &fakeAlertStore{}
	prices := &fakePricer{prices: map[string]decimal.Decimal{"BTC": dec("59000")}}
	n := &fakeNotifier{}

	c := newTestChecker(bands, store, prices, n)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }
	require.NoError(t, c.Check(context.Background(), "main"))
	require.Len(t, store.saved, 1)

	// price still below target half the window later: suppressed
	c.now = func() time.Time { return base.Add(3 * time.Hour) }
	require.NoError(t, c.Check(context.Background(), "main"))
	require.Len(t, store.saved, 1)

	// window elapsed: a fresh alert fires
	c.now = func() time.Time { return base.Add(6 * time.Hour) }
	require.NoError(t, c.Check(context.Background(), "main"))
	require.Len(t, store.saved, 2)
}

func TestCheckNotificationFailureStillPersistsAlert(t *testing.T) {
	bands := &fakeBandSource{bands: []domain.BuyBand{
		{ID: "b1", Portfolio: "main", Asset: "ETH", TargetUSD: dec("2000")},
	}}
	store := &fakeAlertStore{}
	prices := &fakePricer{prices: map[string]decimal.Decimal{"ETH": dec("1900")}}
	n := &fakeNotifier{err: errors.New("webhook down")}

	c := newTestChecker(bands, store, prices, n)
	require.NoError(t, c.Check(context.Background(), "main"))

	require.Len(t, store.saved, 1)
	require.Empty(t, n.messages)
}

func TestCheckSkipsExecutedAndAbovePriceBands(t *testing.T) {
	bands := &fakeBandSource{bands: []domain.BuyBand{
		{ID: "b1", Portfolio: "main", Asset: "BTC", TargetUSD: dec("60000"), Executed: true},
		{ID: "b2", Portfolio: "main", Asset: "BTC", TargetUSD: dec("50000")},
	}}
	store := &fakeAlertStore{}
	prices := &fakePricer{prices: map[string]decimal.Decimal{"BTC": dec("59000")}}
	n := &fakeNotifier{}

	c := newTestChecker(bands, store, prices, n)
	require.NoError(t, c.Check(context.Background(), "main"))

	require.Empty(t, store.saved)
	require.Empty(t, n.messages)
}

func TestCheckPriceFailureSkipsAsset(t *testing.T) {
	bands := &fakeBandSource{bands: []domain.BuyBand{
		{ID: "b1", Portfolio: "main", Asset: "BTC", TargetUSD: dec("60000")},
		{ID: "b2", Portfolio: "main", Asset: "ETH", TargetUSD: dec("2000")},
	}}
	store := &fakeAlertStore{}
	prices := &fakePricer{prices: map[string]decimal.Decimal{"ETH": dec("1900")}}
	n := &fakeNotifier{}

	c := newTestChecker(bands, store, prices, n)
	require.NoError(t, c.Check(context.Background(), "main"))

	require.Len(t, store.saved, 1)
	require.Equal(t, "b2", store.saved[0].BandID)
}

func TestCheckCachesPricePerRun(t *testing.T) {
	bands := &fakeBandSource{bands: []domain.BuyBand{
		{ID: "b1", Portfolio: "main", Asset: "BTC", TargetUSD: dec("60000")},
		{ID: "b2", Portfolio: "main", Asset: "BTC", TargetUSD: dec("58000")},
	}}
	store := &fakeAlertStore{}
	prices := &fakePricer{prices: map[string]decimal.Decimal{"BTC": dec("57000")}}
	n := &fakeNotifier{}

	c := newTestChecker(bands, store, prices, n)
	require.NoError(t, c.Check(context.Background(), "main"))

	require.Equal(t, 1, prices.calls)
	require.Len(t, store.saved, 2)
}

// gatedAlertStore holds every LastAlertAt caller at a barrier until all of
// them have read the index, so concurrent Check runs race into the insert.
type gatedAlertStore struct {
	*alertstore.WALStore
	barrier *sync.WaitGroup
}

func (g *gatedAlertStore) LastAlertAt(bandID string) (time.Time, bool) {
	g.barrier.Done()
	g.barrier.Wait()
	return g.WALStore.LastAlertAt(bandID)
}

func TestCheckConcurrentRunsRaiseSingleAlert(t *testing.T) {
	walStore, err := alertstore.NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer walStore.Close()

	var barrier sync.WaitGroup
	barrier.Add(2)
	store := &gatedAlertStore{WALStore: walStore, barrier: &barrier}

	newChecker := func() *Checker {
		bands := &fakeBandSource{bands: []domain.BuyBand{
			{ID: "b1", Portfolio: "main", Asset: "BTC", TargetUSD: dec("60000")},
		}}
		prices := &fakePricer{prices: map[string]decimal.Decimal{"BTC": dec("59000")}}
		c := New(bands, store, prices, &fakeNotifier{}, "USDT", 6*time.Hour, zap.NewNop())
		c.retrier = retrier.New(retrier.WithMaxRetries(0))
		return c
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		c := newChecker()
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.Check(context.Background(), "main")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	records, err := walStore.AlertsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
}
