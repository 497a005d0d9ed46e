// Command folio tracks a personal crypto portfolio: it replays the
// transaction ledger into positions, values them on a schedule, plans
// zone allocations against live prices and raises buy-band alerts.
//
// Usage:
//
//	folio init                 interactive config wizard
//	folio --config folio.yaml  run the tracker
//
// Required environment variables:
//
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mpared/folio/config"
	"github.com/mpared/folio/internal/clients"
	"github.com/mpared/folio/internal/scheduler"
	"github.com/mpared/folio/internal/services/alerts"
	"github.com/mpared/folio/internal/services/notifier"
	"github.com/mpared/folio/internal/services/planner"
	"github.com/mpared/folio/internal/services/pricer"
	"github.com/mpared/folio/internal/services/valuation"
	"github.com/mpared/folio/internal/services/wallet"
	"github.com/mpared/folio/internal/setup"
	alertstore "github.com/mpared/folio/internal/storage/alerts"
	"github.com/mpared/folio/internal/storage/ledger"
	"github.com/mpared/folio/internal/storage/snapshots"
	"github.com/mpared/folio/internal/storage/zones"
	"github.com/mpared/folio/internal/web"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		return
	}

	_ = godotenv.Load()

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	priceSource, capitalSource := buildExchange(cfg.Platform)

	ledgerStore, err := ledger.NewWALStore(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		logger.Fatal("failed to open ledger store", zap.Error(err))
	}
	defer ledgerStore.Close()

	snapshotStore, err := snapshots.NewWALStore(filepath.Join(cfg.DataDir, "snapshots"))
	if err != nil {
		logger.Fatal("failed to open snapshot store", zap.Error(err))
	}
	defer snapshotStore.Close()

	alertStore, err := alertstore.NewWALStore(filepath.Join(cfg.DataDir, "alerts"))
	if err != nil {
		logger.Fatal("failed to open alert store", zap.Error(err))
	}
	defer alertStore.Close()

	zoneStore, err := zones.NewStore(filepath.Join(cfg.DataDir, "zones"))
	if err != nil {
		logger.Fatal("failed to open zone store", zap.Error(err))
	}

	var sink notifier.Notifier = notifier.Noop{}
	if cfg.WebhookURL != "" {
		sink = notifier.NewWebhook(cfg.WebhookURL)
	}

	valuationSvc := valuation.New(ledgerStore, snapshotStore, priceSource, cfg.QuoteAsset, logger)
	plannerSvc := planner.New(zoneStore, priceSource, capitalSource, cfg.Stablecoin, cfg.QuoteAsset, logger)
	checker := alerts.New(zoneStore, alertStore, priceSource, sink, cfg.QuoteAsset, cfg.AlertDedupWindow, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(logger)
	for _, portfolio := range cfg.Portfolios {
		portfolio := portfolio

		snapshotJob := scheduler.JobFunc{
			JobName: "snapshot:" + portfolio,
			Fn: func() error {
				_, err := valuationSvc.Snapshot(ctx, portfolio)
				return err
			},
		}
		if err := sched.AddJob(cfg.SnapshotSchedule, snapshotJob); err != nil {
			logger.Fatal("failed to register snapshot job", zap.Error(err))
		}

		alertJob := scheduler.JobFunc{
			JobName: "alerts:" + portfolio,
			Fn: func() error {
				return checker.Check(ctx, portfolio)
			},
		}
		if err := sched.AddJob(cfg.AlertSchedule, alertJob); err != nil {
			logger.Fatal("failed to register alert job", zap.Error(err))
		}

		// take an initial snapshot so the dashboard has data right away
		if err := sched.RunNow(snapshotJob); err != nil {
			logger.Warn("initial snapshot failed",
				zap.String("portfolio", portfolio),
				zap.Error(err))
		}
	}
	sched.Start()
	defer sched.Stop()

	server := web.NewServer(cfg.WebAddr, web.Deps{
		Snapshots: snapshotStore,
		Alerts:    alertStore,
		Planner:   plannerSvc,
		Ledger:    ledgerStore,
		Positions: valuationSvc,
		Zones:     zoneStore,
	}, logger)
	if len(cfg.TLSDomains) > 0 {
		err = server.StartWithAutoTLS(ctx, cfg.TLSDomains, filepath.Join(cfg.DataDir, "cert-cache"))
	} else {
		err = server.Start(ctx)
	}
	if err != nil {
		logger.Fatal("web server failed", zap.Error(err))
	}
}

func buildExchange(platform string) (pricer.Pricer, wallet.BalanceSource) {
	switch platform {
	case "binance":
		apiKey := os.Getenv("BINANCE_API_KEY")
		apiSecret := os.Getenv("BINANCE_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			log.Fatal("BINANCE_API_KEY and BINANCE_API_SECRET environment variables must be set")
		}
		client := clients.NewBinanceClient(apiKey, apiSecret)
		return pricer.NewBinancePricer(client), wallet.NewBinanceWallet(client)
	case "bybit":
		apiKey := os.Getenv("BYBIT_API_KEY")
		apiSecret := os.Getenv("BYBIT_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			log.Fatal("BYBIT_API_KEY and BYBIT_API_SECRET environment variables must be set")
		}
		client := clients.NewBybitClient(apiKey, apiSecret)
		return pricer.NewBybitPricer(client), wallet.NewBybitWallet(client)
	default:
		log.Fatal("unsupported platform")
		return nil, nil
	}
}
