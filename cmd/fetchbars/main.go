package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"quantbt/config"
	"quantbt/internal/adapters/binancefeed"
	"quantbt/internal/adapters/csvfeed"
	"quantbt/internal/adapters/feed"
	"quantbt/internal/adapters/logger"
)

// fetchbars downloads a bar series from the vendor and stores it in the CSV
// bar store used by the offline backtest command.
func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	var (
		dataDir  = flag.String("data", cfg.DataDir, "directory for <symbol>_<period>.csv bar files")
		symbol   = flag.String("symbol", cfg.Symbol, "instrument symbol")
		period   = flag.String("period", cfg.Period, "bar period (daily, 60, 5, ...)")
		startStr = flag.String("start", "", "fetch start (2006-01-02), default 1 year back")
		endStr   = flag.String("end", "", "fetch end (2006-01-02), default now")
	)
	flag.Parse()

	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	start := time.Now().UTC().AddDate(-1, 0, 0)
	if *startStr != "" {
		if start, err = time.Parse("2006-01-02", *startStr); err != nil {
			appLogger.Error(ctx, err, "Invalid -start")
			os.Exit(1)
		}
	}
	var end time.Time
	if *endStr != "" {
		if end, err = time.Parse("2006-01-02", *endStr); err != nil {
			appLogger.Error(ctx, err, "Invalid -end")
			os.Exit(1)
		}
	}

	// 2. Fetch through the vendor feed with symbol fallback
	binance, err := binancefeed.New(binancefeed.Config{
		APIKey:    cfg.BinanceAPIKey,
		SecretKey: cfg.BinanceSecretKey,
		Logger:    appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "Failed to create Binance feed")
		os.Exit(1)
	}
	source, err := feed.NewFallbackFeed(binance, feed.QuoteCandidates, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "Failed to create fallback feed")
		os.Exit(1)
	}

	bars, warning, err := source.GetBars(ctx, *symbol, *period, start, end)
	if err != nil {
		appLogger.Error(ctx, err, "Fetch failed")
		os.Exit(1)
	}
	if warning != nil {
		appLogger.Warn(ctx, "truncated data range", map[string]interface{}{"warning": warning.String()})
	}

	// 3. Store in the CSV bar store
	if err := os.MkdirAll(*dataDir, 0755); err != nil {
		appLogger.Error(ctx, err, "Failed to create data directory")
		os.Exit(1)
	}
	store, err := csvfeed.New(*dataDir, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "Failed to open CSV bar store")
		os.Exit(1)
	}
	path := store.Path(*symbol, *period)
	if err := csvfeed.WriteBars(bars, path); err != nil {
		appLogger.Error(ctx, err, "Failed to write bars", map[string]interface{}{"path": path})
		os.Exit(1)
	}

	appLogger.Info(ctx, "bars stored", map[string]interface{}{
		"path":  path,
		"count": len(bars),
		"first": bars[0].Timestamp.Format("2006-01-02"),
		"last":  bars[len(bars)-1].Timestamp.Format("2006-01-02"),
	})
}
