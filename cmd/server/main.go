package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quantbt/config"
	"quantbt/internal/adapters/binancefeed"
	"quantbt/internal/adapters/feed"
	"quantbt/internal/adapters/httpapi"
	"quantbt/internal/adapters/logger"
	"quantbt/internal/adapters/sqlite"
	"quantbt/internal/backtest"
	"quantbt/internal/ports"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	var appLogger ports.Logger
	if cfg.LogFormat == "text" {
		appLogger = logger.NewStdLogger(cfg.LogLevel)
	} else {
		appLogger = logger.NewZeroLogger(os.Stderr, cfg.LogLevel)
	}
	ctx := context.Background()

	// 2. Build the bar feed chain: vendor feed -> symbol fallback -> cache
	binance, err := binancefeed.New(binancefeed.Config{
		APIKey:    cfg.BinanceAPIKey,
		SecretKey: cfg.BinanceSecretKey,
		Logger:    appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "Failed to create Binance feed")
		os.Exit(1)
	}
	fallback, err := feed.NewFallbackFeed(binance, feed.QuoteCandidates, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "Failed to create fallback feed")
		os.Exit(1)
	}
	barFeed := ports.BarFeed(fallback)
	if cfg.FeedCacheTTL > 0 {
		cached, err := feed.NewCachedFeed(fallback, cfg.FeedCacheTTL, appLogger)
		if err != nil {
			appLogger.Error(ctx, err, "Failed to create cached feed")
			os.Exit(1)
		}
		barFeed = cached
	}

	// 3. Run history store
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		appLogger.Error(ctx, err, "Failed to open run repository")
		os.Exit(1)
	}
	defer repo.Close()

	// 4. Run driver and API server
	runner, err := backtest.NewRunner(barFeed, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "Failed to create run driver")
		os.Exit(1)
	}
	server, err := httpapi.NewServer(httpapi.Config{
		Addr:   cfg.ServerAddr,
		Runner: runner,
		Repo:   repo,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "Failed to create API server")
		os.Exit(1)
	}

	// 5. Serve until interrupted
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			appLogger.Error(ctx, err, "API server failed")
			os.Exit(1)
		}
	case sig := <-stop:
		appLogger.Info(ctx, "Shutting down", map[string]interface{}{"signal": sig.String()})
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			appLogger.Error(ctx, err, "Graceful shutdown failed")
			os.Exit(1)
		}
	}
}
