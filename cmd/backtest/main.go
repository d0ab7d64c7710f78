package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"quantbt/config"
	"quantbt/internal/adapters/csvfeed"
	"quantbt/internal/adapters/logger"
	"quantbt/internal/backtest"
	"quantbt/internal/optimization"
	"quantbt/internal/strategy/signals"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	var (
		dataDir  = flag.String("data", cfg.DataDir, "directory holding <symbol>_<period>.csv bar files")
		symbol   = flag.String("symbol", cfg.Symbol, "instrument symbol")
		period   = flag.String("period", cfg.Period, "bar period (daily, 60, 5, ...)")
		strategy = flag.String("strategy", "dual_ma", "strategy variant: dual_ma, ma_breakout, ma_touch, dkx")
		startStr = flag.String("start", "", "trading window start (2006-01-02)")
		endStr   = flag.String("end", "", "trading window end (2006-01-02)")
		cash     = flag.Float64("cash", cfg.InitialCash, "initial cash")

		fast   = flag.Int("fast", 5, "fast MA period (dual_ma)")
		slow   = flag.Int("slow", 20, "slow MA period (dual_ma)")
		maP    = flag.Int("ma", 55, "reference MA period (ma_breakout, ma_touch)")
		dkxP   = flag.Int("dkx", 20, "DKX period (dkx)")
		dkxMAP = flag.Int("dkxma", 10, "DKX MA period (dkx)")
		size   = flag.Int("size", 1, "fixed position size in contracts")

		optimize = flag.Bool("optimize", false, "random-search the parameters instead of a single run")
		trials   = flag.Int("trials", cfg.OptimizeMaxTrials, "max optimization trials")
		target   = flag.Float64("target", cfg.OptimizeTargetReturn, "target return percent, stops the search early")
		seed     = flag.Int64("seed", 0, "optimizer seed, 0 for random")
	)
	flag.Parse()

	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	// 2. Offline feed over the CSV bar store
	barFeed, err := csvfeed.New(*dataDir, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "Failed to open CSV bar store")
		os.Exit(1)
	}
	runner, err := backtest.NewRunner(barFeed, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "Failed to create run driver")
		os.Exit(1)
	}

	req := backtest.RunRequest{
		Symbol:   *symbol,
		Period:   *period,
		Strategy: signals.Kind(*strategy),
		Params: signals.Params{
			FastPeriod:  *fast,
			SlowPeriod:  *slow,
			MAPeriod:    *maP,
			DKXPeriod:   *dkxP,
			DKXMAPeriod: *dkxMAP,
		},
		InitialCash:        *cash,
		ContractMultiplier: cfg.ContractMultiplier,
		CommissionRate:     cfg.CommissionRate,
		MarginRate:         cfg.MarginRate,
		Sizing:             backtest.SizingConfig{Mode: backtest.SizingFixed, FixedSize: *size},
	}
	if req.StartDate, err = parseDate(*startStr); err != nil {
		appLogger.Error(ctx, err, "Invalid -start")
		os.Exit(1)
	}
	if req.EndDate, err = parseDate(*endStr); err != nil {
		appLogger.Error(ctx, err, "Invalid -end")
		os.Exit(1)
	}

	// 3. Run (or search) and print the report
	var result *backtest.RunResult
	if *optimize {
		optCfg := optimization.Config{TargetReturn: *target, MaxTrials: *trials, Seed: *seed}
		opt, err := optimization.NewOptimizer(runner, appLogger, optCfg)
		if err != nil {
			appLogger.Error(ctx, err, "Failed to create optimizer")
			os.Exit(1)
		}
		best, err := opt.Optimize(ctx, req, optCfg)
		if err != nil {
			appLogger.Error(ctx, err, "Optimization failed")
			os.Exit(1)
		}
		fmt.Printf("\n=== Optimization: best of %d trials, return %.2f%% ===\n", best.Trials, best.BestReturn)
		fmt.Printf("best params: %+v\n", best.BestParams)
		result = best.BestResult
	} else {
		result, err = runner.Run(ctx, req)
		if err != nil {
			appLogger.Error(ctx, err, "Backtest failed")
			os.Exit(1)
		}
	}

	printReport(result)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func printReport(result *backtest.RunResult) {
	m := result.Metrics
	fmt.Printf("\n=== Backtest %s (%s %s) ===\n", result.RunID, result.Symbol, result.Period)
	fmt.Printf("final value:        %.2f\n", m.FinalValue)
	fmt.Printf("net profit:         %.2f\n", m.NetProfit)
	fmt.Printf("trades:             %d (won %d, lost %d, win rate %.1f%%)\n", m.TotalTrades, m.WinningTrades, m.LosingTrades, m.WinRate*100)
	fmt.Printf("sharpe ratio:       %.3f\n", m.SharpeRatio)
	fmt.Printf("max drawdown:       %.2f%%\n", m.MaxDrawdown*100)
	fmt.Printf("max profit points:  %.2f\n", m.MaxProfitPoints)
	fmt.Printf("max loss points:    %.2f\n", m.MaxLossPoints)
	fmt.Printf("profit/contract:    %.2f\n", m.ProfitPerContract)
	fmt.Printf("profit pct:         %.2f%%\n", m.ProfitPct*100)
	fmt.Printf("max position size:  %d\n", m.MaxPositionSize)

	if len(result.Logs) > 0 {
		fmt.Println("\n--- fills ---")
		for _, line := range result.Logs {
			fmt.Println(line)
		}
	}
}
