package optimization

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"quantbt/internal/backtest"
	"quantbt/internal/ports"
	"quantbt/internal/strategy/signals"
)

// Config holds configuration for the random-search tuner.
type Config struct {
	TargetReturn float64 // stop once the best return rate (%) exceeds this
	MaxTrials    int     // hard bound on backtest runs
	Seed         int64   // 0 means a non-deterministic seed
}

// Result holds the best trial found by a search.
type Result struct {
	BestParams signals.Params      `json:"best_params"`
	BestResult *backtest.RunResult `json:"best_result"`
	BestReturn float64             `json:"best_return"` // percent of initial cash
	Trials     int                 `json:"trials"`
}

// Optimizer performs a naive random search over strategy parameters: each
// trial mutates one to three parameters of the base request, runs a full
// backtest and keeps the best net return. It is a plain caller of the run
// driver; the engine knows nothing about it.
type Optimizer struct {
	runner *backtest.Runner
	logger ports.Logger
	rng    *rand.Rand
}

// NewOptimizer creates an optimizer over the given run driver.
func NewOptimizer(runner *backtest.Runner, logger ports.Logger, cfg Config) (*Optimizer, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner is required for optimizer")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for optimizer")
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	return &Optimizer{runner: runner, logger: logger, rng: rand.New(rand.NewSource(seed))}, nil
}

// mutation randomizes one parameter of a trial request.
type mutation struct {
	name  string
	apply func(*backtest.RunRequest, *rand.Rand)
}

func intChoice(r *rand.Rand, vals []int) int { return vals[r.Intn(len(vals))] }

func floatChoice(r *rand.Rand, vals []float64) float64 { return vals[r.Intn(len(vals))] }

// searchSpace returns the mutations applicable to a strategy variant.
func searchSpace(req backtest.RunRequest) []mutation {
	common := []mutation{
		{"atr_period", func(q *backtest.RunRequest, r *rand.Rand) {
			q.Params.ATRPeriod = intChoice(r, []int{10, 14, 20, 30})
		}},
		{"atr_multiplier", func(q *backtest.RunRequest, r *rand.Rand) {
			q.Params.ATRMultiplier = floatChoice(r, []float64{1.0, 1.5, 2.0, 2.5, 3.0, 3.5, 4.0})
		}},
	}
	switch req.Sizing.Mode {
	case backtest.SizingATRRisk:
		common = append(common, mutation{"risk_fraction", func(q *backtest.RunRequest, r *rand.Rand) {
			q.Sizing.RiskFraction = floatChoice(r, []float64{0.01, 0.02, 0.03, 0.05})
		}})
	case backtest.SizingFixed:
		common = append(common, mutation{"fixed_size", func(q *backtest.RunRequest, r *rand.Rand) {
			q.Sizing.FixedSize = intChoice(r, []int{1, 2, 3, 5})
		}})
	}

	switch req.Strategy {
	case signals.KindDualMA:
		return append(common,
			mutation{"fast_period", func(q *backtest.RunRequest, r *rand.Rand) {
				q.Params.FastPeriod = 5 + 2*r.Intn(13) // 5..29
			}},
			mutation{"slow_period", func(q *backtest.RunRequest, r *rand.Rand) {
				q.Params.SlowPeriod = 20 + 5*r.Intn(16) // 20..95
			}},
		)
	case signals.KindMABreakout:
		return append(common,
			mutation{"ma_period", func(q *backtest.RunRequest, r *rand.Rand) {
				q.Params.MAPeriod = intChoice(r, []int{20, 34, 55, 89, 144})
			}},
			mutation{"macd_fast", func(q *backtest.RunRequest, r *rand.Rand) {
				q.Params.MACDFastPeriod = intChoice(r, []int{10, 12, 15})
			}},
			mutation{"macd_slow", func(q *backtest.RunRequest, r *rand.Rand) {
				q.Params.MACDSlowPeriod = intChoice(r, []int{20, 26, 30})
			}},
			mutation{"macd_signal", func(q *backtest.RunRequest, r *rand.Rand) {
				q.Params.MACDSignalPeriod = intChoice(r, []int{7, 9, 12})
			}},
		)
	case signals.KindMATouch:
		return append(common,
			mutation{"ma_period", func(q *backtest.RunRequest, r *rand.Rand) {
				q.Params.MAPeriod = intChoice(r, []int{20, 34, 55, 89})
			}},
			mutation{"weak_breakout_pct", func(q *backtest.RunRequest, r *rand.Rand) {
				q.Params.WeakBreakoutPct = floatChoice(r, []float64{0.001, 0.002, 0.005})
			}},
			mutation{"partial_take_pct", func(q *backtest.RunRequest, r *rand.Rand) {
				q.Params.PartialTakePct = floatChoice(r, []float64{0, 0.01, 0.02})
			}},
		)
	case signals.KindDKX:
		return append(common,
			mutation{"dkx_period", func(q *backtest.RunRequest, r *rand.Rand) {
				q.Params.DKXPeriod = intChoice(r, []int{10, 15, 20, 30})
			}},
			mutation{"dkx_ma_period", func(q *backtest.RunRequest, r *rand.Rand) {
				q.Params.DKXMAPeriod = intChoice(r, []int{5, 10, 15})
			}},
		)
	default:
		return common
	}
}

// repair enforces cross-parameter constraints after mutation.
func repair(req *backtest.RunRequest) {
	if req.Params.FastPeriod > 0 && req.Params.SlowPeriod > 0 &&
		req.Params.FastPeriod >= req.Params.SlowPeriod {
		req.Params.SlowPeriod = req.Params.FastPeriod + 5
	}
	if req.Params.MACDFastPeriod > 0 && req.Params.MACDSlowPeriod > 0 &&
		req.Params.MACDFastPeriod >= req.Params.MACDSlowPeriod {
		req.Params.MACDSlowPeriod = req.Params.MACDFastPeriod + 5
	}
}

// Optimize runs the search and returns the best trial. Trials that fail
// (for example a window left with too few bars by a mutated warm-up) are
// skipped, not fatal.
func (o *Optimizer) Optimize(ctx context.Context, base backtest.RunRequest, cfg Config) (*Result, error) {
	if cfg.MaxTrials <= 0 {
		cfg.MaxTrials = 10
	}

	space := searchSpace(base)
	best := &Result{BestReturn: math.Inf(-1)}

	o.logger.Info(ctx, "optimization started", map[string]interface{}{
		"symbol": base.Symbol, "strategy": base.Strategy,
		"target_return": cfg.TargetReturn, "max_trials": cfg.MaxTrials,
	})

	for i := 0; i < cfg.MaxTrials; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: optimization interrupted", ports.ErrContextCanceled)
		}

		trial := base
		n := 1 + o.rng.Intn(min(3, len(space)))
		for _, idx := range o.rng.Perm(len(space))[:n] {
			space[idx].apply(&trial, o.rng)
		}
		repair(&trial)

		res, err := o.runner.Run(ctx, trial)
		if err != nil {
			o.logger.Warn(ctx, "trial failed", map[string]interface{}{"trial": i + 1, "error": err.Error()})
			continue
		}
		best.Trials++

		initial := trial.InitialCash
		if initial <= 0 {
			initial = 1_000_000
		}
		returnRate := res.Metrics.NetProfit / initial * 100

		o.logger.Debug(ctx, "trial finished", map[string]interface{}{
			"trial": i + 1, "return_pct": returnRate, "params": trial.Params,
		})

		if returnRate > best.BestReturn {
			best.BestReturn = returnRate
			best.BestParams = trial.Params
			best.BestResult = res
		}
		if best.BestReturn > cfg.TargetReturn {
			o.logger.Info(ctx, "target return reached", map[string]interface{}{
				"return_pct": best.BestReturn, "trials": best.Trials,
			})
			break
		}
	}

	if best.BestResult == nil {
		return nil, fmt.Errorf("%w: all optimization trials failed", ports.ErrUnknown)
	}
	return best, nil
}
