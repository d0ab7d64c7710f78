package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quantbt/internal/analytics"
	"quantbt/internal/domain"
	"quantbt/internal/engine"
	"quantbt/internal/ports"
	"quantbt/internal/strategy/signals"
)

// SizingMode selects the position sizing policy for a run.
type SizingMode string

const (
	SizingFixed         SizingMode = "fixed"
	SizingEquityPercent SizingMode = "equity_percent"
	SizingATRRisk       SizingMode = "atr_risk"
)

// SizingConfig holds the per-run sizing policy parameters.
type SizingConfig struct {
	Mode           SizingMode `json:"mode"`
	FixedSize      int        `json:"fixed_size"`
	EquityFraction float64    `json:"equity_fraction"`
	RiskFraction   float64    `json:"risk_fraction"`
}

func (c SizingConfig) sizer() engine.Sizer {
	switch c.Mode {
	case SizingEquityPercent:
		return engine.NewEquityPercentSizer(c.EquityFraction)
	case SizingATRRisk:
		return engine.NewATRRiskSizer(c.RiskFraction)
	default:
		return engine.NewFixedSizer(c.FixedSize)
	}
}

// RunRequest describes one backtest run.
type RunRequest struct {
	Symbol   string         `json:"symbol"`
	Period   string         `json:"period"`
	Strategy signals.Kind   `json:"strategy"`
	Params   signals.Params `json:"params"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	InitialCash        float64 `json:"initial_cash"`
	ContractMultiplier float64 `json:"contract_multiplier"`
	CommissionRate     float64 `json:"commission_rate"`
	MarginRate         float64 `json:"margin_rate"`

	Sizing  SizingConfig         `json:"sizing"`
	Bracket engine.BracketConfig `json:"bracket"`
}

// RunResult is the report assembled at the end of a run.
type RunResult struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
	Symbol string `json:"symbol"`
	Period string `json:"period"`

	EquityCurve []analytics.EquityPoint `json:"equity_curve"`
	Trades      []*domain.Fill          `json:"trades"`
	Metrics     analytics.Statistics    `json:"metrics"`
	Logs        []string                `json:"logs"`
}

// Runner drives one backtest: fetch bars, feed the indicator/signal/
// lifecycle/analytics chain bar by bar, assemble the result. A Runner is
// stateless across runs; parallel runs need independent engine state only.
type Runner struct {
	feed   ports.BarFeed
	logger ports.Logger
}

// NewRunner creates a run driver.
func NewRunner(feed ports.BarFeed, logger ports.Logger) (*Runner, error) {
	if feed == nil {
		return nil, fmt.Errorf("bar feed is required for runner")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for runner")
	}
	return &Runner{feed: feed, logger: logger}, nil
}

// warmupStart moves the fetch start earlier so the slowest indicator is warm
// when the trading window opens.
func warmupStart(start time.Time, p signals.Params) time.Time {
	days := 150
	if p.SlowPeriod*3 > days {
		days = p.SlowPeriod * 3
	}
	if p.MAPeriod*3 > days {
		days = p.MAPeriod * 3
	}
	return start.AddDate(0, 0, -days)
}

// Run executes one backtest and returns its result. DataUnavailable and
// InvalidWindow conditions abort the run with a typed error; sizing
// degeneracy and indicator warm-up are absorbed inside the engine.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if req.InitialCash <= 0 {
		req.InitialCash = 1_000_000
	}
	if req.ContractMultiplier <= 0 {
		req.ContractMultiplier = 1
	}
	if !req.StartDate.IsZero() && !req.EndDate.IsZero() && req.StartDate.After(req.EndDate) {
		return nil, fmt.Errorf("%w: start %s after end %s", ports.ErrInvalidWindow,
			req.StartDate.Format("2006-01-02"), req.EndDate.Format("2006-01-02"))
	}

	fetchStart := req.StartDate
	if !fetchStart.IsZero() {
		fetchStart = warmupStart(fetchStart, req.Params)
	}

	bars, warning, err := r.feed.GetBars(ctx, req.Symbol, req.Period, fetchStart, req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("fetching bars for %s/%s: %w", req.Symbol, req.Period, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s/%s has no bars in %s..%s", ports.ErrDataUnavailable,
			req.Symbol, req.Period, fmtDate(fetchStart), fmtDate(req.EndDate))
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: %s at index %d", ports.ErrNonMonotonicSeries, req.Symbol, i)
		}
	}
	if !req.StartDate.IsZero() && bars[len(bars)-1].Timestamp.Before(req.StartDate) {
		return nil, fmt.Errorf("%w: no bars remain after window filtering, available %s..%s",
			ports.ErrInvalidWindow,
			bars[0].Timestamp.Format("2006-01-02"), bars[len(bars)-1].Timestamp.Format("2006-01-02"))
	}

	gen, err := signals.New(req.Strategy, req.Params, r.logger)
	if err != nil {
		return nil, fmt.Errorf("building strategy: %w", err)
	}

	mgr, err := engine.NewManager(engine.Config{
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
		InitialCash:        req.InitialCash,
		ContractMultiplier: req.ContractMultiplier,
		CommissionRate:     req.CommissionRate,
		MarginRate:         req.MarginRate,
		Bracket:            req.Bracket,
	}, req.Sizing.sizer(), r.logger)
	if err != nil {
		return nil, fmt.Errorf("building lifecycle manager: %w", err)
	}

	agg := analytics.NewAggregator(req.InitialCash, req.ContractMultiplier, req.MarginRate)

	result := &RunResult{
		RunID:  uuid.NewString(),
		Status: "success",
		Symbol: req.Symbol,
		Period: req.Period,
	}
	if warning != nil {
		result.Logs = append(result.Logs, warning.String())
		r.logger.Warn(ctx, "truncated data range", map[string]interface{}{
			"symbol": req.Symbol, "warning": warning.String(),
		})
	}

	prevEquity := req.InitialCash
	for i, bar := range bars {
		pos := mgr.Position()
		sig := gen.Evaluate(ctx, bars[:i+1], &pos)
		isLast := i == len(bars)-1

		fills := mgr.OnBar(ctx, bar, sig, isLast)
		for _, f := range fills {
			agg.OnFill(f)
			result.Trades = append(result.Trades, f)
			result.Logs = append(result.Logs, fillLog(f))
		}

		equity := mgr.Equity(bar.Close)
		agg.OnBar(bar, mgr.Position().Size, equity)

		// Warm-up bars stay out of the reported curve: the window the
		// caller asked for starts at StartDate.
		if req.StartDate.IsZero() || !bar.Timestamp.Before(req.StartDate) {
			ret := 0.0
			if prevEquity > 0 {
				ret = equity/prevEquity - 1
			}
			result.EquityCurve = append(result.EquityCurve, analytics.EquityPoint{
				Timestamp: bar.Timestamp,
				Equity:    equity,
				Return:    ret,
			})
		}
		prevEquity = equity
	}

	result.Metrics = agg.Finalize(result.EquityCurve)

	r.logger.Info(ctx, "run finished", map[string]interface{}{
		"run_id": result.RunID, "symbol": req.Symbol, "strategy": gen.Name(),
		"trades": result.Metrics.TotalTrades, "net_profit": result.Metrics.NetProfit,
	})
	return result, nil
}

func fillLog(f *domain.Fill) string {
	line := fmt.Sprintf("%s, %s %s %d @ %.2f -> position %d",
		f.Timestamp.Format("2006-01-02 15:04:05"), f.Action, f.Direction, abs(f.Size), f.Price, f.ResultingPosition)
	if f.NetPnL != nil {
		line += fmt.Sprintf(", net pnl %.2f", *f.NetPnL)
	}
	return line
}

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
