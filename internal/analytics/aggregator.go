package analytics

import (
	"math"
	"time"

	"quantbt/internal/domain"
)

// EquityPoint is one sample of the equity curve, recorded once per bar.
type EquityPoint struct {
	Timestamp time.Time `json:"date"`
	Equity    float64   `json:"value"`
	Return    float64   `json:"return"` // period return vs the previous sample
}

// Statistics is the finalized per-run report produced by the aggregator.
type Statistics struct {
	FinalValue float64 `json:"final_value"`
	NetProfit  float64 `json:"net_profit"`

	TotalTrades   int     `json:"total_trades"` // closed segments, partial reduces included
	WinningTrades int     `json:"won_trades"`
	LosingTrades  int     `json:"lost_trades"`
	WinRate       float64 `json:"win_rate"`

	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`

	MaxProfitPoints      float64 `json:"max_profit_points"`
	MaxLossPoints        float64 `json:"max_loss_points"`
	ProfitPerContract    float64 `json:"profit_per_contract"`
	ProfitPct            float64 `json:"profit_pct"`
	MaxPositionSize      int     `json:"max_position_size"`
	MaxMarginUtilization float64 `json:"max_margin_utilization"`
}

// Aggregator folds lifecycle fills and per-bar marks into run statistics.
// It owns its state exclusively; fills arrive by value in time order.
type Aggregator struct {
	multiplier  float64
	marginRate  float64
	initialCash float64

	profitPerContract float64
	profitPct         float64
	sumEntryPrice     float64
	closedTrades      int
	winningTrades     int

	// Extremes are selected by signed net PnL, not points, so mixed
	// position sizes cannot flip which trade counts as worst.
	maxTradePnL     float64
	minTradePnL     float64
	maxProfitPoints float64
	maxLossPoints   float64

	maxPositionSize int
	maxMarginUtil   float64
}

// NewAggregator creates an aggregator for one run.
func NewAggregator(initialCash, contractMultiplier, marginRate float64) *Aggregator {
	return &Aggregator{
		multiplier:  contractMultiplier,
		marginRate:  marginRate,
		initialCash: initialCash,
		maxTradePnL: math.Inf(-1),
		minTradePnL: math.Inf(1),
	}
}

// OnFill folds one fill. Opening and adding fills carry no realized PnL and
// only matter for OnBar position tracking, so they are ignored here.
func (a *Aggregator) OnFill(f *domain.Fill) {
	if !f.IsClosing() {
		return
	}

	closed := abs(f.Size)
	if f.Action == domain.ActionReverse {
		// A reversal fill covers the old segment and opens the new one;
		// only the covered part was closed.
		closed = abs(f.Size) - abs(f.ResultingPosition)
	}
	if closed <= 0 {
		return
	}

	pnl := *f.NetPnL
	points := pnl / (float64(closed) * a.multiplier)

	a.profitPerContract += pnl / float64(closed)

	if f.EntryPrice != nil && *f.EntryPrice > 0 {
		a.sumEntryPrice += *f.EntryPrice
	}
	a.closedTrades++
	if avgEntry := a.sumEntryPrice / float64(a.closedTrades); avgEntry > 0 {
		a.profitPct = a.profitPerContract / avgEntry
	}

	if pnl > a.maxTradePnL {
		a.maxTradePnL = pnl
		a.maxProfitPoints = points
	}
	if pnl < a.minTradePnL {
		a.minTradePnL = pnl
		a.maxLossPoints = points
	}
	if pnl > 0 {
		a.winningTrades++
	}
}

// OnBar updates the marks that do not depend on fills: the largest position
// ever held and the worst theoretical margin utilization.
func (a *Aggregator) OnBar(bar *domain.Bar, positionSize int, equity float64) {
	if abs(positionSize) > a.maxPositionSize {
		a.maxPositionSize = abs(positionSize)
	}
	if equity > 0 && positionSize != 0 {
		util := math.Abs(float64(positionSize)) * bar.Close * a.multiplier * a.marginRate / equity
		if util > a.maxMarginUtil {
			a.maxMarginUtil = util
		}
	}
}

// Finalize computes the end-of-run statistics from the accumulated state
// and the equity curve sampled by the run driver.
func (a *Aggregator) Finalize(curve []EquityPoint) Statistics {
	stats := Statistics{
		FinalValue:           a.initialCash,
		TotalTrades:          a.closedTrades,
		WinningTrades:        a.winningTrades,
		LosingTrades:         a.closedTrades - a.winningTrades,
		ProfitPerContract:    a.profitPerContract,
		ProfitPct:            a.profitPct,
		MaxPositionSize:      a.maxPositionSize,
		MaxMarginUtilization: a.maxMarginUtil,
	}
	if a.closedTrades > 0 {
		stats.WinRate = float64(a.winningTrades) / float64(a.closedTrades)
		stats.MaxProfitPoints = a.maxProfitPoints
		stats.MaxLossPoints = a.maxLossPoints
	}

	if len(curve) > 0 {
		stats.FinalValue = curve[len(curve)-1].Equity
	}
	stats.NetProfit = stats.FinalValue - a.initialCash

	returns := make([]float64, len(curve))
	for i, p := range curve {
		returns[i] = p.Return
	}
	stats.SharpeRatio = sharpeRatio(returns)
	stats.MaxDrawdown = maxDrawdown(curve)

	return stats
}

// sharpeRatio is the mean of the per-period returns over their sample
// standard deviation, risk-free rate zero.
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance)
}

// maxDrawdown is the largest peak-to-trough equity decline as a fraction of
// the peak.
func maxDrawdown(curve []EquityPoint) float64 {
	var peak, maxDD float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
