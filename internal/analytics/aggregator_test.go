package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"quantbt/internal/domain"
)

func ts(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func closingFill(n int, action domain.Action, size, resulting int, entry, pnl float64) *domain.Fill {
	e, p := entry, pnl
	return &domain.Fill{
		Timestamp:         ts(n),
		Action:            action,
		Size:              size,
		ResultingPosition: resulting,
		EntryPrice:        &e,
		NetPnL:            &p,
	}
}

func TestAggregator_SingleLongTrade(t *testing.T) {
	// Entered at 100, closed at 110, size 1, multiplier 10, commission 5:
	// gross 100, net 95.
	a := NewAggregator(1_000_000, 10, 0)

	a.OnFill(&domain.Fill{Timestamp: ts(1), Action: domain.ActionOpen, Size: 1, ResultingPosition: 1})
	a.OnFill(closingFill(2, domain.ActionClose, -1, 0, 100, 95))

	stats := a.Finalize(nil)
	assert.Equal(t, 1, stats.TotalTrades)
	assert.Equal(t, 1, stats.WinningTrades)
	assert.Equal(t, 0, stats.LosingTrades)
	assert.InDelta(t, 1.0, stats.WinRate, 1e-9)
	assert.InDelta(t, 9.5, stats.MaxProfitPoints, 1e-9)
	assert.InDelta(t, 95.0, stats.ProfitPerContract, 1e-9)
	assert.InDelta(t, 0.95, stats.ProfitPct, 1e-9)
}

func TestAggregator_OpeningFillsAreIgnored(t *testing.T) {
	a := NewAggregator(1_000_000, 1, 0)
	a.OnFill(&domain.Fill{Timestamp: ts(1), Action: domain.ActionOpen, Size: 2, ResultingPosition: 2})
	a.OnFill(&domain.Fill{Timestamp: ts(2), Action: domain.ActionAdd, Size: 1, ResultingPosition: 3})

	stats := a.Finalize(nil)
	assert.Equal(t, 0, stats.TotalTrades)
	assert.Zero(t, stats.MaxProfitPoints)
	assert.Zero(t, stats.MaxLossPoints)
}

func TestAggregator_ReversalCountsOnlyCoveredContracts(t *testing.T) {
	// A -4 reversal out of +2 covers 2 contracts; net -20 is -10 points.
	a := NewAggregator(1_000_000, 1, 0)
	a.OnFill(closingFill(1, domain.ActionReverse, -4, -2, 100, -20))

	stats := a.Finalize(nil)
	assert.Equal(t, 1, stats.TotalTrades)
	assert.Equal(t, 1, stats.LosingTrades)
	assert.InDelta(t, -10.0, stats.MaxLossPoints, 1e-9)
	assert.InDelta(t, -10.0, stats.ProfitPerContract, 1e-9)
}

func TestAggregator_ExtremesSelectedBySignedPnL(t *testing.T) {
	// The 1-contract trade has the larger per-contract move, but the
	// 10-contract trade has the larger net PnL and owns the extreme.
	a := NewAggregator(1_000_000, 1, 0)
	a.OnFill(closingFill(1, domain.ActionClose, -1, 0, 100, 50))
	a.OnFill(closingFill(2, domain.ActionClose, -10, 0, 100, 200))

	stats := a.Finalize(nil)
	assert.InDelta(t, 20.0, stats.MaxProfitPoints, 1e-9) // 200 / 10
}

func TestAggregator_ProfitPctUsesRunningAverageEntry(t *testing.T) {
	a := NewAggregator(1_000_000, 1, 0)
	a.OnFill(closingFill(1, domain.ActionClose, -1, 0, 100, 10))
	a.OnFill(closingFill(2, domain.ActionClose, -1, 0, 300, 30))

	stats := a.Finalize(nil)
	// per-contract profit 10 + 30 over the average entry (100+300)/2.
	assert.InDelta(t, 40.0/200.0, stats.ProfitPct, 1e-9)
}

func TestAggregator_WinRate(t *testing.T) {
	a := NewAggregator(1_000_000, 1, 0)
	a.OnFill(closingFill(1, domain.ActionClose, -1, 0, 100, 10))
	a.OnFill(closingFill(2, domain.ActionClose, -1, 0, 100, -4))
	a.OnFill(closingFill(3, domain.ActionClose, -1, 0, 100, 6))
	a.OnFill(closingFill(4, domain.ActionClose, -1, 0, 100, -2))

	stats := a.Finalize(nil)
	assert.Equal(t, 4, stats.TotalTrades)
	assert.Equal(t, 2, stats.WinningTrades)
	assert.Equal(t, 2, stats.LosingTrades)
	assert.InDelta(t, 0.5, stats.WinRate, 1e-9)
}

func TestAggregator_OnBarTracksPositionAndMargin(t *testing.T) {
	a := NewAggregator(100_000, 10, 0.1)
	a.OnBar(&domain.Bar{Timestamp: ts(1), Close: 100}, 5, 100_000)
	a.OnBar(&domain.Bar{Timestamp: ts(2), Close: 120}, -8, 100_000)
	a.OnBar(&domain.Bar{Timestamp: ts(3), Close: 110}, 2, 100_000)

	stats := a.Finalize(nil)
	assert.Equal(t, 8, stats.MaxPositionSize)
	// 8 * 120 * 10 * 0.1 / 100_000
	assert.InDelta(t, 0.096, stats.MaxMarginUtilization, 1e-9)
}

func TestAggregator_FinalValueAndNetProfitFromCurve(t *testing.T) {
	a := NewAggregator(100_000, 1, 0)
	curve := []EquityPoint{
		{Timestamp: ts(1), Equity: 100_000, Return: 0},
		{Timestamp: ts(2), Equity: 101_000, Return: 0.01},
		{Timestamp: ts(3), Equity: 99_990, Return: 99_990.0/101_000.0 - 1},
	}
	stats := a.Finalize(curve)
	assert.InDelta(t, 99_990.0, stats.FinalValue, 1e-9)
	assert.InDelta(t, -10.0, stats.NetProfit, 1e-9)
}

func TestAggregator_MaxDrawdown(t *testing.T) {
	curve := []EquityPoint{
		{Equity: 100}, {Equity: 120}, {Equity: 90}, {Equity: 110}, {Equity: 105},
	}
	// Peak 120 to trough 90.
	assert.InDelta(t, 0.25, maxDrawdown(curve), 1e-9)
	assert.Zero(t, maxDrawdown(nil))
}

func TestSharpeRatio(t *testing.T) {
	assert.Zero(t, sharpeRatio(nil))
	assert.Zero(t, sharpeRatio([]float64{0.01}))
	// Constant returns have zero variance.
	assert.Zero(t, sharpeRatio([]float64{0.01, 0.01, 0.01}))

	returns := []float64{0.02, -0.01, 0.03, 0.0}
	mean := 0.01
	variance := (0.01*0.01 + 0.02*0.02 + 0.02*0.02 + 0.01*0.01) / 3.0
	assert.InDelta(t, mean/math.Sqrt(variance), sharpeRatio(returns), 1e-9)
}
