package indicators

import (
	"context"
	"fmt"

	"quantbt/internal/domain"
)

// MACDConfig holds configuration for the MACD indicator.
type MACDConfig struct {
	FastPeriod   int // e.g., 12
	SlowPeriod   int // e.g., 26
	SignalPeriod int // e.g., 9
}

// MACDValue is one MACD sample: the DIF line (fast EMA - slow EMA), the DEA
// signal line (EMA of DIF) and the histogram (DIF - DEA) * 2.
type MACDValue struct {
	DIF  float64
	DEA  float64
	Hist float64
}

// MACD implements the Moving Average Convergence Divergence indicator.
// The EMAs are seeded with the first close and rolled from the start of the
// slice, matching the common charting convention.
type MACD struct {
	config MACDConfig
}

// NewMACD creates a new MACD indicator instance.
func NewMACD(config MACDConfig) *MACD {
	return &MACD{config: config}
}

// Name returns the name of the indicator.
func (m *MACD) Name() string {
	return "MACD"
}

// RequiredDataPoints returns the minimum number of bars for a useful value.
func (m *MACD) RequiredDataPoints() int {
	return m.config.SlowPeriod + m.config.SignalPeriod
}

// Calculate computes the MACD sample at the last bar of the slice.
func (m *MACD) Calculate(ctx context.Context, bars []*domain.Bar) (MACDValue, error) {
	if len(bars) < m.RequiredDataPoints() {
		return MACDValue{}, fmt.Errorf("not enough data (%d) to calculate MACD(%d,%d,%d)",
			len(bars), m.config.FastPeriod, m.config.SlowPeriod, m.config.SignalPeriod)
	}

	fastMult := 2.0 / float64(m.config.FastPeriod+1)
	slowMult := 2.0 / float64(m.config.SlowPeriod+1)
	sigMult := 2.0 / float64(m.config.SignalPeriod+1)

	fast := bars[0].Close
	slow := bars[0].Close
	dea := 0.0

	for i, bar := range bars {
		fast = (bar.Close-fast)*fastMult + fast
		slow = (bar.Close-slow)*slowMult + slow
		dif := fast - slow
		if i == 0 {
			dea = dif
		} else {
			dea = (dif-dea)*sigMult + dea
		}
	}

	dif := fast - slow
	return MACDValue{DIF: dif, DEA: dea, Hist: (dif - dea) * 2}, nil
}
