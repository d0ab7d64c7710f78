package indicators

import (
	"context"
	"fmt"

	"quantbt/internal/domain"
)

// DKXConfig holds configuration for the DKX weighted oscillator.
type DKXConfig struct {
	Period   int // DKX lookback, e.g., 20
	MAPeriod int // MADKX smoothing period, e.g., 10
}

// DKXValue is one DKX/MADKX sample pair.
type DKXValue struct {
	DKX   float64
	MADKX float64
}

// DKX implements a linearly-weighted oscillator over the mid price
// mid = (3*close + low + open + high) / 6. DKX at a bar is the weighted
// moving average of mid with linearly decreasing weights (most recent bar
// weighted Period, oldest weighted 1); MADKX is the simple moving average
// of the DKX line.
type DKX struct {
	config DKXConfig
}

// NewDKX creates a new DKX indicator instance.
func NewDKX(config DKXConfig) *DKX {
	return &DKX{config: config}
}

// Name returns the name of the indicator.
func (d *DKX) Name() string {
	return "DKX"
}

// RequiredDataPoints returns the minimum number of bars for MADKX to be
// defined: MAPeriod DKX samples, each needing Period bars of mid prices.
func (d *DKX) RequiredDataPoints() int {
	return d.config.Period + d.config.MAPeriod - 1
}

func mid(bar *domain.Bar) float64 {
	return (3*bar.Close + bar.Low + bar.Open + bar.High) / 6.0
}

// dkxAt computes the weighted average ending at index end (inclusive).
func (d *DKX) dkxAt(bars []*domain.Bar, end int) float64 {
	period := d.config.Period
	var sum, weightSum float64
	for k := 0; k < period; k++ {
		w := float64(period - k)
		sum += w * mid(bars[end-k])
		weightSum += w
	}
	return sum / weightSum
}

// Calculate computes the DKX and MADKX values at the last bar of the slice.
func (d *DKX) Calculate(ctx context.Context, bars []*domain.Bar) (DKXValue, error) {
	if len(bars) < d.RequiredDataPoints() {
		return DKXValue{}, fmt.Errorf("not enough data (%d) to calculate DKX(%d,%d)",
			len(bars), d.config.Period, d.config.MAPeriod)
	}

	last := len(bars) - 1
	dkx := d.dkxAt(bars, last)

	var maSum float64
	for k := 0; k < d.config.MAPeriod; k++ {
		maSum += d.dkxAt(bars, last-k)
	}

	return DKXValue{DKX: dkx, MADKX: maSum / float64(d.config.MAPeriod)}, nil
}
