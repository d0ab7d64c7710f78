package signals

import (
	"context"
	"fmt"

	"quantbt/internal/domain"
	"quantbt/internal/ports"
	"quantbt/internal/strategy/indicators"
)

// DualMACrossover enters long when the fast moving average crosses above the
// slow one and short on the opposite cross. Both SMA and EMA are supported.
type DualMACrossover struct {
	baseGenerator
	fastPeriod int
	slowPeriod int
	fastMA     *indicators.MovingAverage
	slowMA     *indicators.MovingAverage
}

// NewDualMACrossover creates the dual moving-average crossover variant.
func NewDualMACrossover(p Params, logger ports.Logger) (*DualMACrossover, error) {
	fast := p.FastPeriod
	if fast <= 0 {
		fast = 20
	}
	slow := p.SlowPeriod
	if slow <= 0 {
		slow = 55
	}
	if fast >= slow {
		return nil, fmt.Errorf("fast MA period (%d) must be less than slow MA period (%d)", fast, slow)
	}

	maType := indicators.SimpleMovingAverage
	if p.MAType == string(indicators.ExponentialMovingAverage) {
		maType = indicators.ExponentialMovingAverage
	}

	return &DualMACrossover{
		baseGenerator: newBase(p, logger),
		fastPeriod:    fast,
		slowPeriod:    slow,
		fastMA: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: fast},
			Type:            maType,
		}),
		slowMA: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: slow},
			Type:            maType,
		}),
	}, nil
}

// Name returns the name of the strategy variant.
func (s *DualMACrossover) Name() string {
	return fmt.Sprintf("dual_ma_%d_%d", s.fastPeriod, s.slowPeriod)
}

// RequiredDataPoints returns the bars needed before a cross can be detected.
// The previous bar's spread is part of the cross test, hence +1.
func (s *DualMACrossover) RequiredDataPoints() int {
	return s.slowPeriod + 1
}

// Evaluate classifies the last bar of the slice.
func (s *DualMACrossover) Evaluate(ctx context.Context, bars []*domain.Bar, pos *domain.Position) domain.Signal {
	last := bars[len(bars)-1]
	if len(bars) < s.RequiredDataPoints() {
		return domain.None(last.Timestamp)
	}

	diff, err := s.spread(ctx, bars)
	if err != nil {
		return domain.None(last.Timestamp)
	}
	prevDiff, err := s.spread(ctx, bars[:len(bars)-1])
	if err != nil {
		return domain.None(last.Timestamp)
	}

	switch {
	case crossAbove(prevDiff, diff):
		s.logger.Debug(ctx, "golden cross", map[string]interface{}{
			"strategy": s.Name(), "time": last.Timestamp, "spread": diff,
		})
		return s.entry(ctx, bars, domain.SignalEnterLong)
	case crossBelow(prevDiff, diff):
		s.logger.Debug(ctx, "death cross", map[string]interface{}{
			"strategy": s.Name(), "time": last.Timestamp, "spread": diff,
		})
		return s.entry(ctx, bars, domain.SignalEnterShort)
	default:
		return domain.None(last.Timestamp)
	}
}

func (s *DualMACrossover) spread(ctx context.Context, bars []*domain.Bar) (float64, error) {
	fast, err := s.fastMA.Calculate(ctx, bars)
	if err != nil {
		return 0, err
	}
	slow, err := s.slowMA.Calculate(ctx, bars)
	if err != nil {
		return 0, err
	}
	return fast - slow, nil
}
