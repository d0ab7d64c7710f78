package signals

import (
	"context"
	"fmt"

	"quantbt/internal/domain"
	"quantbt/internal/ports"
	"quantbt/internal/strategy/indicators"
)

// DKXCrossover trades the DKX weighted oscillator against its own moving
// average, symmetric to the dual-MA case: DKX crossing above MADKX enters
// long, crossing below enters short.
type DKXCrossover struct {
	baseGenerator
	period   int
	maPeriod int
	dkx      *indicators.DKX
}

// NewDKXCrossover creates the DKX crossover variant.
func NewDKXCrossover(p Params, logger ports.Logger) (*DKXCrossover, error) {
	period := p.DKXPeriod
	if period <= 0 {
		period = 20
	}
	maPeriod := p.DKXMAPeriod
	if maPeriod <= 0 {
		maPeriod = 10
	}

	return &DKXCrossover{
		baseGenerator: newBase(p, logger),
		period:        period,
		maPeriod:      maPeriod,
		dkx:           indicators.NewDKX(indicators.DKXConfig{Period: period, MAPeriod: maPeriod}),
	}, nil
}

// Name returns the name of the strategy variant.
func (s *DKXCrossover) Name() string {
	return fmt.Sprintf("dkx_%d_%d", s.period, s.maPeriod)
}

// RequiredDataPoints returns the bars needed before a cross can be detected.
func (s *DKXCrossover) RequiredDataPoints() int {
	return s.dkx.RequiredDataPoints() + 1
}

// Evaluate classifies the last bar of the slice.
func (s *DKXCrossover) Evaluate(ctx context.Context, bars []*domain.Bar, pos *domain.Position) domain.Signal {
	last := bars[len(bars)-1]
	if len(bars) < s.RequiredDataPoints() {
		return domain.None(last.Timestamp)
	}

	cur, err := s.dkx.Calculate(ctx, bars)
	if err != nil {
		return domain.None(last.Timestamp)
	}
	prev, err := s.dkx.Calculate(ctx, bars[:len(bars)-1])
	if err != nil {
		return domain.None(last.Timestamp)
	}

	diff := cur.DKX - cur.MADKX
	prevDiff := prev.DKX - prev.MADKX

	switch {
	case crossAbove(prevDiff, diff):
		s.logger.Debug(ctx, "DKX cross above MADKX", map[string]interface{}{
			"strategy": s.Name(), "time": last.Timestamp, "dkx": cur.DKX, "madkx": cur.MADKX,
		})
		return s.entry(ctx, bars, domain.SignalEnterLong)
	case crossBelow(prevDiff, diff):
		s.logger.Debug(ctx, "DKX cross below MADKX", map[string]interface{}{
			"strategy": s.Name(), "time": last.Timestamp, "dkx": cur.DKX, "madkx": cur.MADKX,
		})
		return s.entry(ctx, bars, domain.SignalEnterShort)
	default:
		return domain.None(last.Timestamp)
	}
}
