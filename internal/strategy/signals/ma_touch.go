package signals

import (
	"context"
	"fmt"

	"quantbt/internal/domain"
	"quantbt/internal/ports"
	"quantbt/internal/strategy/indicators"
)

// MATouch enters on a close crossing the reference moving average and exits
// when price reverts to touch the average again. A breakout whose margin is
// below WeakBreakoutPct is treated as weak: the touch exit stays disarmed
// until one later bar confirms the move by closing beyond the average.
// Optionally emits a one-shot partial take-profit per position segment.
type MATouch struct {
	baseGenerator
	maPeriod        int
	weakBreakoutPct float64
	partialTakePct  float64
	partialFraction float64
	ma              *indicators.MovingAverage

	weakEntry   bool
	confirmed   bool
	tookPartial bool
}

// NewMATouch creates the MA touch-exit variant.
func NewMATouch(p Params, logger ports.Logger) (*MATouch, error) {
	maPeriod := p.MAPeriod
	if maPeriod <= 0 {
		maPeriod = 55
	}
	weak := p.WeakBreakoutPct
	if weak < 0 {
		return nil, fmt.Errorf("weak breakout margin must not be negative, got %f", weak)
	}
	if weak == 0 {
		weak = 0.002
	}
	fraction := p.PartialFraction
	if fraction <= 0 || fraction > 1 {
		fraction = 0.5
	}

	return &MATouch{
		baseGenerator:   newBase(p, logger),
		maPeriod:        maPeriod,
		weakBreakoutPct: weak,
		partialTakePct:  p.PartialTakePct,
		partialFraction: fraction,
		ma: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: maPeriod},
			Type:            indicators.SimpleMovingAverage,
		}),
	}, nil
}

// Name returns the name of the strategy variant.
func (s *MATouch) Name() string {
	return fmt.Sprintf("ma%d_touch", s.maPeriod)
}

// RequiredDataPoints returns the bars needed before signals can fire.
func (s *MATouch) RequiredDataPoints() int {
	return s.maPeriod + 1
}

// Evaluate classifies the last bar of the slice.
func (s *MATouch) Evaluate(ctx context.Context, bars []*domain.Bar, pos *domain.Position) domain.Signal {
	last := bars[len(bars)-1]
	if len(bars) < s.RequiredDataPoints() {
		return domain.None(last.Timestamp)
	}

	ma, err := s.ma.Calculate(ctx, bars)
	if err != nil {
		return domain.None(last.Timestamp)
	}
	prevMA, err := s.ma.Calculate(ctx, bars[:len(bars)-1])
	if err != nil {
		return domain.None(last.Timestamp)
	}
	prevClose := bars[len(bars)-2].Close

	if !pos.IsOpen() {
		s.tookPartial = false
		switch {
		case crossAbove(prevClose-prevMA, last.Close-ma):
			s.armBreakout(last.Close, ma)
			return s.entry(ctx, bars, domain.SignalEnterLong)
		case crossBelow(prevClose-prevMA, last.Close-ma):
			s.armBreakout(last.Close, ma)
			return s.entry(ctx, bars, domain.SignalEnterShort)
		default:
			return domain.None(last.Timestamp)
		}
	}

	// A weak breakout needs one bar that stays beyond the average before
	// the touch exit is armed. The confirming bar is judged on its close.
	if s.weakEntry && !s.confirmed {
		if (pos.IsLong() && last.Close > ma) || (!pos.IsLong() && last.Close < ma) {
			s.confirmed = true
		}
		return domain.None(last.Timestamp)
	}

	touched := (pos.IsLong() && last.Low <= ma) || (!pos.IsLong() && last.High >= ma)
	if touched {
		s.logger.Debug(ctx, "mean reversion touch", map[string]interface{}{
			"strategy": s.Name(), "time": last.Timestamp, "ma": ma,
			"low": last.Low, "high": last.High,
		})
		return domain.Signal{
			Type:      domain.SignalExitOnly,
			Timestamp: last.Timestamp,
			Reason:    domain.ExitReasonTouch,
		}
	}

	if s.partialTakePct > 0 && !s.tookPartial && pos.AvgEntryPrice > 0 {
		gain := (last.Close - pos.AvgEntryPrice) / pos.AvgEntryPrice
		if !pos.IsLong() {
			gain = -gain
		}
		if gain >= s.partialTakePct {
			s.tookPartial = true
			return domain.Signal{
				Type:      domain.SignalPartialExit,
				Timestamp: last.Timestamp,
				Reason:    domain.ExitReasonPartial,
				Fraction:  s.partialFraction,
			}
		}
	}

	return domain.None(last.Timestamp)
}

func (s *MATouch) armBreakout(close, ma float64) {
	margin := (close - ma) / ma
	if margin < 0 {
		margin = -margin
	}
	s.weakEntry = margin < s.weakBreakoutPct
	s.confirmed = !s.weakEntry
}
