package signals

import (
	"context"
	"fmt"

	"quantbt/internal/domain"
	"quantbt/internal/ports"
	"quantbt/internal/strategy/indicators"
)

// MABreakout enters when the close crosses the reference moving average
// (default MA55) and exits on a MACD divergence: inside each positive or
// negative histogram regime it tracks the running price and DIF extremes,
// and flags a reversal-exit when price makes a new extreme that the MACD
// line does not confirm.
type MABreakout struct {
	baseGenerator
	maPeriod int
	ma       *indicators.MovingAverage
	macd     *indicators.MACD

	// Divergence state, advanced once per bar.
	regime       int // sign of the MACD histogram, 0 until defined
	extremePrice float64
	extremeDIF   float64
}

// NewMABreakout creates the MA breakout variant with MACD divergence exit.
func NewMABreakout(p Params, logger ports.Logger) (*MABreakout, error) {
	maPeriod := p.MAPeriod
	if maPeriod <= 0 {
		maPeriod = 55
	}
	fast := p.MACDFastPeriod
	if fast <= 0 {
		fast = 12
	}
	slow := p.MACDSlowPeriod
	if slow <= 0 {
		slow = 26
	}
	if fast >= slow {
		return nil, fmt.Errorf("MACD fast period (%d) must be less than slow period (%d)", fast, slow)
	}
	sig := p.MACDSignalPeriod
	if sig <= 0 {
		sig = 9
	}

	return &MABreakout{
		baseGenerator: newBase(p, logger),
		maPeriod:      maPeriod,
		ma: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: maPeriod},
			Type:            indicators.SimpleMovingAverage,
		}),
		macd: indicators.NewMACD(indicators.MACDConfig{FastPeriod: fast, SlowPeriod: slow, SignalPeriod: sig}),
	}, nil
}

// Name returns the name of the strategy variant.
func (s *MABreakout) Name() string {
	return fmt.Sprintf("ma%d_breakout", s.maPeriod)
}

// RequiredDataPoints returns the bars needed before signals can fire.
func (s *MABreakout) RequiredDataPoints() int {
	req := s.maPeriod + 1
	if m := s.macd.RequiredDataPoints(); m > req {
		req = m
	}
	return req
}

// Evaluate classifies the last bar of the slice.
func (s *MABreakout) Evaluate(ctx context.Context, bars []*domain.Bar, pos *domain.Position) domain.Signal {
	last := bars[len(bars)-1]
	if len(bars) < s.maPeriod+1 {
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

	// Divergence tracking runs every bar once the MACD is warm, so the
	// regime extremes are current when an exit check happens.
	divergence := s.updateDivergence(ctx, bars, pos)

	switch {
	case crossAbove(prevClose-prevMA, last.Close-ma):
		s.logger.Debug(ctx, "breakout above MA", map[string]interface{}{
			"strategy": s.Name(), "time": last.Timestamp, "close": last.Close, "ma": ma,
		})
		return s.entry(ctx, bars, domain.SignalEnterLong)
	case crossBelow(prevClose-prevMA, last.Close-ma):
		s.logger.Debug(ctx, "breakdown below MA", map[string]interface{}{
			"strategy": s.Name(), "time": last.Timestamp, "close": last.Close, "ma": ma,
		})
		return s.entry(ctx, bars, domain.SignalEnterShort)
	case divergence:
		return domain.Signal{
			Type:      domain.SignalExitOnly,
			Timestamp: last.Timestamp,
			Reason:    domain.ExitReasonDivergence,
		}
	default:
		return domain.None(last.Timestamp)
	}
}

// updateDivergence advances the per-regime extremes and reports whether the
// current bar shows an unconfirmed price extreme against the open position.
func (s *MABreakout) updateDivergence(ctx context.Context, bars []*domain.Bar, pos *domain.Position) bool {
	last := bars[len(bars)-1]
	val, err := s.macd.Calculate(ctx, bars)
	if err != nil {
		return false
	}

	regime := 0
	if val.Hist > 0 {
		regime = 1
	} else if val.Hist < 0 {
		regime = -1
	}

	if regime != s.regime {
		// New histogram regime: restart the extreme trackers.
		s.regime = regime
		s.extremePrice = last.Close
		s.extremeDIF = val.DIF
		return false
	}

	diverged := false
	switch {
	case regime > 0 && pos.IsOpen() && pos.IsLong():
		if last.Close > s.extremePrice && val.DIF < s.extremeDIF {
			s.logger.Debug(ctx, "bearish MACD divergence", map[string]interface{}{
				"strategy": s.Name(), "time": last.Timestamp,
				"price": last.Close, "dif": val.DIF,
			})
			diverged = true
		}
	case regime < 0 && pos.IsOpen() && !pos.IsLong():
		if last.Close < s.extremePrice && val.DIF > s.extremeDIF {
			s.logger.Debug(ctx, "bullish MACD divergence", map[string]interface{}{
				"strategy": s.Name(), "time": last.Timestamp,
				"price": last.Close, "dif": val.DIF,
			})
			diverged = true
		}
	}

	if regime > 0 {
		if last.Close > s.extremePrice {
			s.extremePrice = last.Close
		}
		if val.DIF > s.extremeDIF {
			s.extremeDIF = val.DIF
		}
	} else if regime < 0 {
		if last.Close < s.extremePrice {
			s.extremePrice = last.Close
		}
		if val.DIF < s.extremeDIF {
			s.extremeDIF = val.DIF
		}
	}

	return diverged
}
