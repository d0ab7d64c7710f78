package signals

import (
	"context"

	"quantbt/internal/domain"
	"quantbt/internal/ports"
	"quantbt/internal/strategy/indicators"
)

// baseGenerator carries the logger and the ATR shared by all variants.
// Entry signals are tagged with an ATR-scaled stop distance so the engine
// can size risk-based entries and place protective brackets.
type baseGenerator struct {
	logger        ports.Logger
	atr           *indicators.ATR
	atrMultiplier float64
}

func newBase(p Params, logger ports.Logger) baseGenerator {
	atrPeriod := p.ATRPeriod
	if atrPeriod <= 0 {
		atrPeriod = 14
	}
	mult := p.ATRMultiplier
	if mult <= 0 {
		mult = 2.0
	}
	return baseGenerator{
		logger:        logger,
		atr:           indicators.NewATR(indicators.ATRConfig{IndicatorConfig: indicators.IndicatorConfig{Period: atrPeriod}}),
		atrMultiplier: mult,
	}
}

// stopDistance returns the ATR-scaled stop distance at the last bar, or 0
// while the ATR is warming up.
func (b *baseGenerator) stopDistance(ctx context.Context, bars []*domain.Bar) float64 {
	atr, err := b.atr.Calculate(ctx, bars)
	if err != nil || atr <= 0 {
		return 0
	}
	return atr * b.atrMultiplier
}

func (b *baseGenerator) entry(ctx context.Context, bars []*domain.Bar, t domain.SignalType) domain.Signal {
	last := bars[len(bars)-1]
	return domain.Signal{
		Type:         t,
		Timestamp:    last.Timestamp,
		StopDistance: b.stopDistance(ctx, bars),
	}
}
