package signals

import (
	"context"
	"fmt"

	"quantbt/internal/domain"
	"quantbt/internal/ports"
)

// Generator turns the indicator state at a bar into a directional signal.
// Evaluate is causal: it may only read bars at or before the last element of
// the slice, and it is called exactly once per bar in feed order. During an
// indicator's warm-up it returns a None signal rather than an error.
type Generator interface {
	// Evaluate classifies the last bar of the slice. The position is a
	// read-only snapshot used by exit-flavoured rules.
	Evaluate(ctx context.Context, bars []*domain.Bar, pos *domain.Position) domain.Signal

	// RequiredDataPoints returns the minimum number of bars needed before
	// the generator can produce a non-None signal.
	RequiredDataPoints() int

	// Name returns the name of the strategy variant.
	Name() string
}

// Kind selects a strategy variant. The set is closed: variants are plain
// values dispatched by this enum, not discovered at run time.
type Kind string

const (
	KindDualMA     Kind = "dual_ma"
	KindMABreakout Kind = "ma_breakout"
	KindMATouch    Kind = "ma_touch"
	KindDKX        Kind = "dkx"
)

// Params carries the tunable parameters of all strategy variants. Zero
// values fall back to the variant's defaults.
type Params struct {
	// Dual MA crossover
	FastPeriod int    `json:"fast_period,omitempty"` // e.g., 5 or 20
	SlowPeriod int    `json:"slow_period,omitempty"` // e.g., 55
	MAType     string `json:"ma_type,omitempty"`     // "SMA" or "EMA"

	// Breakout / touch variants
	MAPeriod        int     `json:"ma_period,omitempty"`          // breakout reference MA, e.g., 55
	WeakBreakoutPct float64 `json:"weak_breakout_pct,omitempty"`  // breakout below this margin needs one confirming bar
	PartialTakePct  float64 `json:"partial_take_pct,omitempty"`   // unrealized gain fraction triggering a partial exit, 0 disables
	PartialFraction float64 `json:"partial_fraction,omitempty"`   // fraction of the position closed on partial exit

	// MACD (divergence exit)
	MACDFastPeriod   int `json:"macd_fast_period,omitempty"`   // e.g., 12
	MACDSlowPeriod   int `json:"macd_slow_period,omitempty"`   // e.g., 26
	MACDSignalPeriod int `json:"macd_signal_period,omitempty"` // e.g., 9

	// DKX
	DKXPeriod   int `json:"dkx_period,omitempty"`    // e.g., 20
	DKXMAPeriod int `json:"dkx_ma_period,omitempty"` // e.g., 10

	// ATR used for risk sizing and bracket offsets; attached to entry
	// signals as a stop distance.
	ATRPeriod     int     `json:"atr_period,omitempty"`     // e.g., 14
	ATRMultiplier float64 `json:"atr_multiplier,omitempty"` // e.g., 2.0
}

// New constructs the generator for a variant.
func New(kind Kind, p Params, logger ports.Logger) (Generator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for signal generator")
	}
	switch kind {
	case KindDualMA:
		return NewDualMACrossover(p, logger)
	case KindMABreakout:
		return NewMABreakout(p, logger)
	case KindMATouch:
		return NewMATouch(p, logger)
	case KindDKX:
		return NewDKXCrossover(p, logger)
	default:
		return nil, fmt.Errorf("unknown strategy kind: %q", kind)
	}
}

// crossAbove reports an upward cross given the previous and current values
// of the fast-minus-slow spread. A flat previous spread counts, so a series
// that starts equal and then separates still fires.
func crossAbove(prevDiff, diff float64) bool {
	return prevDiff <= 0 && diff > 0
}

// crossBelow reports a downward cross of the spread.
func crossBelow(prevDiff, diff float64) bool {
	return prevDiff >= 0 && diff < 0
}
