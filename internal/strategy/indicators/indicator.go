package indicators

import (
	"context"

	"quantbt/internal/domain"
)

// Indicator represents a causal technical indicator computed from bar data.
// The value for the last bar of the slice uses only bars in the slice; no
// implementation may look ahead.
type Indicator interface {
	// Calculate computes the indicator value at the last bar of the slice.
	Calculate(ctx context.Context, bars []*domain.Bar) (float64, error)

	// RequiredDataPoints returns the minimum number of bars needed for
	// the value to be defined. Fewer bars is a warm-up condition, not an
	// abortable failure.
	RequiredDataPoints() int

	// Name returns the name of the indicator.
	Name() string
}

// IndicatorConfig holds common configuration for indicators.
type IndicatorConfig struct {
	Period int
}

// BaseIndicator provides common functionality for indicators.
type BaseIndicator struct {
	Config IndicatorConfig
}

// RequiredDataPoints returns the minimum number of bars needed for calculation.
func (b *BaseIndicator) RequiredDataPoints() int {
	return b.Config.Period
}
