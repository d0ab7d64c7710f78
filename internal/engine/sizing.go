package engine

import "math"

// SizingRequest is the pure input to a sizing policy. It carries no hidden
// state: equity and price are the caller's view at the decision bar.
type SizingRequest struct {
	Equity             float64
	ReferencePrice     float64
	StopDistance       float64 // 0 when the ATR is undefined (warm-up)
	ContractMultiplier float64
	MarginRate         float64
}

// Sizer maps a sizing request to an integer contract count. Implementations
// never return a negative value; 0 means the inputs make a statistically
// meaningless order and the lifecycle manager recovers per its own policy.
type Sizer interface {
	Contracts(req SizingRequest) int
	Name() string
}

// FixedSizer always returns a constant contract count.
type FixedSizer struct {
	size int
}

// NewFixedSizer creates a fixed sizer. A non-positive size is a
// misconfiguration and falls back to 1 contract.
func NewFixedSizer(size int) *FixedSizer {
	if size <= 0 {
		size = 1
	}
	return &FixedSizer{size: size}
}

// Name returns the policy name.
func (s *FixedSizer) Name() string { return "fixed" }

// Contracts returns the configured constant count.
func (s *FixedSizer) Contracts(SizingRequest) int { return s.size }

// EquityPercentSizer targets a fraction of equity as position notional,
// scaled by the margin rate.
type EquityPercentSizer struct {
	targetFraction float64
}

// NewEquityPercentSizer creates an equity-percent sizer.
func NewEquityPercentSizer(targetFraction float64) *EquityPercentSizer {
	return &EquityPercentSizer{targetFraction: targetFraction}
}

// Name returns the policy name.
func (s *EquityPercentSizer) Name() string { return "equity_percent" }

// Contracts returns floor(equity * fraction / (price * multiplier * marginRate)).
func (s *EquityPercentSizer) Contracts(req SizingRequest) int {
	if s.targetFraction <= 0 || req.Equity <= 0 ||
		req.ReferencePrice <= 0 || req.ContractMultiplier <= 0 || req.MarginRate <= 0 {
		return 0
	}
	n := math.Floor(req.Equity * s.targetFraction / (req.ReferencePrice * req.ContractMultiplier * req.MarginRate))
	if n < 0 {
		return 0
	}
	return int(n)
}

// ATRRiskSizer risks a fixed fraction of equity per trade against the
// ATR-scaled stop distance.
type ATRRiskSizer struct {
	riskFraction float64
}

// NewATRRiskSizer creates an ATR-risk sizer.
func NewATRRiskSizer(riskFraction float64) *ATRRiskSizer {
	return &ATRRiskSizer{riskFraction: riskFraction}
}

// Name returns the policy name.
func (s *ATRRiskSizer) Name() string { return "atr_risk" }

// Contracts returns floor(equity * riskFraction / (stopDistance * multiplier)).
// An undefined or non-positive stop distance yields 0; the lifecycle manager
// falls back rather than guessing a risk it cannot bound.
func (s *ATRRiskSizer) Contracts(req SizingRequest) int {
	if s.riskFraction <= 0 || req.Equity <= 0 ||
		req.StopDistance <= 0 || req.ContractMultiplier <= 0 {
		return 0
	}
	n := math.Floor(req.Equity * s.riskFraction / (req.StopDistance * req.ContractMultiplier))
	if n < 0 {
		return 0
	}
	return int(n)
}
