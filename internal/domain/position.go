package domain

import "time"

// Position is the signed per-instrument position owned exclusively by the
// lifecycle manager. Size > 0 is long, < 0 short, 0 flat.
// AvgEntryPrice is meaningful iff Size != 0.
type Position struct {
	Size          int
	AvgEntryPrice float64
	EntryTime     time.Time

	// AdverseExcursionPrice tracks the worst price touched against the
	// open position (lowest low for longs, highest high for shorts) since
	// entry. Nil while flat; reset on close and reverse.
	AdverseExcursionPrice *float64
	AdverseExcursionTime  time.Time
}

// IsOpen reports whether a position is held.
func (p *Position) IsOpen() bool {
	return p.Size != 0
}

// IsLong reports whether the position is long.
func (p *Position) IsLong() bool {
	return p.Size > 0
}

// MarkAdverse folds one bar's extremes into the adverse excursion.
func (p *Position) MarkAdverse(bar *Bar) {
	if p.Size == 0 {
		return
	}
	extreme := bar.Low
	if p.Size < 0 {
		extreme = bar.High
	}
	if p.AdverseExcursionPrice == nil ||
		(p.Size > 0 && extreme < *p.AdverseExcursionPrice) ||
		(p.Size < 0 && extreme > *p.AdverseExcursionPrice) {
		v := extreme
		p.AdverseExcursionPrice = &v
		p.AdverseExcursionTime = bar.Timestamp
	}
}

// Reset returns the position to flat and clears excursion state.
func (p *Position) Reset() {
	p.Size = 0
	p.AvgEntryPrice = 0
	p.EntryTime = time.Time{}
	p.AdverseExcursionPrice = nil
	p.AdverseExcursionTime = time.Time{}
}

// BracketPair is the protective stop-loss/take-profit pair attached to an
// open position. The two legs are submitted and cancelled together (OCO):
// at any time either both are live or neither is.
type BracketPair struct {
	StopPrice     float64
	TargetPrice   float64
	ProtectedSize int // Signed size the pair protects
}
