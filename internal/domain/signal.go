package domain

import "time"

// SignalType enumerates what a signal generator asks the engine to do.
type SignalType string

const (
	SignalNone        SignalType = "NONE"
	SignalEnterLong   SignalType = "ENTER_LONG"
	SignalEnterShort  SignalType = "ENTER_SHORT"
	SignalExitOnly    SignalType = "EXIT_ONLY"
	SignalPartialExit SignalType = "PARTIAL_EXIT"
)

// Signal is the per-bar output of a signal generator. It is computed using
// only bars at or before Timestamp.
type Signal struct {
	Type      SignalType
	Timestamp time.Time  // Bar the signal was computed on
	Reason    ExitReason // Set for exit-flavoured signals
	Fraction  float64    // Fraction of the position to close for PartialExit

	// StopDistance is the ATR-scaled stop distance in price units at the
	// signal's bar, 0 when the underlying indicator is still warming up.
	// Carried on the signal so the engine can size ATR-risk entries and
	// place ATR brackets without recomputing indicators.
	StopDistance float64
}

// None returns an empty signal stamped with the given bar time.
func None(ts time.Time) Signal {
	return Signal{Type: SignalNone, Timestamp: ts}
}

// IsEntry reports whether the signal requests a directional position.
func (s Signal) IsEntry() bool {
	return s.Type == SignalEnterLong || s.Type == SignalEnterShort
}
