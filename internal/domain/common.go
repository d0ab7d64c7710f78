package domain

// Direction represents the side of a fill (BUY or SELL).
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// Action classifies what a fill did to the position, derived from the
// position size before the fill and the fill size.
type Action string

const (
	ActionOpen    Action = "open"
	ActionAdd     Action = "add"
	ActionReduce  Action = "reduce"
	ActionClose   Action = "close"
	ActionReverse Action = "reverse"
)

// ExitReason indicates why an exit-flavoured fill or signal happened.
type ExitReason string

const (
	ExitReasonStopLoss    ExitReason = "SL"
	ExitReasonTakeProfit  ExitReason = "TP"
	ExitReasonSignal      ExitReason = "SIGNAL"
	ExitReasonTouch       ExitReason = "TOUCH"
	ExitReasonDivergence  ExitReason = "DIVERGENCE"
	ExitReasonPartial     ExitReason = "PARTIAL_TP"
	ExitReasonEndOfWindow ExitReason = "END_OF_WINDOW"
)

// ClassifyAction derives the action label from the position size before the
// fill and the resulting size after it.
func ClassifyAction(prevSize, newSize int) Action {
	switch {
	case prevSize == 0 && newSize != 0:
		return ActionOpen
	case prevSize != 0 && newSize == 0:
		return ActionClose
	case sign(prevSize) != sign(newSize):
		return ActionReverse
	case abs(newSize) > abs(prevSize):
		return ActionAdd
	default:
		return ActionReduce
	}
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
