package domain

import "time"

// Fill is the trade record emitted by the lifecycle manager for every
// execution. Closing fills (close/reverse/reduce) additionally carry the
// entry price, realized net PnL and adverse excursion of the segment they
// ended; the pointers are nil on opening and adding fills.
type Fill struct {
	Timestamp         time.Time
	Direction         Direction
	Action            Action
	Price             float64
	Size              int // Signed fill quantity
	ResultingPosition int
	Reason            ExitReason

	EntryPrice            *float64
	NetPnL                *float64
	AdverseExcursionPrice *float64
}

// IsClosing reports whether the fill ended (fully or partially) a position
// segment and therefore carries realized PnL.
func (f *Fill) IsClosing() bool {
	return f.NetPnL != nil
}
