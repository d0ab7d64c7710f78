package ports

import (
	"context"
	"fmt"
	"time"

	"quantbt/internal/domain"
)

// RangeWarning reports that a feed could satisfy a request only partially:
// the vendor's history starts later than the requested start. The bars
// returned alongside it are real data, never fabricated backfill.
type RangeWarning struct {
	RequestedStart time.Time
	AvailableStart time.Time
	AvailableEnd   time.Time
}

// String renders the warning as an advisory log line for run results.
func (w *RangeWarning) String() string {
	return fmt.Sprintf("data warning: source only covers %s..%s (requested start %s)",
		w.AvailableStart.Format("2006-01-02"), w.AvailableEnd.Format("2006-01-02"),
		w.RequestedStart.Format("2006-01-02"))
}

// BarFeed delivers historical bars for a symbol and period. Implementations
// must return bars in strictly increasing timestamp order and must surface a
// RangeWarning instead of silently substituting data when the available
// history does not cover the requested start.
type BarFeed interface {
	GetBars(ctx context.Context, symbol, period string, start, end time.Time) ([]*domain.Bar, *RangeWarning, error)
}
