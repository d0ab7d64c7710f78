package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"quantbt/internal/domain"
	"quantbt/internal/ports"
)

// FallbackFeed tries an ordered list of candidate symbol codes against an
// underlying feed and returns the first non-empty series. Vendors expose
// the same contract under several codes (continuous, index, weighted); the
// candidate list makes that policy explicit instead of hiding it in
// catch-and-continue error handling. When no candidate yields data the
// caller gets a typed ErrNoCandidate, with the per-candidate errors joined.
type FallbackFeed struct {
	inner      ports.BarFeed
	candidates func(symbol string) []string
	logger     ports.Logger
}

// NewFallbackFeed wraps a feed with candidate-symbol fallback. The
// candidates function maps the requested symbol to the ordered codes to
// try; it must place the requested symbol first if it is itself valid.
func NewFallbackFeed(inner ports.BarFeed, candidates func(symbol string) []string, logger ports.Logger) (*FallbackFeed, error) {
	if inner == nil {
		return nil, fmt.Errorf("inner feed is required for fallback feed")
	}
	if candidates == nil {
		candidates = func(symbol string) []string { return []string{symbol} }
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for fallback feed")
	}
	return &FallbackFeed{inner: inner, candidates: candidates, logger: logger}, nil
}

// QuoteCandidates maps a bare base asset to the quote pairs to try in
// order of liquidity. A symbol that already names a full pair is tried
// as-is only.
func QuoteCandidates(symbol string) []string {
	for _, quote := range []string{"USDT", "BUSD", "USDC", "USD"} {
		if strings.HasSuffix(symbol, quote) {
			return []string{symbol}
		}
	}
	return []string{symbol + "USDT", symbol + "BUSD", symbol + "USDC"}
}

// GetBars tries each candidate in order.
func (f *FallbackFeed) GetBars(ctx context.Context, symbol, period string, start, end time.Time) ([]*domain.Bar, *ports.RangeWarning, error) {
	cands := f.candidates(symbol)
	if len(cands) == 0 {
		cands = []string{symbol}
	}

	var errs []error
	for _, cand := range cands {
		bars, warning, err := f.inner.GetBars(ctx, cand, period, start, end)
		if err != nil {
			f.logger.Warn(ctx, "candidate symbol failed", map[string]interface{}{
				"requested": symbol, "candidate": cand, "error": err.Error(),
			})
			errs = append(errs, fmt.Errorf("%s: %w", cand, err))
			continue
		}
		if len(bars) == 0 {
			errs = append(errs, fmt.Errorf("%s: empty series", cand))
			continue
		}
		if cand != symbol {
			f.logger.Info(ctx, "fell back to candidate symbol", map[string]interface{}{
				"requested": symbol, "candidate": cand,
			})
		}
		return bars, warning, nil
	}

	return nil, nil, fmt.Errorf("%w for %s: %w", ports.ErrNoCandidate, symbol, errors.Join(errs...))
}
