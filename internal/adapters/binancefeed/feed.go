package binancefeed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"quantbt/internal/domain"
	"quantbt/internal/ports"
)

// truncationSlack is how far past the requested start the vendor's first
// bar may be before the feed reports a truncated range. Free endpoints
// usually only serve a bounded recent history.
const truncationSlack = 5 * 24 * time.Hour

// Feed implements ports.BarFeed against the Binance futures kline endpoint.
type Feed struct {
	client *futures.Client
	logger ports.Logger
}

// Config holds configuration for the Binance feed adapter.
type Config struct {
	APIKey    string
	SecretKey string
	Logger    ports.Logger
}

// New creates a Binance-backed bar feed. Keys may be empty: the kline
// endpoint is public.
func New(cfg Config) (*Feed, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for binance feed")
	}
	return &Feed{client: futures.NewClient(cfg.APIKey, cfg.SecretKey), logger: cfg.Logger}, nil
}

// interval maps the run-level period notation ("daily", minutes as "5") to
// the vendor's interval strings.
func interval(period string) string {
	switch period {
	case "daily", "1d", "":
		return "1d"
	case "60":
		return "1h"
	default:
		return period + "m"
	}
}

// GetBars fetches the bar series for the requested window, paging through
// the vendor's response limit. Bars come back in strictly increasing
// timestamp order; a range not covered from the requested start yields a
// RangeWarning, never fabricated bars.
func (f *Feed) GetBars(ctx context.Context, symbol, period string, start, end time.Time) ([]*domain.Bar, *ports.RangeWarning, error) {
	if end.IsZero() {
		end = time.Now().UTC()
	}

	var bars []*domain.Bar
	const maxLimit = 1500
	from := start

	for {
		svc := f.client.NewKlinesService().Symbol(symbol).Interval(interval(period)).Limit(maxLimit)
		if !from.IsZero() {
			svc = svc.StartTime(from.UnixMilli())
		}
		svc = svc.EndTime(end.UnixMilli())

		klines, err := svc.Do(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s/%s: %v", ports.ErrFeedUnavailable, symbol, period, err)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			bar, err := translate(k, symbol, period)
			if err != nil {
				return nil, nil, fmt.Errorf("translating kline for %s: %w", symbol, err)
			}
			// The vendor's paging can overlap at the seam.
			if len(bars) > 0 && !bar.Timestamp.After(bars[len(bars)-1].Timestamp) {
				continue
			}
			bars = append(bars, bar)
		}

		last := klines[len(klines)-1]
		from = time.UnixMilli(last.CloseTime)
		if from.After(end) || len(klines) < maxLimit {
			break
		}
	}

	if len(bars) == 0 {
		return nil, nil, nil
	}

	var warning *ports.RangeWarning
	if !start.IsZero() && bars[0].Timestamp.After(start.Add(truncationSlack)) {
		warning = &ports.RangeWarning{
			RequestedStart: start,
			AvailableStart: bars[0].Timestamp,
			AvailableEnd:   bars[len(bars)-1].Timestamp,
		}
		f.logger.Warn(ctx, "bar history truncated by vendor", map[string]interface{}{
			"symbol": symbol, "requested": start, "available": bars[0].Timestamp,
		})
	}

	return bars, warning, nil
}

func translate(k *futures.Kline, symbol, period string) (*domain.Bar, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing open %q: %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing high %q: %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing low %q: %w", k.Low, err)
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing close %q: %w", k.Close, err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing volume %q: %w", k.Volume, err)
	}

	return &domain.Bar{
		Timestamp: time.UnixMilli(k.OpenTime).UTC(),
		Symbol:    symbol,
		Period:    period,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}, nil
}
