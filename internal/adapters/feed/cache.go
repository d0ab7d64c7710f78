package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quantbt/internal/domain"
	"quantbt/internal/ports"
)

// cacheEntry is an explicit cache value: the data plus when it was fetched.
// Entries are immutable once stored; parallel runs share them read-only.
type cacheEntry struct {
	bars      []*domain.Bar
	warning   *ports.RangeWarning
	fetchedAt time.Time
}

// CachedFeed is a read-through TTL cache in front of a feed. Backtests and
// optimizer trials over the same window hit the vendor once.
type CachedFeed struct {
	inner  ports.BarFeed
	ttl    time.Duration
	logger ports.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry

	now func() time.Time // injectable for tests
}

// NewCachedFeed wraps a feed with a TTL cache.
func NewCachedFeed(inner ports.BarFeed, ttl time.Duration, logger ports.Logger) (*CachedFeed, error) {
	if inner == nil {
		return nil, fmt.Errorf("inner feed is required for cached feed")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for cached feed")
	}
	return &CachedFeed{
		inner:  inner,
		ttl:    ttl,
		logger: logger,
		cache:  make(map[string]cacheEntry),
		now:    time.Now,
	}, nil
}

func cacheKey(symbol, period string, start, end time.Time) string {
	return fmt.Sprintf("%s|%s|%d|%d", symbol, period, start.Unix(), end.Unix())
}

// GetBars serves from cache when fresh, otherwise fetches and stores.
func (f *CachedFeed) GetBars(ctx context.Context, symbol, period string, start, end time.Time) ([]*domain.Bar, *ports.RangeWarning, error) {
	key := cacheKey(symbol, period, start, end)

	f.mu.RLock()
	entry, ok := f.cache[key]
	f.mu.RUnlock()
	if ok && f.now().Sub(entry.fetchedAt) < f.ttl {
		f.logger.Debug(ctx, "bar cache hit", map[string]interface{}{
			"symbol": symbol, "period": period, "fetched_at": entry.fetchedAt,
		})
		return entry.bars, entry.warning, nil
	}

	bars, warning, err := f.inner.GetBars(ctx, symbol, period, start, end)
	if err != nil {
		return nil, nil, err
	}

	f.mu.Lock()
	f.cache[key] = cacheEntry{bars: bars, warning: warning, fetchedAt: f.now()}
	f.mu.Unlock()

	return bars, warning, nil
}
