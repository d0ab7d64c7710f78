package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantbt/internal/adapters/logger"
	"quantbt/internal/domain"
	"quantbt/internal/ports"
)

var testLog = logger.NewStdLogger(logger.LevelError)

// symbolFeed serves a canned response per symbol and records requests.
type symbolFeed struct {
	responses map[string][]*domain.Bar
	errs      map[string]error
	requested []string
}

func (f *symbolFeed) GetBars(ctx context.Context, symbol, period string, start, end time.Time) ([]*domain.Bar, *ports.RangeWarning, error) {
	f.requested = append(f.requested, symbol)
	if err, ok := f.errs[symbol]; ok {
		return nil, nil, err
	}
	return f.responses[symbol], nil, nil
}

func oneBar(symbol string) []*domain.Bar {
	return []*domain.Bar{{
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Symbol:    symbol, Period: "daily",
		Open: 100, High: 101, Low: 99, Close: 100,
	}}
}

func TestNewFallbackFeed_Validation(t *testing.T) {
	_, err := NewFallbackFeed(nil, QuoteCandidates, testLog)
	assert.Error(t, err)

	_, err = NewFallbackFeed(&symbolFeed{}, QuoteCandidates, nil)
	assert.Error(t, err)

	// nil candidates degrades to trying the requested symbol only.
	ff, err := NewFallbackFeed(&symbolFeed{responses: map[string][]*domain.Bar{"X": oneBar("X")}}, nil, testLog)
	require.NoError(t, err)
	bars, _, err := ff.GetBars(context.Background(), "X", "daily", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, bars, 1)
}

func TestFallbackFeed_FirstCandidateWins(t *testing.T) {
	inner := &symbolFeed{responses: map[string][]*domain.Bar{
		"BTCUSDT": oneBar("BTCUSDT"),
		"BTCBUSD": oneBar("BTCBUSD"),
	}}
	ff, err := NewFallbackFeed(inner, QuoteCandidates, testLog)
	require.NoError(t, err)

	bars, _, err := ff.GetBars(context.Background(), "BTC", "daily", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", bars[0].Symbol)
	assert.Equal(t, []string{"BTCUSDT"}, inner.requested)
}

func TestFallbackFeed_SkipsFailingCandidates(t *testing.T) {
	inner := &symbolFeed{
		responses: map[string][]*domain.Bar{"BTCUSDC": oneBar("BTCUSDC")},
		errs:      map[string]error{"BTCUSDT": ports.ErrFeedUnavailable},
	}
	ff, err := NewFallbackFeed(inner, QuoteCandidates, testLog)
	require.NoError(t, err)

	// BTCUSDT errors, BTCBUSD is empty, BTCUSDC delivers.
	bars, _, err := ff.GetBars(context.Background(), "BTC", "daily", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDC", bars[0].Symbol)
	assert.Equal(t, []string{"BTCUSDT", "BTCBUSD", "BTCUSDC"}, inner.requested)
}

func TestFallbackFeed_AllCandidatesFail(t *testing.T) {
	inner := &symbolFeed{errs: map[string]error{"ETHUSDT": ports.ErrFeedUnavailable}}
	ff, err := NewFallbackFeed(inner, QuoteCandidates, testLog)
	require.NoError(t, err)

	_, _, err = ff.GetBars(context.Background(), "ETH", "daily", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ports.ErrNoCandidate)
	assert.ErrorIs(t, err, ports.ErrFeedUnavailable)
}

func TestQuoteCandidates(t *testing.T) {
	assert.Equal(t, []string{"BTCUSDT"}, QuoteCandidates("BTCUSDT"))
	assert.Equal(t, []string{"ETHBUSD"}, QuoteCandidates("ETHBUSD"))
	assert.Equal(t, []string{"SOLUSD"}, QuoteCandidates("SOLUSD"))
	assert.Equal(t, []string{"BTCUSDT", "BTCBUSD", "BTCUSDC"}, QuoteCandidates("BTC"))
}
