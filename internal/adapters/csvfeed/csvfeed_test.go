package csvfeed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantbt/internal/adapters/logger"
	"quantbt/internal/domain"
	"quantbt/internal/ports"
)

var testLog = logger.NewStdLogger(logger.LevelError)

func sampleBars(n int) []*domain.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]*domain.Bar, n)
	for i := 0; i < n; i++ {
		base := 100.0 + float64(i)
		bars[i] = &domain.Bar{
			Timestamp:    start.AddDate(0, 0, i),
			Symbol:       "BTCUSDT",
			Period:       "daily",
			Open:         base,
			High:         base + 2.5,
			Low:          base - 1.25,
			Close:        base + 1,
			Volume:       1000 + float64(i)*10,
			OpenInterest: 500 + float64(i),
		}
	}
	return bars
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "BTCUSDT_daily.csv")
	want := sampleBars(5)

	require.NoError(t, WriteBars(want, path))
	got, err := ReadBars(path)
	require.NoError(t, err)
	require.Len(t, got, 5)

	for i := range want {
		assert.True(t, got[i].Timestamp.Equal(want[i].Timestamp), "bar %d timestamp", i)
		assert.Equal(t, want[i].Symbol, got[i].Symbol)
		assert.Equal(t, want[i].Period, got[i].Period)
		assert.Equal(t, want[i].Open, got[i].Open)
		assert.Equal(t, want[i].High, got[i].High)
		assert.Equal(t, want[i].Low, got[i].Low)
		assert.Equal(t, want[i].Close, got[i].Close)
		assert.Equal(t, want[i].Volume, got[i].Volume)
		assert.Equal(t, want[i].OpenInterest, got[i].OpenInterest)
	}
}

func TestReadBars_HeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, WriteBars(nil, path))

	bars, err := ReadBars(path)
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestReadBars_MalformedRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	content := "timestamp,symbol,period,open,high,low,close,volume,open_interest\n" +
		"2024-01-01T00:00:00Z,BTCUSDT,daily,abc,101,99,100,1000,500\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := ReadBars(path)
	assert.Error(t, err)
}

func TestFeed_WindowFiltering(t *testing.T) {
	dir := t.TempDir()
	feed, err := New(dir, testLog)
	require.NoError(t, err)

	all := sampleBars(10)
	require.NoError(t, WriteBars(all, feed.Path("BTCUSDT", "daily")))

	start := all[3].Timestamp
	end := all[6].Timestamp
	bars, warning, err := feed.GetBars(context.Background(), "BTCUSDT", "daily", start, end)
	require.NoError(t, err)
	require.Len(t, bars, 4)
	assert.True(t, bars[0].Timestamp.Equal(start))
	assert.True(t, bars[3].Timestamp.Equal(end))
	assert.Nil(t, warning)
}

func TestFeed_OpenEndedWindow(t *testing.T) {
	dir := t.TempDir()
	feed, err := New(dir, testLog)
	require.NoError(t, err)
	require.NoError(t, WriteBars(sampleBars(10), feed.Path("BTCUSDT", "daily")))

	bars, _, err := feed.GetBars(context.Background(), "BTCUSDT", "daily", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, bars, 10)
}

func TestFeed_MissingFile(t *testing.T) {
	feed, err := New(t.TempDir(), testLog)
	require.NoError(t, err)

	_, _, err = feed.GetBars(context.Background(), "ETHUSDT", "daily", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ports.ErrDataUnavailable)
}

func TestFeed_TruncationWarning(t *testing.T) {
	dir := t.TempDir()
	feed, err := New(dir, testLog)
	require.NoError(t, err)

	all := sampleBars(10)
	require.NoError(t, WriteBars(all, feed.Path("BTCUSDT", "daily")))

	requested := all[0].Timestamp.AddDate(0, 0, -30)
	bars, warning, err := feed.GetBars(context.Background(), "BTCUSDT", "daily", requested, time.Time{})
	require.NoError(t, err)
	assert.Len(t, bars, 10)
	require.NotNil(t, warning)
	assert.True(t, warning.RequestedStart.Equal(requested))
	assert.True(t, warning.AvailableStart.Equal(all[0].Timestamp))
	assert.True(t, warning.AvailableEnd.Equal(all[9].Timestamp))
}
