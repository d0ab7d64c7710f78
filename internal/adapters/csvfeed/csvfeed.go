package csvfeed

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"quantbt/internal/domain"
	"quantbt/internal/ports"
)

var header = []string{"timestamp", "symbol", "period", "open", "high", "low", "close", "volume", "open_interest"}

// WriteBars writes a bar series to a CSV file.
func WriteBars(bars []*domain.Bar, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(header); err != nil {
		return err
	}
	for _, b := range bars {
		err := writer.Write([]string{
			b.Timestamp.Format(time.RFC3339),
			b.Symbol,
			b.Period,
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
			strconv.FormatFloat(b.OpenInterest, 'f', -1, 64),
		})
		if err != nil {
			return err
		}
	}
	return writer.Error()
}

// ReadBars loads a bar series from a CSV file written by WriteBars.
func ReadBars(filename string) ([]*domain.Bar, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, nil
	}

	bars := make([]*domain.Bar, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) < len(header) {
			return nil, fmt.Errorf("row %d: expected %d columns, got %d", i+2, len(header), len(rec))
		}
		ts, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing timestamp %q: %w", i+2, rec[0], err)
		}
		vals := make([]float64, 6)
		for j := 0; j < 6; j++ {
			v, err := strconv.ParseFloat(rec[3+j], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: parsing %s %q: %w", i+2, header[3+j], rec[3+j], err)
			}
			vals[j] = v
		}
		bars = append(bars, &domain.Bar{
			Timestamp:    ts,
			Symbol:       rec[1],
			Period:       rec[2],
			Open:         vals[0],
			High:         vals[1],
			Low:          vals[2],
			Close:        vals[3],
			Volume:       vals[4],
			OpenInterest: vals[5],
		})
	}
	return bars, nil
}

// Feed implements ports.BarFeed over a directory of CSV files, one file per
// symbol and period, named <symbol>_<period>.csv. Useful for offline runs
// and for replaying a pinned data set.
type Feed struct {
	dir    string
	logger ports.Logger
}

// New creates a CSV-backed bar feed rooted at dir.
func New(dir string, logger ports.Logger) (*Feed, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for csv feed")
	}
	return &Feed{dir: dir, logger: logger}, nil
}

// Path returns the file a symbol/period pair is stored at.
func (f *Feed) Path(symbol, period string) string {
	return filepath.Join(f.dir, fmt.Sprintf("%s_%s.csv", symbol, period))
}

// GetBars loads the stored series and filters it to the requested window.
func (f *Feed) GetBars(ctx context.Context, symbol, period string, start, end time.Time) ([]*domain.Bar, *ports.RangeWarning, error) {
	path := f.Path(symbol, period)
	all, err := ReadBars(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: no csv file at %s", ports.ErrDataUnavailable, path)
		}
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil, nil
	}

	var bars []*domain.Bar
	for _, b := range all {
		if !start.IsZero() && b.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && b.Timestamp.After(end) {
			continue
		}
		bars = append(bars, b)
	}

	var warning *ports.RangeWarning
	if !start.IsZero() && all[0].Timestamp.After(start.Add(24*time.Hour)) {
		warning = &ports.RangeWarning{
			RequestedStart: start,
			AvailableStart: all[0].Timestamp,
			AvailableEnd:   all[len(all)-1].Timestamp,
		}
	}
	return bars, warning, nil
}
