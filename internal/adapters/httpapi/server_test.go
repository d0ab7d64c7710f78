package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantbt/internal/adapters/logger"
	"quantbt/internal/backtest"
	"quantbt/internal/domain"
	"quantbt/internal/ports"
)

// stubFeed serves a fixed in-memory series regardless of the requested range.
type stubFeed struct {
	bars []*domain.Bar
	err  error
}

func (f *stubFeed) GetBars(ctx context.Context, symbol, period string, start, end time.Time) ([]*domain.Bar, *ports.RangeWarning, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.bars, nil, nil
}

// memRepo is an in-memory RunRepository.
type memRepo struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]*domain.RunRecord
}

func newMemRepo() *memRepo {
	return &memRepo{nextID: 1, records: make(map[int64]*domain.RunRecord)}
}

func (r *memRepo) Save(ctx context.Context, rec *domain.RunRecord) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	cp.ID = r.nextID
	r.records[cp.ID] = &cp
	r.nextID++
	return cp.ID, nil
}

func (r *memRepo) FindByID(ctx context.Context, id int64) (*domain.RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *memRepo) List(ctx context.Context, limit int) ([]*domain.RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.RunRecord
	for id := r.nextID - 1; id >= 1 && len(out) < limit; id-- {
		if rec, ok := r.records[id]; ok {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return fmt.Errorf("%w: run record %d", ports.ErrNotFound, id)
	}
	delete(r.records, id)
	return nil
}

// zigzagBars produces a daily series with enough swings for a fast/slow MA
// crossover pair to fire a few times.
func zigzagBars(n int) []*domain.Bar {
	bars := make([]*domain.Bar, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		price := 100.0
		switch (i / 8) % 2 {
		case 0:
			price += float64(i % 8 * 3)
		case 1:
			price += 21 - float64(i%8*3)
		}
		bars[i] = &domain.Bar{
			Timestamp: base.AddDate(0, 0, i),
			Symbol:    "BTCUSDT",
			Period:    "daily",
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
		}
	}
	return bars
}

func newTestServer(t *testing.T, feed ports.BarFeed, repo ports.RunRepository) *Server {
	t.Helper()
	log := logger.NewStdLogger(logger.LevelError)
	runner, err := backtest.NewRunner(feed, log)
	require.NoError(t, err)
	srv, err := NewServer(Config{Runner: runner, Repo: repo, Logger: log})
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func baseRunBody() map[string]interface{} {
	return map[string]interface{}{
		"symbol":   "BTCUSDT",
		"period":   "daily",
		"strategy": "dual_ma",
		"params": map[string]interface{}{
			"fast_period": 3,
			"slow_period": 6,
		},
		"initial_cash": 100000.0,
		"sizing":       map[string]interface{}{"mode": "fixed", "fixed_size": 1},
	}
}

func TestServer_RunBacktest(t *testing.T) {
	repo := newMemRepo()
	srv := newTestServer(t, &stubFeed{bars: zigzagBars(60)}, repo)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/backtest", baseRunBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		ID      int64  `json:"id"`
		RunID   string `json:"run_id"`
		Status  string `json:"status"`
		Metrics struct {
			TotalTrades int `json:"total_trades"`
		} `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.NotEmpty(t, resp.RunID)
	assert.Greater(t, resp.ID, int64(0))
	assert.Greater(t, resp.Metrics.TotalTrades, 0)

	// The run was persisted.
	stored, err := repo.FindByID(context.Background(), resp.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, resp.RunID, stored.RunID)
	assert.False(t, stored.IsOptimized)
}

func TestServer_RunBacktest_BadBody(t *testing.T) {
	srv := newTestServer(t, &stubFeed{bars: zigzagBars(60)}, newMemRepo())

	req := httptest.NewRequest(http.MethodPost, "/api/backtest", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp["status"])
}

func TestServer_RunBacktest_InvalidWindow(t *testing.T) {
	srv := newTestServer(t, &stubFeed{bars: zigzagBars(60)}, newMemRepo())

	body := baseRunBody()
	body["start_date"] = "2024-06-01T00:00:00Z"
	body["end_date"] = "2024-01-01T00:00:00Z"
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/backtest", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RunBacktest_NoData(t *testing.T) {
	srv := newTestServer(t, &stubFeed{bars: nil}, newMemRepo())

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/backtest", baseRunBody())
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServer_GetListDelete(t *testing.T) {
	repo := newMemRepo()
	srv := newTestServer(t, &stubFeed{bars: zigzagBars(60)}, repo)

	run := doJSON(t, srv.Handler(), http.MethodPost, "/api/backtest", baseRunBody())
	require.Equal(t, http.StatusOK, run.Code)
	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(run.Body.Bytes(), &created))

	get := doJSON(t, srv.Handler(), http.MethodGet, fmt.Sprintf("/api/backtest/%d", created.ID), nil)
	assert.Equal(t, http.StatusOK, get.Code)

	list := doJSON(t, srv.Handler(), http.MethodGet, "/api/backtest/list", nil)
	assert.Equal(t, http.StatusOK, list.Code)
	var listed struct {
		Records []recordView `json:"records"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &listed))
	require.Len(t, listed.Records, 1)
	assert.Equal(t, "BTCUSDT", listed.Records[0].Symbol)

	del := doJSON(t, srv.Handler(), http.MethodDelete, fmt.Sprintf("/api/backtest/%d", created.ID), nil)
	assert.Equal(t, http.StatusOK, del.Code)

	again := doJSON(t, srv.Handler(), http.MethodGet, fmt.Sprintf("/api/backtest/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, again.Code)
}

func TestServer_GetUnknownID(t *testing.T) {
	srv := newTestServer(t, &stubFeed{bars: zigzagBars(60)}, newMemRepo())

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/backtest/424242", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Optimize(t *testing.T) {
	repo := newMemRepo()
	srv := newTestServer(t, &stubFeed{bars: zigzagBars(60)}, repo)

	body := map[string]interface{}{
		"request":       baseRunBody(),
		"target_return": 1e12, // unreachable, exhaust the trials
		"max_trials":    3,
		"seed":          7,
	}
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/optimize", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Status string `json:"status"`
		ID     int64  `json:"id"`
		Result struct {
			Trials int `json:"trials"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 3, resp.Result.Trials)

	stored, err := repo.FindByID(context.Background(), resp.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsOptimized)
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, &stubFeed{bars: zigzagBars(10)}, newMemRepo())

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
