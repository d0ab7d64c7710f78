package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"quantbt/internal/backtest"
	"quantbt/internal/domain"
	"quantbt/internal/optimization"
	"quantbt/internal/ports"
)

// Server exposes backtest runs, run history and parameter tuning over HTTP.
type Server struct {
	runner *backtest.Runner
	repo   ports.RunRepository
	logger ports.Logger
	router *mux.Router

	httpServer *http.Server
}

// Config holds configuration for the HTTP server.
type Config struct {
	Addr   string
	Runner *backtest.Runner
	Repo   ports.RunRepository
	Logger ports.Logger
}

// NewServer builds the API server and its routes.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required for API server")
	}
	if cfg.Repo == nil {
		return nil, fmt.Errorf("run repository is required for API server")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for API server")
	}
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		runner: cfg.Runner,
		repo:   cfg.Repo,
		logger: cfg.Logger,
		router: mux.NewRouter(),
	}
	s.routes()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // long runs stream nothing; the whole result is written at the end
	}
	return s, nil
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/backtest", s.handleRunBacktest).Methods(http.MethodPost)
	api.HandleFunc("/backtest/list", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/backtest/{id:[0-9]+}", s.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/backtest/{id:[0-9]+}", s.handleDelete).Methods(http.MethodDelete)
	api.HandleFunc("/optimize", s.handleOptimize).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

// Handler returns the HTTP handler, used directly by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the server until the listener fails or Shutdown is
// called.
func (s *Server) ListenAndServe() error {
	s.logger.Info(context.Background(), "API server listening", map[string]interface{}{"addr": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var req backtest.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(r.Context(), w, fmt.Errorf("%w: %v", ports.ErrInvalidRequest, err))
		return
	}

	result, err := s.runner.Run(r.Context(), req)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	id, err := s.saveRecord(r.Context(), req, result, false)
	if err != nil {
		// The run itself succeeded; report it with the persistence failure noted.
		s.logger.Error(r.Context(), err, "failed to persist run record", map[string]interface{}{"run_id": result.RunID})
		result.Logs = append(result.Logs, "warning: run record was not persisted")
	}

	writeJSON(w, http.StatusOK, runResponse{ID: id, RunResult: result})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(r.Context(), w, fmt.Errorf("%w: limit must be a positive integer", ports.ErrInvalidRequest))
			return
		}
		limit = n
	}

	records, err := s.repo.List(r.Context(), limit)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if records == nil {
		records = []*domain.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "records": toRecordViews(records)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(r.Context(), w, fmt.Errorf("%w: invalid record id", ports.ErrInvalidRequest))
		return
	}

	rec, err := s.repo.FindByID(r.Context(), id)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if rec == nil {
		s.writeError(r.Context(), w, fmt.Errorf("%w: run record %d", ports.ErrNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "record": toRecordView(rec)})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(r.Context(), w, fmt.Errorf("%w: invalid record id", ports.ErrInvalidRequest))
		return
	}

	if err := s.repo.Delete(r.Context(), id); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// optimizeRequest wraps a base run request with search settings.
type optimizeRequest struct {
	Request      backtest.RunRequest `json:"request"`
	TargetReturn float64             `json:"target_return"`
	MaxTrials    int                 `json:"max_trials"`
	Seed         int64               `json:"seed"`
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(r.Context(), w, fmt.Errorf("%w: %v", ports.ErrInvalidRequest, err))
		return
	}

	cfg := optimization.Config{
		TargetReturn: req.TargetReturn,
		MaxTrials:    req.MaxTrials,
		Seed:         req.Seed,
	}
	opt, err := optimization.NewOptimizer(s.runner, s.logger, cfg)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	result, err := opt.Optimize(r.Context(), req.Request, cfg)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	best := req.Request
	best.Params = result.BestParams
	id, err := s.saveRecord(r.Context(), best, result.BestResult, true)
	if err != nil {
		s.logger.Error(r.Context(), err, "failed to persist optimized run record", map[string]interface{}{"run_id": result.BestResult.RunID})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"id":     id,
		"result": result,
	})
}

func (s *Server) saveRecord(ctx context.Context, req backtest.RunRequest, res *backtest.RunResult, optimized bool) (int64, error) {
	params, err := json.Marshal(map[string]interface{}{
		"strategy": req.Strategy,
		"params":   req.Params,
		"sizing":   req.Sizing,
		"bracket":  req.Bracket,
	})
	if err != nil {
		return 0, fmt.Errorf("encoding run params: %w", err)
	}

	initial := req.InitialCash
	if initial <= 0 {
		initial = 1_000_000
	}
	rec := &domain.RunRecord{
		RunID:       res.RunID,
		CreatedAt:   time.Now().UTC(),
		Symbol:      req.Symbol,
		Period:      req.Period,
		ParamsJSON:  string(params),
		InitialCash: initial,
		FinalValue:  res.Metrics.FinalValue,
		NetProfit:   res.Metrics.NetProfit,
		ReturnRate:  res.Metrics.NetProfit / initial,
		SharpeRatio: res.Metrics.SharpeRatio,
		MaxDrawdown: res.Metrics.MaxDrawdown,
		TotalTrades: res.Metrics.TotalTrades,
		WinRate:     res.Metrics.WinRate,
		IsOptimized: optimized,
	}
	return s.repo.Save(ctx, rec)
}

type runResponse struct {
	ID int64 `json:"id"`
	*backtest.RunResult
}

// recordView is the JSON shape of a stored run record.
type recordView struct {
	ID          int64   `json:"id"`
	RunID       string  `json:"run_id"`
	CreatedAt   string  `json:"created_at"`
	Symbol      string  `json:"symbol"`
	Period      string  `json:"period"`
	ParamsJSON  string  `json:"params_json"`
	InitialCash float64 `json:"initial_cash"`
	FinalValue  float64 `json:"final_value"`
	NetProfit   float64 `json:"net_profit"`
	ReturnRate  float64 `json:"return_rate"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
	TotalTrades int     `json:"total_trades"`
	WinRate     float64 `json:"win_rate"`
	IsOptimized bool    `json:"is_optimized"`
}

func toRecordView(rec *domain.RunRecord) recordView {
	return recordView{
		ID:          rec.ID,
		RunID:       rec.RunID,
		CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339),
		Symbol:      rec.Symbol,
		Period:      rec.Period,
		ParamsJSON:  rec.ParamsJSON,
		InitialCash: rec.InitialCash,
		FinalValue:  rec.FinalValue,
		NetProfit:   rec.NetProfit,
		ReturnRate:  rec.ReturnRate,
		SharpeRatio: rec.SharpeRatio,
		MaxDrawdown: rec.MaxDrawdown,
		TotalTrades: rec.TotalTrades,
		WinRate:     rec.WinRate,
		IsOptimized: rec.IsOptimized,
	}
}

func toRecordViews(recs []*domain.RunRecord) []recordView {
	views := make([]recordView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, toRecordView(rec))
	}
	return views
}

// writeError maps typed errors to status codes and a uniform error body.
func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ports.ErrInvalidRequest), errors.Is(err, ports.ErrInvalidWindow):
		status = http.StatusBadRequest
	case errors.Is(err, ports.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ports.ErrDataUnavailable), errors.Is(err, ports.ErrNoCandidate):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ports.ErrContextCanceled):
		status = http.StatusRequestTimeout
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error(ctx, err, "request failed")
	} else {
		s.logger.Warn(ctx, "request rejected", map[string]interface{}{"error": err.Error(), "status": status})
	}
	writeJSON(w, status, map[string]string{"status": "error", "error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
