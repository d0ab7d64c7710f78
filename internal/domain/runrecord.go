package domain

import "time"

// RunRecord is a persisted summary of a completed backtest run.
type RunRecord struct {
	ID         int64
	RunID      string // UUID assigned by the run driver
	CreatedAt  time.Time
	Symbol     string
	Period     string
	ParamsJSON string // Strategy parameters as submitted, JSON-encoded

	InitialCash float64
	FinalValue  float64
	NetProfit   float64
	ReturnRate  float64 // NetProfit / InitialCash
	SharpeRatio float64
	MaxDrawdown float64
	TotalTrades int
	WinRate     float64

	IsOptimized bool // True when produced by the parameter tuner
}
