package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"quantbt/internal/domain"
	"quantbt/internal/ports"
)

// BracketMode selects how protective stop/target prices are derived from an
// entry fill.
type BracketMode string

const (
	BracketNone    BracketMode = "none"
	BracketPoints  BracketMode = "points"
	BracketPercent BracketMode = "percent"
	BracketATR     BracketMode = "atr"
)

// BracketConfig describes the protective order pair placed after an opening
// or reversing fill.
type BracketConfig struct {
	Mode        BracketMode `json:"mode,omitempty"`
	StopValue   float64     `json:"stop_value,omitempty"`   // offset in points, or fraction of entry price for percent mode
	TargetValue float64     `json:"target_value,omitempty"` // same units as StopValue
	RiskReward  float64     `json:"risk_reward,omitempty"`  // ATR mode: target offset = stop offset * RiskReward
}

// Config holds the lifecycle manager's run parameters.
type Config struct {
	StartDate          time.Time // trading begins here; earlier bars only mark to market
	EndDate            time.Time // at/after this bar any open position is liquidated
	InitialCash        float64
	ContractMultiplier float64
	CommissionRate     float64 // fraction of traded notional, charged per fill
	MarginRate         float64 // reporting only, margin checks are disabled
	Bracket            BracketConfig
}

// Manager owns the per-instrument position and bracket state. It consumes
// one (bar, signal) pair per step and emits the resulting fills. It is
// single-threaded by contract: bars arrive strictly in timestamp order and
// nothing else touches its state during a run.
type Manager struct {
	cfg    Config
	sizer  Sizer
	logger ports.Logger

	pos     domain.Position
	bracket *domain.BracketPair

	cash          float64
	lastTimestamp time.Time
	// Commission already paid on the open segment's entry fills, settled
	// against realized PnL when the segment closes.
	entryCommission float64
}

// NewManager creates a lifecycle manager.
func NewManager(cfg Config, sizer Sizer, logger ports.Logger) (*Manager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for lifecycle manager")
	}
	if sizer == nil {
		return nil, fmt.Errorf("sizer is required for lifecycle manager")
	}
	if cfg.InitialCash <= 0 {
		return nil, fmt.Errorf("initial cash must be positive, got %f", cfg.InitialCash)
	}
	if cfg.ContractMultiplier <= 0 {
		return nil, fmt.Errorf("contract multiplier must be positive, got %f", cfg.ContractMultiplier)
	}
	if !cfg.StartDate.IsZero() && !cfg.EndDate.IsZero() && cfg.StartDate.After(cfg.EndDate) {
		return nil, fmt.Errorf("%w: start %s after end %s", ports.ErrInvalidWindow,
			cfg.StartDate.Format("2006-01-02"), cfg.EndDate.Format("2006-01-02"))
	}
	if cfg.Bracket.Mode == "" {
		cfg.Bracket.Mode = BracketNone
	}
	return &Manager{cfg: cfg, sizer: sizer, logger: logger, cash: cfg.InitialCash}, nil
}

// Position returns a snapshot of the current position.
func (m *Manager) Position() domain.Position { return m.pos }

// Bracket returns a copy of the live bracket pair, or nil when none is live.
func (m *Manager) Bracket() *domain.BracketPair {
	if m.bracket == nil {
		return nil
	}
	b := *m.bracket
	return &b
}

// Cash returns realized cash (initial cash plus settled PnL minus commission).
func (m *Manager) Cash() float64 { return m.cash }

// Equity marks the account to the given price.
func (m *Manager) Equity(price float64) float64 {
	return m.cash + (price-m.pos.AvgEntryPrice)*float64(m.pos.Size)*m.cfg.ContractMultiplier
}

// OnBar advances the lifecycle by one bar. The signal must have been
// computed using only data at or before this bar. isLast marks the final
// bar of the feed, which forces liquidation regardless of the end date.
func (m *Manager) OnBar(ctx context.Context, bar *domain.Bar, sig domain.Signal, isLast bool) []*domain.Fill {
	if !bar.Timestamp.After(m.lastTimestamp) {
		m.logger.Warn(ctx, "bar out of order, ignored", map[string]interface{}{
			"bar": bar.Timestamp, "last": m.lastTimestamp,
		})
		return nil
	}
	m.lastTimestamp = bar.Timestamp

	// Mark the bar's extremes against the open position before any exit
	// so a segment closed this bar carries this bar's excursion too.
	m.pos.MarkAdverse(bar)

	// Forced end-of-window liquidation pre-empts everything else.
	if isLast || (!m.cfg.EndDate.IsZero() && !bar.Timestamp.Before(m.cfg.EndDate)) {
		if !m.pos.IsOpen() {
			return nil
		}
		m.logger.Info(ctx, "end of window, liquidating", map[string]interface{}{
			"time": bar.Timestamp, "position": m.pos.Size, "price": bar.Close,
		})
		m.cancelBracket(ctx)
		return []*domain.Fill{m.execute(ctx, bar.Timestamp, bar.Close, -m.pos.Size, domain.ExitReasonEndOfWindow)}
	}

	var fills []*domain.Fill

	// Protective orders placed on earlier bars are live in the market and
	// fill intrabar off the high/low, ahead of this bar's signal.
	if f := m.checkBracket(ctx, bar); f != nil {
		fills = append(fills, f)
	}

	// Before the trading window opens, positions are only marked to
	// market; no new orders are placed.
	if !m.cfg.StartDate.IsZero() && bar.Timestamp.Before(m.cfg.StartDate) {
		return fills
	}

	switch sig.Type {
	case domain.SignalEnterLong, domain.SignalEnterShort:
		fills = append(fills, m.handleEntry(ctx, bar, sig)...)
	case domain.SignalExitOnly:
		if m.pos.IsOpen() {
			m.cancelBracket(ctx)
			fills = append(fills, m.execute(ctx, bar.Timestamp, bar.Close, -m.pos.Size, sig.Reason))
		}
	case domain.SignalPartialExit:
		if f := m.handlePartialExit(ctx, bar, sig); f != nil {
			fills = append(fills, f)
		}
	}

	return fills
}

// handleEntry turns a directional signal into a target-size order. The
// order size is target minus current, which uniformly expresses opening,
// adding, reducing and reversing.
func (m *Manager) handleEntry(ctx context.Context, bar *domain.Bar, sig domain.Signal) []*domain.Fill {
	// A protective pair belongs to the decision it protects; a new entry
	// decision supersedes it before anything executes.
	m.cancelBracket(ctx)

	n := m.sizer.Contracts(SizingRequest{
		Equity:             m.Equity(bar.Close),
		ReferencePrice:     bar.Close,
		StopDistance:       sig.StopDistance,
		ContractMultiplier: m.cfg.ContractMultiplier,
		MarginRate:         m.cfg.MarginRate,
	})

	target := n
	if sig.Type == domain.SignalEnterShort {
		target = -n
	}

	if n <= 0 {
		// Degenerate sizing never strands an opposite position.
		if m.pos.IsOpen() && (m.pos.Size > 0) != (sig.Type == domain.SignalEnterLong) {
			m.logger.Warn(ctx, "sizing returned zero, forcing close of opposite position", map[string]interface{}{
				"time": bar.Timestamp, "position": m.pos.Size, "sizer": m.sizer.Name(),
			})
			return []*domain.Fill{m.execute(ctx, bar.Timestamp, bar.Close, -m.pos.Size, domain.ExitReasonSignal)}
		}
		m.logger.Debug(ctx, "sizing returned zero, entry skipped", map[string]interface{}{
			"time": bar.Timestamp, "sizer": m.sizer.Name(),
		})
		return nil
	}

	order := target - m.pos.Size
	if order == 0 {
		return nil
	}

	fill := m.execute(ctx, bar.Timestamp, bar.Close, order, domain.ExitReasonSignal)
	if fill.Action == domain.ActionOpen || fill.Action == domain.ActionReverse {
		m.placeBracket(ctx, bar.Timestamp, fill.Price, m.pos.Size, sig.StopDistance)
	}
	return []*domain.Fill{fill}
}

func (m *Manager) handlePartialExit(ctx context.Context, bar *domain.Bar, sig domain.Signal) *domain.Fill {
	if !m.pos.IsOpen() || sig.Fraction <= 0 {
		return nil
	}
	held := m.pos.Size
	qty := int(math.Round(sig.Fraction * math.Abs(float64(held))))
	if qty < 1 {
		qty = 1
	}
	if qty > abs(held) {
		qty = abs(held)
	}
	if qty == abs(held) {
		m.cancelBracket(ctx)
	}
	if held > 0 {
		qty = -qty
	}
	// A reduce keeps the existing bracket pair; the protective decision
	// for the remaining contracts is unchanged.
	return m.execute(ctx, bar.Timestamp, bar.Close, qty, sig.Reason)
}

// checkBracket fills a protective leg off the bar's extremes. The stop leg
// takes precedence when both are touched within one bar. Filling either leg
// cancels the other.
func (m *Manager) checkBracket(ctx context.Context, bar *domain.Bar) *domain.Fill {
	if m.bracket == nil || !m.pos.IsOpen() {
		return nil
	}
	b := *m.bracket

	var price float64
	var reason domain.ExitReason
	if m.pos.IsLong() {
		switch {
		case bar.Low <= b.StopPrice:
			price, reason = b.StopPrice, domain.ExitReasonStopLoss
		case bar.High >= b.TargetPrice:
			price, reason = b.TargetPrice, domain.ExitReasonTakeProfit
		default:
			return nil
		}
	} else {
		switch {
		case bar.High >= b.StopPrice:
			price, reason = b.StopPrice, domain.ExitReasonStopLoss
		case bar.Low <= b.TargetPrice:
			price, reason = b.TargetPrice, domain.ExitReasonTakeProfit
		default:
			return nil
		}
	}

	m.logger.Info(ctx, "protective order filled", map[string]interface{}{
		"time": bar.Timestamp, "reason": reason, "price": price, "size": m.pos.Size,
	})
	m.cancelBracket(ctx)
	return m.execute(ctx, bar.Timestamp, price, -m.pos.Size, reason)
}

func (m *Manager) placeBracket(ctx context.Context, ts time.Time, entryPrice float64, size int, stopDistance float64) {
	if m.cfg.Bracket.Mode == BracketNone || size == 0 {
		return
	}

	var stopOff, targetOff float64
	switch m.cfg.Bracket.Mode {
	case BracketPoints:
		stopOff, targetOff = m.cfg.Bracket.StopValue, m.cfg.Bracket.TargetValue
	case BracketPercent:
		stopOff = entryPrice * m.cfg.Bracket.StopValue
		targetOff = entryPrice * m.cfg.Bracket.TargetValue
	case BracketATR:
		if stopDistance <= 0 {
			// ATR still warming up: entering unprotected beats inventing
			// a stop level.
			m.logger.Warn(ctx, "ATR undefined, bracket skipped", map[string]interface{}{"time": ts})
			return
		}
		rr := m.cfg.Bracket.RiskReward
		if rr <= 0 {
			rr = 2.0
		}
		stopOff, targetOff = stopDistance, stopDistance*rr
	}
	if stopOff <= 0 || targetOff <= 0 {
		return
	}

	pair := &domain.BracketPair{ProtectedSize: size}
	if size > 0 {
		pair.StopPrice = entryPrice - stopOff
		pair.TargetPrice = entryPrice + targetOff
	} else {
		pair.StopPrice = entryPrice + stopOff
		pair.TargetPrice = entryPrice - targetOff
	}
	m.bracket = pair

	m.logger.Info(ctx, "bracket placed", map[string]interface{}{
		"time": ts, "stop": pair.StopPrice, "target": pair.TargetPrice, "size": size,
	})
}

func (m *Manager) cancelBracket(ctx context.Context) {
	if m.bracket == nil {
		return
	}
	m.logger.Debug(ctx, "bracket cancelled", map[string]interface{}{
		"stop": m.bracket.StopPrice, "target": m.bracket.TargetPrice,
	})
	m.bracket = nil
}

// execute applies a non-zero order at the given price and returns the fill.
// Cash is settled futures-style: only commission and realized PnL move it;
// open notional is carried as unrealized mark-to-market in Equity.
func (m *Manager) execute(ctx context.Context, ts time.Time, price float64, qty int, reason domain.ExitReason) *domain.Fill {
	prev := m.pos.Size
	next := prev + qty
	action := domain.ClassifyAction(prev, next)

	commission := m.cfg.CommissionRate * price * math.Abs(float64(qty)) * m.cfg.ContractMultiplier
	m.cash -= commission

	direction := domain.Buy
	if qty < 0 {
		direction = domain.Sell
	}

	fill := &domain.Fill{
		Timestamp:         ts,
		Direction:         direction,
		Action:            action,
		Price:             price,
		Size:              qty,
		ResultingPosition: next,
		Reason:            reason,
	}

	switch action {
	case domain.ActionOpen:
		m.pos.Size = next
		m.pos.AvgEntryPrice = price
		m.pos.EntryTime = ts
		m.pos.AdverseExcursionPrice = nil
		m.entryCommission = commission

	case domain.ActionAdd:
		newAvg := (float64(prev)*m.pos.AvgEntryPrice + float64(qty)*price) / float64(next)
		m.pos.Size = next
		m.pos.AvgEntryPrice = newAvg
		m.entryCommission += commission

	case domain.ActionReduce, domain.ActionClose:
		closed := prev - next // signed closed quantity
		gross := (price - m.pos.AvgEntryPrice) * float64(closed) * m.cfg.ContractMultiplier
		entryShare := m.entryCommission * float64(abs(closed)) / float64(abs(prev))
		m.entryCommission -= entryShare
		net := gross - entryShare - commission
		m.cash += gross

		entry := m.pos.AvgEntryPrice
		fill.EntryPrice = &entry
		fill.NetPnL = &net
		fill.AdverseExcursionPrice = m.pos.AdverseExcursionPrice

		if action == domain.ActionClose {
			m.pos.Reset()
		} else {
			m.pos.Size = next
		}

	case domain.ActionReverse:
		// One fill, two segments: settle the old side, open the new.
		gross := (price - m.pos.AvgEntryPrice) * float64(prev) * m.cfg.ContractMultiplier
		closeShare := commission * float64(abs(prev)) / float64(abs(qty))
		net := gross - m.entryCommission - closeShare
		m.cash += gross

		entry := m.pos.AvgEntryPrice
		fill.EntryPrice = &entry
		fill.NetPnL = &net
		fill.AdverseExcursionPrice = m.pos.AdverseExcursionPrice

		m.pos.Reset()
		m.pos.Size = next
		m.pos.AvgEntryPrice = price
		m.pos.EntryTime = ts
		m.entryCommission = commission - closeShare
	}

	m.logger.Info(ctx, "fill", map[string]interface{}{
		"time": ts, "action": action, "price": price, "size": qty,
		"position": next, "reason": reason,
	})
	return fill
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
