// Package risk sizes candidate trades, enforces portfolio limits, and tracks
// open positions and portfolio-level risk metrics.
package risk

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"quantcore-go/internal/metrics"
	"quantcore-go/internal/series"
)

const (
	historyCap = 1000

	// KellyFraction scales the raw Kelly bet down for estimation error.
	KellyFraction = 0.25
	// BaseAllocation is the portfolio fraction targeted by volatility
	// weighted sizing before vol adjustment.
	BaseAllocation = 0.02

	sharpeMinPoints = 30
	varConfidence   = 0.95
)

// Limits encodes the guard-rails applied to every candidate trade. Hot
// swappable via Manager.SetLimits.
type Limits struct {
	MaxPositionSize        float64 `yaml:"max_position_size"`
	DailyLossLimit         float64 `yaml:"daily_loss_limit"`
	MaxDrawdown            float64 `yaml:"max_drawdown"`
	ConcentrationLimit     float64 `yaml:"concentration_limit"`
	LeverageLimit          float64 `yaml:"leverage_limit"`
	StopLossPercent        float64 `yaml:"stop_loss_percent"`
	TakeProfitPercent      float64 `yaml:"take_profit_percent"`
	MaxCorrelatedPositions int     `yaml:"max_correlated_positions"`
}

// Position is one open holding. Quantity sign encodes direction: positive
// long, negative short. StopLoss/TakeProfit of 0 mean unset.
type Position struct {
	Symbol        string
	Quantity      float64
	EntryPrice    float64
	CurrentPrice  float64
	UnrealizedPnL float64
	Timestamp     int64
	StopLoss      float64
	TakeProfit    float64
}

// Metrics is a derived snapshot of portfolio-level risk.
type Metrics struct {
	PortfolioValue  float64
	ExposureByAsset map[string]float64
	CorrelationRisk float64
	VaR             float64
	Sharpe          float64
	MaxDrawdown     float64
	CurrentDrawdown float64
	DailyPnL        float64
}

// Reason is a machine-readable denial code.
type Reason string

const (
	ReasonPositionSize  Reason = "position-size"
	ReasonDailyLoss     Reason = "daily-loss"
	ReasonConcentration Reason = "concentration"
	ReasonDrawdown      Reason = "drawdown"
)

// Decision is the outcome of a limit check.
type Decision struct {
	Allowed bool
	Reason  Reason
	Detail  string
}

// CloseReason labels why a position was closed.
type CloseReason string

const (
	CloseStopLoss    CloseReason = "stop-loss"
	CloseTakeProfit  CloseReason = "take-profit"
	CloseDynamicStop CloseReason = "dynamic-stop"
	CloseManual      CloseReason = "manual"
	CloseEmergency   CloseReason = "emergency"
)

// CloseEvent is pushed to the log whenever a position is realized.
type CloseEvent struct {
	Symbol      string
	RealizedPnL float64
	Reason      CloseReason
}

// Manager owns positions, daily PnL, and the portfolio value history. Signal
// execution and periodic mark-to-market both mutate it, so every method
// serializes on one mutex.
type Manager struct {
	mu        sync.Mutex
	log       zerolog.Logger
	limits    Limits
	positions map[string]*Position
	dailyPnL  float64
	history   *series.Ring[float64]
	peakValue float64
}

// NewManager builds a manager with no open positions.
func NewManager(limits Limits, log zerolog.Logger) *Manager {
	return &Manager{
		log:       log,
		limits:    limits,
		positions: make(map[string]*Position),
		history:   series.NewRing[float64](historyCap),
	}
}

// SetLimits swaps the active limits. Open positions are unaffected until the
// next check or mark.
func (m *Manager) SetLimits(limits Limits) {
	m.mu.Lock()
	m.limits = limits
	m.mu.Unlock()
}

// Limits returns the active limits.
func (m *Manager) Limits() Limits {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limits
}

// KellySize computes the Kelly-criterion position size for the given trade
// statistics, scaled by the safety fraction and capped at MaxPositionSize.
// Negative edges size to zero.
func (m *Manager) KellySize(winRate, avgWin, avgLoss, portfolioValue float64) float64 {
	if avgWin <= 0 || avgLoss >= 0 {
		return 0
	}
	b := avgWin / math.Abs(avgLoss)
	kelly := (b*winRate - (1 - winRate)) / b
	if kelly <= 0 {
		return 0
	}
	size := kelly * KellyFraction * portfolioValue
	m.mu.Lock()
	maxSize := m.limits.MaxPositionSize
	m.mu.Unlock()
	return math.Min(size, maxSize)
}

// VolatilitySize targets a base allocation scaled inversely by the symbol's
// volatility relative to the target, capped at MaxPositionSize.
func (m *Manager) VolatilitySize(portfolioValue, symbolVol, targetVol float64) float64 {
	size := BaseAllocation * portfolioValue * (targetVol / (symbolVol + series.Epsilon))
	m.mu.Lock()
	maxSize := m.limits.MaxPositionSize
	m.mu.Unlock()
	return math.Min(size, maxSize)
}

// CheckLimits evaluates a proposed order against the active limits. Checks
// run in a fixed order and the first violation decides; the call has no side
// effects on manager state.
func (m *Manager) CheckLimits(symbol string, quantity, price float64) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	proposed := math.Abs(quantity * price)
	if proposed > m.limits.MaxPositionSize {
		return m.deny(ReasonPositionSize,
			fmt.Sprintf("Position size %.2f exceeds limit %.2f", proposed, m.limits.MaxPositionSize))
	}
	if m.dailyPnL < -m.limits.DailyLossLimit {
		return m.deny(ReasonDailyLoss,
			fmt.Sprintf("daily loss %.2f beyond limit %.2f", m.dailyPnL, m.limits.DailyLossLimit))
	}
	pv := m.portfolioValueLocked()
	if pv > 0 && proposed/pv > m.limits.ConcentrationLimit {
		return m.deny(ReasonConcentration,
			fmt.Sprintf("concentration %.2f%% beyond limit %.2f%%", 100*proposed/pv, 100*m.limits.ConcentrationLimit))
	}
	if dd := m.currentDrawdownLocked(pv); dd > m.limits.MaxDrawdown {
		return m.deny(ReasonDrawdown,
			fmt.Sprintf("drawdown %.2f%% beyond limit %.2f%%", 100*dd, 100*m.limits.MaxDrawdown))
	}
	return Decision{Allowed: true}
}

func (m *Manager) deny(reason Reason, detail string) Decision {
	metrics.RiskDenialsTotal.WithLabelValues(string(reason)).Inc()
	return Decision{Reason: reason, Detail: detail}
}

// AddPosition opens a position for symbol. At most one position per symbol is
// held; a second open for the same symbol is rejected.
func (m *Manager) AddPosition(symbol string, quantity, price float64, ts int64, stopLoss, takeProfit float64) error {
	if quantity == 0 {
		return fmt.Errorf("zero quantity for %s", symbol)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.positions[symbol]; exists {
		return fmt.Errorf("position already open for %s", symbol)
	}
	m.positions[symbol] = &Position{
		Symbol:       symbol,
		Quantity:     quantity,
		EntryPrice:   price,
		CurrentPrice: price,
		Timestamp:    ts,
		StopLoss:     stopLoss,
		TakeProfit:   takeProfit,
	}
	return nil
}

// MarkPrice updates a position's mark and evaluates exits in order: explicit
// stop loss, explicit take profit, then the dynamic stop on unrealized PnL
// percentage. Returns the close event if an exit fired, nil otherwise.
func (m *Manager) MarkPrice(symbol string, price float64) *CloseEvent {
	m.mu.Lock()
	pos, ok := m.positions[symbol]
	if !ok || price <= 0 {
		m.mu.Unlock()
		return nil
	}
	pos.CurrentPrice = price
	pos.UnrealizedPnL = (price - pos.EntryPrice) * pos.Quantity

	reason, exit := m.exitReasonLocked(pos, price)
	if exit {
		ev := m.closeLocked(pos, price, reason)
		m.mu.Unlock()
		return &ev
	}
	m.mu.Unlock()
	return nil
}

// exitReasonLocked decides whether the marked position must be closed.
func (m *Manager) exitReasonLocked(pos *Position, price float64) (CloseReason, bool) {
	long := pos.Quantity > 0
	if pos.StopLoss > 0 {
		if (long && price <= pos.StopLoss) || (!long && price >= pos.StopLoss) {
			return CloseStopLoss, true
		}
	}
	if pos.TakeProfit > 0 {
		if (long && price >= pos.TakeProfit) || (!long && price <= pos.TakeProfit) {
			return CloseTakeProfit, true
		}
	}
	notional := math.Abs(pos.Quantity * pos.EntryPrice)
	if notional > 0 && m.limits.StopLossPercent > 0 {
		if pos.UnrealizedPnL/notional < -m.limits.StopLossPercent {
			return CloseDynamicStop, true
		}
	}
	return "", false
}

// ClosePosition realizes PnL at exitPrice, removes the position, and returns
// the realized amount.
func (m *Manager) ClosePosition(symbol string, exitPrice float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[symbol]
	if !ok {
		return 0, fmt.Errorf("no open position for %s", symbol)
	}
	ev := m.closeLocked(pos, exitPrice, CloseManual)
	return ev.RealizedPnL, nil
}

// closeLocked realizes a position into dailyPnL, records portfolio history,
// and emits the close event. Caller holds m.mu.
func (m *Manager) closeLocked(pos *Position, exitPrice float64, reason CloseReason) CloseEvent {
	realized := (exitPrice - pos.EntryPrice) * pos.Quantity
	m.dailyPnL += realized
	delete(m.positions, pos.Symbol)

	pv := m.portfolioValueLocked()
	m.history.Push(pv)
	if pv > m.peakValue {
		m.peakValue = pv
	}

	metrics.PositionClosesTotal.WithLabelValues(string(reason)).Inc()
	m.log.Info().
		Str("symbol", pos.Symbol).
		Float64("realized_pnl", realized).
		Str("reason", string(reason)).
		Msg("position closed")
	return CloseEvent{Symbol: pos.Symbol, RealizedPnL: realized, Reason: reason}
}

// EmergencyStop closes every open position at its current mark, in symbol
// order. Used as a hard circuit breaker from outside the engine.
func (m *Manager) EmergencyStop() []CloseEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	symbols := make([]string, 0, len(m.positions))
	for sym := range m.positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	events := make([]CloseEvent, 0, len(symbols))
	for _, sym := range symbols {
		pos := m.positions[sym]
		events = append(events, m.closeLocked(pos, pos.CurrentPrice, CloseEmergency))
	}
	return events
}

// Positions returns a copy of all open positions.
func (m *Manager) Positions() []Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Position, 0, len(m.positions))
	for _, pos := range m.positions {
		out = append(out, *pos)
	}
	return out
}

// DailyPnL reports realized PnL since the last day boundary.
func (m *Manager) DailyPnL() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailyPnL
}

// ResetDaily zeroes the daily realized PnL. Called at an explicit day
// boundary, never implicitly.
func (m *Manager) ResetDaily() {
	m.mu.Lock()
	m.dailyPnL = 0
	m.mu.Unlock()
}

// ComputeMetrics derives the portfolio risk snapshot from open positions and
// the portfolio value history.
func (m *Manager) ComputeMetrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	exposure := make(map[string]float64, len(m.positions))
	var pv float64
	for sym, pos := range m.positions {
		val := math.Abs(pos.Quantity * pos.CurrentPrice)
		exposure[sym] = val
		pv += val
	}
	if pv > m.peakValue {
		m.peakValue = pv
	}

	out := Metrics{
		PortfolioValue:  pv,
		ExposureByAsset: exposure,
		CurrentDrawdown: m.currentDrawdownLocked(pv),
		DailyPnL:        m.dailyPnL,
	}

	// Concentration proxy: sum of squared exposure weights, not a
	// covariance-based correlation measure.
	if pv > 0 {
		for _, val := range exposure {
			w := val / pv
			out.CorrelationRisk += w * w
		}
	}

	returns := historyReturns(m.history.Values())
	out.VaR = historicalVaR(returns)
	if m.history.Len() >= sharpeMinPoints {
		out.Sharpe = series.Mean(returns) / (series.Std(returns) + series.Epsilon)
	}
	out.MaxDrawdown = maxDrawdown(m.history.Values())
	return out
}

func (m *Manager) portfolioValueLocked() float64 {
	var pv float64
	for _, pos := range m.positions {
		pv += math.Abs(pos.Quantity * pos.CurrentPrice)
	}
	return pv
}

func (m *Manager) currentDrawdownLocked(pv float64) float64 {
	if m.peakValue <= 0 || pv >= m.peakValue {
		return 0
	}
	return (m.peakValue - pv) / m.peakValue
}

func historyReturns(history []float64) []float64 {
	if len(history) < 2 {
		return nil
	}
	out := make([]float64, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		if history[i-1] <= 0 {
			continue
		}
		out = append(out, (history[i]-history[i-1])/history[i-1])
	}
	return out
}

// historicalVaR is a historical-simulation estimate: the worst-tail return at
// the (1-confidence) percentile, reported as a magnitude.
func historicalVaR(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)
	idx := int(math.Floor((1 - varConfidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return math.Abs(sorted[idx])
}

func maxDrawdown(history []float64) float64 {
	var peak, maxDD float64
	for _, v := range history {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
