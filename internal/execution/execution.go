// Package execution is the sink for risk-accepted orders. Live routing is out
// of scope; orders are logged and counted so a host can wire a real venue.
package execution

import (
	"quantcore-go/internal/metrics"

	"github.com/rs/zerolog"
)

// Side enumerates order directions.
type Side string

const (
	// Buy indicates a long order.
	Buy Side = "BUY"
	// Sell indicates a short order.
	Sell Side = "SELL"
)

// Order represents a placement request produced by the signal pipeline after
// risk sizing.
type Order struct {
	Symbol string
	Side   Side
	Qty    float64
	Price  float64
	Reason string // originating signal description
}

// Executor implements a logger-backed submitter for orders.
type Executor struct{ log zerolog.Logger }

// NewExecutor wraps a zerolog logger for order submissions.
func NewExecutor(log zerolog.Logger) *Executor { return &Executor{log: log} }

// Submit logs the order request; wire real routing here when a venue exists.
func (executor *Executor) Submit(order Order) error {
	metrics.OrdersTotal.WithLabelValues(order.Symbol, string(order.Side)).Inc()
	executor.log.Info().
		Str("sym", order.Symbol).
		Str("side", string(order.Side)).
		Float64("qty", order.Qty).
		Float64("px", order.Price).
		Str("reason", order.Reason).
		Msg("submit order")
	return nil
}
