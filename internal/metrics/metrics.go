package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticks_total", Help: "Count of market ticks ingested"},
		[]string{"symbol"},
	)
	SnapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "book_snapshots_total", Help: "Order book snapshots processed"},
		[]string{"symbol"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Signals emitted by engine"},
		[]string{"engine"},
	)
	RiskDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "risk_denials_total", Help: "Orders denied by risk checks"},
		[]string{"reason"},
	)
	PositionClosesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "position_closes_total", Help: "Positions closed by reason"},
		[]string{"reason"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted"},
		[]string{"symbol", "side"},
	)
)

func init() {
	prometheus.MustRegister(TicksTotal, SnapshotsTotal, SignalsTotal, RiskDenialsTotal, PositionClosesTotal, OrdersTotal)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
