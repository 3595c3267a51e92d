// Binary engine runs the analytics pipeline against a market data feed:
// ticks and book snapshots flow in, risk-gated orders flow out to the
// executor sink.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"quantcore-go/internal/book"
	"quantcore-go/internal/config"
	"quantcore-go/internal/engine"
	"quantcore-go/internal/exchange"
	"quantcore-go/internal/execution"
	"quantcore-go/internal/metrics"
	"quantcore-go/internal/risk"
	sig "quantcore-go/internal/signal"
	"quantcore-go/internal/statarb"
	"quantcore-go/internal/util"
)

// alpha scores weaker than this are ignored by the order loop.
const minAlpha = 0.5

func main() {
	_ = godotenv.Load() // best-effort

	configPath := flag.String("config", "config.yaml", "path to YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot := util.NewLogger("info")
		boot.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eng := engine.New(riskLimits(cfg.Risk), pairs(cfg.Pairs), log,
		engine.WithFactorDecay(cfg.Engine.FactorDecay),
		engine.WithThresholds(cfg.Engine.EntryThreshold, cfg.Engine.ExitThreshold))
	exec := execution.NewExecutor(util.Component(log, "execution"))

	feed := exchange.NewFeed(cfg.Feed.Provider, cfg.Feed.Symbols, util.Component(log, "feed"),
		exchange.WithBookLevels(cfg.Feed.BookLevels))
	ticks := make(chan sig.Tick, 1024)
	books := make(chan book.Snapshot, 256)
	go func() {
		if err := feed.Run(ctx, ticks, books); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("feed stopped")
			cancel()
		}
	}()

	// Depth snapshots carry no trade; the last tick per symbol supplies it.
	lastTick := make(map[string]sig.Tick)

	log.Info().Msg("engine started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return

		case tk := <-ticks:
			lastTick[tk.Symbol] = tk
			for _, ev := range eng.FeedTick(tk) {
				log.Warn().Str("sym", ev.Symbol).Float64("pnl", ev.RealizedPnL).
					Str("reason", string(ev.Reason)).Msg("exit triggered")
			}
			evaluate(eng, exec, tk, log)

		case snap := <-books:
			if tk, ok := lastTick[snap.Symbol]; ok {
				snap.LastPrice = tk.Price
				snap.LastSize = tk.Volume
			}
			features := eng.FeedOrderBook(snap)
			log.Debug().Str("sym", snap.Symbol).
				Float64("spread", features.Spread).
				Float64("imbalance", features.OrderFlowImbalance).
				Msg("book features")
		}
	}
}

// evaluate turns the current analytics state for one symbol into at most one
// risk-gated order.
func evaluate(eng *engine.Engine, exec *execution.Executor, tk sig.Tick, log zerolog.Logger) {
	for _, s := range eng.StatArbSignals() {
		if s.Signal == statarb.Neutral {
			continue
		}
		log.Info().Str("pair", s.Pair.Symbol1+"/"+s.Pair.Symbol2).
			Float64("zscore", s.ZScore).Float64("confidence", s.Confidence).
			Str("signal", string(s.Signal)).Msg("stat arb signal")
	}

	ms, ok := eng.MicroSignal(tk.Symbol, tk.Ts)
	if !ok || math.Abs(ms.Score) < minAlpha {
		return
	}
	micro, _ := eng.Microstructure(tk.Symbol)

	pv := eng.RiskMetrics().PortfolioValue
	if pv <= 0 {
		pv = eng.Risk().Limits().MaxPositionSize
	}
	notional := eng.Risk().VolatilitySize(pv, math.Abs(micro.PriceVelocity), 0.02)
	if notional <= 0 || tk.Price <= 0 {
		return
	}
	qty := notional / tk.Price
	if ms.Score < 0 {
		qty = -qty
	}

	decision := eng.CheckLimits(tk.Symbol, qty, tk.Price)
	if !decision.Allowed {
		log.Debug().Str("sym", tk.Symbol).Str("reason", string(decision.Reason)).
			Str("detail", decision.Detail).Msg("order denied")
		return
	}

	limits := eng.Risk().Limits()
	stop, take := protectiveLevels(tk.Price, qty, limits)
	if err := eng.Risk().AddPosition(tk.Symbol, qty, tk.Price, tk.Ts, stop, take); err != nil {
		// one position per symbol; ride the open one
		return
	}

	side := execution.Buy
	if qty < 0 {
		side = execution.Sell
	}
	_ = exec.Submit(execution.Order{
		Symbol: tk.Symbol,
		Side:   side,
		Qty:    math.Abs(qty),
		Price:  tk.Price,
		Reason: fmt.Sprintf("%s score=%.2f", ms.Reason, ms.Score),
	})
}

func protectiveLevels(price, qty float64, limits risk.Limits) (stop, take float64) {
	if limits.StopLossPercent > 0 {
		offset := price * limits.StopLossPercent
		if qty > 0 {
			stop = price - offset
		} else {
			stop = price + offset
		}
	}
	if limits.TakeProfitPercent > 0 {
		offset := price * limits.TakeProfitPercent
		if qty > 0 {
			take = price + offset
		} else {
			take = price - offset
		}
	}
	return stop, take
}

func riskLimits(r config.Risk) risk.Limits {
	return risk.Limits{
		MaxPositionSize:        r.MaxPositionSize,
		DailyLossLimit:         r.DailyLossLimit,
		MaxDrawdown:            r.MaxDrawdown,
		ConcentrationLimit:     r.ConcentrationLimit,
		LeverageLimit:          r.LeverageLimit,
		StopLossPercent:        r.StopLossPercent,
		TakeProfitPercent:      r.TakeProfitPercent,
		MaxCorrelatedPositions: r.MaxCorrelatedPositions,
	}
}

func pairs(cfgPairs []config.Pair) []statarb.Pair {
	out := make([]statarb.Pair, 0, len(cfgPairs))
	for _, p := range cfgPairs {
		out = append(out, statarb.Pair{
			Symbol1:             p.Symbol1,
			Symbol2:             p.Symbol2,
			HedgeRatio:          p.HedgeRatio,
			Correlation:         p.Correlation,
			CointegrationPValue: p.CointegrationPValue,
		})
	}
	return out
}
