package engine

import (
	"testing"

	"github.com/rs/zerolog"

	"quantcore-go/internal/book"
	"quantcore-go/internal/risk"
	"quantcore-go/internal/signal"
	"quantcore-go/internal/statarb"
)

func newTestEngine() *Engine {
	limits := risk.Limits{
		MaxPositionSize:    10000,
		DailyLossLimit:     500,
		MaxDrawdown:        0.15,
		ConcentrationLimit: 0.25,
		StopLossPercent:    0.02,
	}
	pairs := []statarb.Pair{{Symbol1: "AAPL", Symbol2: "MSFT", HedgeRatio: 1}}
	return New(limits, pairs, zerolog.Nop())
}

func feedLinear(e *Engine, symbol string, n int, start, end float64) {
	step := (end - start) / float64(n-1)
	for i := 0; i < n; i++ {
		e.FeedTick(signal.Tick{
			Symbol: symbol,
			Price:  start + float64(i)*step,
			Volume: 100,
			Ts:     int64(i) * 100,
		})
	}
}

func TestAlphaFactorsAppearAtFiftySamples(t *testing.T) {
	e := newTestEngine()

	feedLinear(e, "AAPL", 25, 150, 155)
	if factors := e.AlphaFactors("AAPL"); len(factors) != 0 {
		t.Fatalf("expected no factors at 25 samples, got %d", len(factors))
	}

	feedLinear(e, "AAPL", 25, 155, 160)
	factors := e.AlphaFactors("AAPL")
	if len(factors) != 6 {
		t.Fatalf("expected exactly 6 factors at 50 samples, got %d", len(factors))
	}
}

func TestMicrostructurePull(t *testing.T) {
	e := newTestEngine()
	feedLinear(e, "AAPL", 40, 100, 110)
	sig, ok := e.Microstructure("AAPL")
	if !ok {
		t.Fatalf("expected microstructure signal after 40 samples")
	}
	if sig.Alpha <= 0 {
		t.Fatalf("rising prices should give positive alpha, got %f", sig.Alpha)
	}
}

func TestMicroSignalEnvelope(t *testing.T) {
	e := newTestEngine()

	if _, ok := e.MicroSignal("AAPL", 0); ok {
		t.Fatalf("expected no signal before samples accumulate")
	}

	feedLinear(e, "AAPL", 40, 100, 110)
	ms, ok := e.MicroSignal("AAPL", 3900)
	if !ok {
		t.Fatalf("expected signal after 40 samples")
	}
	if ms.Symbol != "AAPL" || ms.Ts != 3900 {
		t.Fatalf("unexpected envelope %+v", ms)
	}
	if ms.Reason != "microstructure" {
		t.Fatalf("unexpected reason %q", ms.Reason)
	}
	micro, _ := e.Microstructure("AAPL")
	if ms.Score != micro.Alpha {
		t.Fatalf("score %f should equal composite alpha %f", ms.Score, micro.Alpha)
	}
	if ms.Score <= 0 {
		t.Fatalf("rising prices should give positive score, got %f", ms.Score)
	}
}

func TestStatArbSignalsUseLatestTicks(t *testing.T) {
	e := newTestEngine()
	for i := 0; i < 30; i++ {
		px := 100 + 0.5*float64(i%2)
		e.FeedTick(signal.Tick{Symbol: "AAPL", Price: px, Volume: 1, Ts: int64(i) * 100})
		e.FeedTick(signal.Tick{Symbol: "MSFT", Price: 50, Volume: 1, Ts: int64(i) * 100})
		e.StatArbSignals()
	}

	e.FeedTick(signal.Tick{Symbol: "AAPL", Price: 130, Volume: 1, Ts: 4000})
	signals := e.StatArbSignals()
	if len(signals) != 1 {
		t.Fatalf("expected 1 pair signal, got %d", len(signals))
	}
	if signals[0].Signal != statarb.Short {
		t.Fatalf("spiked spread should signal SHORT, got %s", signals[0].Signal)
	}
}

func TestFeedTickMarksPositionsAndReportsExits(t *testing.T) {
	e := newTestEngine()
	if err := e.Risk().AddPosition("AAPL", 10, 100, 1, 0, 0); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}

	events := e.FeedTick(signal.Tick{Symbol: "AAPL", Price: 99.5, Volume: 1, Ts: 100})
	if len(events) != 0 {
		t.Fatalf("small move should not close, got %+v", events)
	}

	events = e.FeedTick(signal.Tick{Symbol: "AAPL", Price: 95, Volume: 1, Ts: 200})
	if len(events) != 1 || events[0].Reason != risk.CloseDynamicStop {
		t.Fatalf("expected dynamic-stop event, got %+v", events)
	}
	if len(e.Positions()) != 0 {
		t.Fatalf("position should be gone after exit")
	}
}

func TestFeedOrderBookExtracts(t *testing.T) {
	e := newTestEngine()
	f := e.FeedOrderBook(book.Snapshot{
		Symbol:    "AAPL",
		Timestamp: 1000,
		Bids:      []book.PriceLevel{{Price: 99, Size: 10}},
		Asks:      []book.PriceLevel{{Price: 101, Size: 10}},
		LastPrice: 100,
		LastSize:  1,
	})
	if f.MidPrice != 100 || f.Spread != 2 {
		t.Fatalf("unexpected features %+v", f)
	}
}

func TestDayBoundaryResetsDailyPnL(t *testing.T) {
	e := newTestEngine()
	if err := e.Risk().AddPosition("AAPL", 10, 100, 1, 0, 0); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}
	if _, err := e.Risk().ClosePosition("AAPL", 90); err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}
	if e.RiskMetrics().DailyPnL != -100 {
		t.Fatalf("expected -100 daily pnl, got %f", e.RiskMetrics().DailyPnL)
	}

	e.DayBoundary()
	if e.RiskMetrics().DailyPnL != 0 {
		t.Fatalf("day boundary should reset daily pnl, got %f", e.RiskMetrics().DailyPnL)
	}
}

func TestSetLimitsFlowsToChecks(t *testing.T) {
	e := newTestEngine()
	limits := e.Risk().Limits()
	limits.MaxPositionSize = 50
	e.SetLimits(limits)

	d := e.CheckLimits("AAPL", 1, 100)
	if d.Allowed || d.Reason != risk.ReasonPositionSize {
		t.Fatalf("expected denial under swapped limits, got %+v", d)
	}
}
