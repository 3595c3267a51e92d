package statarb

import (
	"math"
	"testing"
)

func pairBTCETH() Pair {
	return Pair{Symbol1: "BTCUSDT", Symbol2: "ETHUSDT", HedgeRatio: 2}
}

func TestSignalsZeroVarianceSpreadIsNeutral(t *testing.T) {
	e := NewEngine()
	e.SetPairs([]Pair{pairBTCETH()})

	// perfectly linear relation: spread is constant, variance zero
	latest := map[string]float64{}
	var signals []Signal
	for i := 0; i < 25; i++ {
		latest["BTCUSDT"] = 100 + float64(i)*2
		latest["ETHUSDT"] = 45 + float64(i)
		signals = e.Signals(latest)
	}

	if len(signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(signals))
	}
	s := signals[0]
	if math.IsNaN(s.ZScore) || s.ZScore != 0 {
		t.Fatalf("zero-variance spread must give zscore 0, got %f", s.ZScore)
	}
	if s.Signal != Neutral {
		t.Fatalf("expected NEUTRAL, got %s", s.Signal)
	}
	if s.Confidence != 0 {
		t.Fatalf("expected zero confidence, got %f", s.Confidence)
	}
}

func TestSignalsShortOnStretchedSpread(t *testing.T) {
	e := NewEngine()
	e.SetPairs([]Pair{pairBTCETH()})

	latest := map[string]float64{"ETHUSDT": 50}
	for i := 0; i < 24; i++ {
		// small oscillation around 10 keeps the window variance tight
		latest["BTCUSDT"] = 110 + 0.5*float64(i%2)
		e.Signals(latest)
	}

	// spike the spread far above its rolling mean
	latest["BTCUSDT"] = 140
	signals := e.Signals(latest)
	if len(signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(signals))
	}
	s := signals[0]
	if s.ZScore <= s.EntryThreshold {
		t.Fatalf("expected zscore above entry threshold, got %f", s.ZScore)
	}
	if s.Signal != Short {
		t.Fatalf("stretched-high spread should signal SHORT, got %s", s.Signal)
	}
	if s.Confidence <= 0 || s.Confidence > 0.95 {
		t.Fatalf("confidence %f outside (0, 0.95]", s.Confidence)
	}
}

func TestSignalsLongOnDepressedSpread(t *testing.T) {
	e := NewEngine()
	e.SetPairs([]Pair{pairBTCETH()})

	latest := map[string]float64{"ETHUSDT": 50}
	for i := 0; i < 24; i++ {
		latest["BTCUSDT"] = 110 + 0.5*float64(i%2)
		e.Signals(latest)
	}

	latest["BTCUSDT"] = 80
	signals := e.Signals(latest)
	if len(signals) != 1 || signals[0].Signal != Long {
		t.Fatalf("depressed spread should signal LONG, got %+v", signals)
	}
}

func TestSignalsSkipUnderfilledAndUnknownPairs(t *testing.T) {
	e := NewEngine()
	e.SetPairs([]Pair{pairBTCETH()})

	latest := map[string]float64{"BTCUSDT": 100, "ETHUSDT": 50}
	if signals := e.Signals(latest); len(signals) != 0 {
		t.Fatalf("expected no signals with a short spread history, got %d", len(signals))
	}

	if signals := e.Signals(map[string]float64{"BTCUSDT": 100}); len(signals) != 0 {
		t.Fatalf("expected no signals when a leg price is missing, got %d", len(signals))
	}
}

func TestBollingerBands(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 19; i++ {
		e.UpdatePrice("BTCUSDT", 100+float64(i%2))
	}
	if _, ok := e.BollingerBands("BTCUSDT", 20, 2); ok {
		t.Fatalf("expected no bands with insufficient history")
	}

	e.UpdatePrice("BTCUSDT", 100.5)
	bands, ok := e.BollingerBands("BTCUSDT", 20, 2)
	if !ok {
		t.Fatalf("expected bands with 20 prices")
	}
	if bands.Lower >= bands.Middle || bands.Middle >= bands.Upper {
		t.Fatalf("bands out of order: %+v", bands)
	}
	if bands.Signal != "NEUTRAL" {
		t.Fatalf("mid-band price should be NEUTRAL, got %s", bands.Signal)
	}

	// push far below the band
	for i := 0; i < 3; i++ {
		e.UpdatePrice("BTCUSDT", 90)
	}
	bands, _ = e.BollingerBands("BTCUSDT", 20, 2)
	if bands.Signal != "OVERSOLD" {
		t.Fatalf("price below lower band should be OVERSOLD, got %s", bands.Signal)
	}
}

func TestMeanReversionSignAndBounds(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 49; i++ {
		e.UpdatePrice("ETHUSDT", 100)
	}
	if got := e.MeanReversion("ETHUSDT", 50); got != 0 {
		t.Fatalf("insufficient history should give 0, got %f", got)
	}

	e.UpdatePrice("ETHUSDT", 120)
	got := e.MeanReversion("ETHUSDT", 50)
	if got <= 0 || got > 1 {
		t.Fatalf("price above mean should give score in (0,1], got %f", got)
	}
}

func TestHedgeRatioRecoversSlope(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 100; i++ {
		x := 50 + float64(i)
		e.UpdatePrice("ETHUSDT", x)
		e.UpdatePrice("BTCUSDT", 3*x+7)
	}
	ratio := e.HedgeRatio("BTCUSDT", "ETHUSDT", 100)
	if math.Abs(ratio-3) > 1e-6 {
		t.Fatalf("expected OLS slope 3, got %f", ratio)
	}
}

func TestHedgeRatioDegenerateRegressor(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 30; i++ {
		e.UpdatePrice("ETHUSDT", 50)
		e.UpdatePrice("BTCUSDT", 100+float64(i))
	}
	if ratio := e.HedgeRatio("BTCUSDT", "ETHUSDT", 30); ratio != 1 {
		t.Fatalf("constant regressor should fall back to 1, got %f", ratio)
	}
}

func TestCointegrationCorrelationProxy(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 100; i++ {
		x := float64(i)
		e.UpdatePrice("BTCUSDT", 100+2*x)
		e.UpdatePrice("ETHUSDT", 50+x)
	}
	corr := e.Cointegration("BTCUSDT", "ETHUSDT", 100)
	if math.Abs(corr-1) > 1e-9 {
		t.Fatalf("perfect linear relation should give correlation 1, got %f", corr)
	}

	if corr := e.Cointegration("BTCUSDT", "MISSING", 100); corr != 0 {
		t.Fatalf("unknown symbol should give 0, got %f", corr)
	}
}
