package book

import (
	"math"
	"sync"

	"quantcore-go/internal/series"
)

const (
	priceHistoryCap = 1000
	vwapTradeCap    = 100

	flowLevels     = 10
	pressureLevels = 5

	// Trades this many times larger than the previous one are treated as
	// informed flow by the smart-money heuristic.
	smartMoneyMultiple = 5.0
)

type trade struct {
	price float64
	size  float64
}

type symbolState struct {
	prices        *series.Ring[float64]
	trades        *series.Ring[trade]
	lastTradeSize float64
}

// Extractor derives Features from snapshots. It keeps a small per-symbol
// history (recent prices for tick direction, recent trades for the rolling
// VWAP); given that state, extraction is pure.
type Extractor struct {
	mu    sync.Mutex
	state map[string]*symbolState
}

// NewExtractor builds an extractor with empty per-symbol state.
func NewExtractor() *Extractor {
	return &Extractor{state: make(map[string]*symbolState)}
}

// Extract computes the feature vector for one snapshot. A snapshot missing
// either side of the book yields zero-valued Features rather than an error.
func (e *Extractor) Extract(snap Snapshot) Features {
	if len(snap.Bids) == 0 || len(snap.Asks) == 0 {
		return Features{AggressorSide: AggressorPassive}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state[snap.Symbol]
	if st == nil {
		st = &symbolState{
			prices: series.NewRing[float64](priceHistoryCap),
			trades: series.NewRing[trade](vwapTradeCap),
		}
		e.state[snap.Symbol] = st
	}

	bestBid, bestAsk := snap.Bids[0], snap.Asks[0]
	mid := (bestBid.Price + bestAsk.Price) / 2

	f := Features{
		Spread:   bestAsk.Price - bestBid.Price,
		MidPrice: mid,
		MicroPrice: (bestBid.Price*bestAsk.Size + bestAsk.Price*bestBid.Size) /
			(bestBid.Size + bestAsk.Size + series.Epsilon),
		VolumeImbalance: (bestBid.Size - bestAsk.Size) /
			(bestBid.Size + bestAsk.Size + series.Epsilon),
	}

	bidVol10 := sideVolume(snap.Bids, flowLevels)
	askVol10 := sideVolume(snap.Asks, flowLevels)
	f.OrderFlowImbalance = (bidVol10 - askVol10) / (bidVol10 + askVol10 + series.Epsilon)

	f.BidDepth = weightedDepth(snap.Bids, mid)
	f.AskDepth = weightedDepth(snap.Asks, mid)
	f.DepthImbalance = (f.BidDepth - f.AskDepth) / (f.BidDepth + f.AskDepth + series.Epsilon)
	f.DepthRatio = f.BidDepth / (f.AskDepth + series.Epsilon)

	bidVol5 := sideVolume(snap.Bids, pressureLevels)
	askVol5 := sideVolume(snap.Asks, pressureLevels)
	top5 := bidVol5 + askVol5 + series.Epsilon
	f.BuyPressure = bidVol5 / top5
	f.SellPressure = askVol5 / top5
	f.PressureRatio = f.BuyPressure / (f.SellPressure + series.Epsilon)

	f.TickDirection = tickDirection(st, snap.LastPrice)

	if snap.LastPrice > 0 {
		if snap.LastSize > 0 {
			st.trades.Push(trade{price: snap.LastPrice, size: snap.LastSize})
		}
		st.prices.Push(snap.LastPrice)
	}

	f.VWAP, f.VWAPDeviation = rollingVWAP(st, snap.LastPrice)
	f.AggressorSide = classifyAggressor(snap.LastPrice, bestBid.Price, bestAsk.Price)
	f.TradeIntensity = tradeIntensity(st, snap.LastSize)
	f.SmartMoney = smartMoney(st.lastTradeSize, snap.LastSize, f.TickDirection)
	f.LiquidityTaking = liquidityTaking(f.AggressorSide, snap.LastSize, bestBid.Size, bestAsk.Size)

	topDepth := bestBid.Size + bestAsk.Size
	if snap.LastSize > 0 {
		f.MarketImpact = math.Log(snap.LastSize / (topDepth + 1))
	}

	if snap.LastSize > 0 {
		st.lastTradeSize = snap.LastSize
	}
	return f
}

func sideVolume(levels []PriceLevel, depth int) float64 {
	if depth > len(levels) {
		depth = len(levels)
	}
	var total float64
	for _, lvl := range levels[:depth] {
		total += lvl.Size
	}
	return total
}

// weightedDepth sums a side's size with each level exponentially down-weighted
// by its normalized distance from mid.
func weightedDepth(levels []PriceLevel, mid float64) float64 {
	if mid <= 0 {
		return 0
	}
	var total float64
	for _, lvl := range levels {
		dist := math.Abs(lvl.Price-mid) / mid
		total += lvl.Size * math.Exp(-10*dist)
	}
	return total
}

func tickDirection(st *symbolState, lastPrice float64) int {
	prev, ok := st.prices.Latest()
	if !ok || lastPrice <= 0 {
		return 0
	}
	switch {
	case lastPrice > prev:
		return 1
	case lastPrice < prev:
		return -1
	default:
		return 0
	}
}

func rollingVWAP(st *symbolState, lastPrice float64) (vwap, deviation float64) {
	var notional, volume float64
	for _, tr := range st.trades.Values() {
		notional += tr.price * tr.size
		volume += tr.size
	}
	if volume <= 0 {
		return 0, 0
	}
	vwap = notional / volume
	if lastPrice > 0 {
		deviation = (lastPrice - vwap) / (vwap + series.Epsilon)
	}
	return vwap, deviation
}

func classifyAggressor(lastPrice, bestBid, bestAsk float64) Aggressor {
	switch {
	case lastPrice <= 0:
		return AggressorPassive
	case lastPrice >= bestAsk:
		return AggressorBuy
	case lastPrice <= bestBid:
		return AggressorSell
	default:
		return AggressorPassive
	}
}

// tradeIntensity relates the last trade size to the average size over the
// rolling trade window.
func tradeIntensity(st *symbolState, lastSize float64) float64 {
	trades := st.trades.Values()
	if lastSize <= 0 || len(trades) == 0 {
		return 0
	}
	var total float64
	for _, tr := range trades {
		total += tr.size
	}
	avg := total / float64(len(trades))
	return lastSize / (avg + series.Epsilon)
}

// smartMoney flags unusually large trades moving with the tick. This is a
// heuristic, not a statistically validated signal.
func smartMoney(prevSize, size float64, direction int) float64 {
	if prevSize <= 0 || direction == 0 {
		return 0
	}
	threshold := smartMoneyMultiple * prevSize
	if size <= threshold {
		return 0
	}
	return float64(direction) * math.Log(size/threshold)
}

func liquidityTaking(side Aggressor, size, bidSize, askSize float64) float64 {
	if size <= 0 {
		return 0
	}
	switch side {
	case AggressorBuy:
		return size / (askSize + series.Epsilon)
	case AggressorSell:
		return -size / (bidSize + series.Epsilon)
	default:
		return 0
	}
}
