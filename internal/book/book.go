// Package book turns raw order-book snapshots into microstructure feature
// vectors.
package book

// PriceLevel is a single price+size entry on one side of the book.
type PriceLevel struct {
	Price float64
	Size  float64
}

// Snapshot is one externally produced view of the book, best levels first.
// Timestamp is unix milliseconds. LastPrice/LastSize describe the most recent
// trade observed alongside the snapshot.
type Snapshot struct {
	Symbol    string
	Timestamp int64
	Bids      []PriceLevel
	Asks      []PriceLevel
	LastPrice float64
	LastSize  float64
}

// Aggressor classifies which side initiated the last trade.
type Aggressor string

const (
	AggressorBuy     Aggressor = "BUY"
	AggressorSell    Aggressor = "SELL"
	AggressorPassive Aggressor = "PASSIVE"
)

// Features is the derived, stateless output of one snapshot.
type Features struct {
	Spread             float64
	MidPrice           float64
	MicroPrice         float64
	OrderFlowImbalance float64
	VolumeImbalance    float64
	DepthImbalance     float64
	BuyPressure        float64
	SellPressure       float64
	PressureRatio      float64
	BidDepth           float64
	AskDepth           float64
	DepthRatio         float64
	VWAP               float64
	VWAPDeviation      float64
	TickDirection      int // +1 uptick, -1 downtick, 0 unchanged/unknown
	AggressorSide      Aggressor
	TradeIntensity     float64
	SmartMoney         float64
	LiquidityTaking    float64
	MarketImpact       float64
}
