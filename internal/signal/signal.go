// Package signal standardizes payloads shared between data ingestion and the
// analytics engines.
package signal

// Tick models a single trade sample consumed by the engines. Ts is unix
// milliseconds.
type Tick struct {
	Symbol string
	Price  float64
	Volume float64
	Ts     int64
}

// Signal expresses a trading bias produced by one of the engines.
type Signal struct {
	Symbol string
	Score  float64 // positive long bias, negative short bias
	Reason string
	Ts     int64
}
