// Package exchange hosts connectors that transport external market data into
// the engine's feed calls.
package exchange

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quantcore-go/internal/book"
	"quantcore-go/internal/signal"
)

const (
	// ProviderStub emits deterministic synthetic ticks (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderBinance streams live trades and depth from Binance public websockets.
	ProviderBinance = "binance"
)

const defaultBookLevels = 10

// Feed represents a pluggable market data stream implementation. It pushes
// ticks and order-book snapshots onto caller-owned channels; the engine never
// pulls data itself.
type Feed struct {
	provider   string
	log        zerolog.Logger
	bookLevels int

	mu      sync.RWMutex
	symbols []string
}

// Option configures Feed construction parameters.
type Option func(*Feed)

// WithBookLevels sets the depth requested from the venue's book stream.
func WithBookLevels(levels int) Option {
	return func(f *Feed) {
		if levels > 0 {
			f.bookLevels = levels
		}
	}
}

// NewFeed constructs a feed backed by the requested provider.
func NewFeed(provider string, symbols []string, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider:   strings.ToLower(provider),
		log:        log,
		bookLevels: defaultBookLevels,
	}
	f.SetSymbols(symbols)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetSymbols replaces the tracked symbol list (deduplicated, sorted for
// determinism).
func (f *Feed) SetSymbols(symbols []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unique := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			continue
		}
		unique[sym] = struct{}{}
	}
	f.symbols = f.symbols[:0]
	for sym := range unique {
		f.symbols = append(f.symbols, sym)
	}
	sort.Strings(f.symbols)
}

func (f *Feed) snapshotSymbols() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.symbols))
	copy(out, f.symbols)
	return out
}

// Run pushes ticks and book snapshots onto the provided channels until the
// context is canceled. Either channel may be nil when only one stream is
// wanted.
func (f *Feed) Run(ctx context.Context, ticks chan<- signal.Tick, books chan<- book.Snapshot) error {
	switch f.provider {
	case ProviderBinance:
		return f.runBinance(ctx, ticks, books)
	default:
		return f.runStub(ctx, ticks, books)
	}
}

func (f *Feed) runStub(ctx context.Context, ticks chan<- signal.Tick, books chan<- book.Snapshot) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	px := 100.0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			px += 0.1
			ms := ts.UnixMilli()
			for _, sym := range f.snapshotSymbols() {
				if ticks != nil {
					tick := signal.Tick{Symbol: sym, Price: px, Volume: 1, Ts: ms}
					select {
					case ticks <- tick:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
				if books != nil {
					snap := stubSnapshot(sym, px, ms)
					select {
					case books <- snap:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
		}
	}
}

func stubSnapshot(symbol string, px float64, ms int64) book.Snapshot {
	return book.Snapshot{
		Symbol:    symbol,
		Timestamp: ms,
		Bids:      []book.PriceLevel{{Price: px - 0.05, Size: 10}, {Price: px - 0.10, Size: 15}},
		Asks:      []book.PriceLevel{{Price: px + 0.05, Size: 10}, {Price: px + 0.10, Size: 15}},
		LastPrice: px,
		LastSize:  1,
	}
}
