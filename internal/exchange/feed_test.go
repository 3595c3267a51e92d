package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"quantcore-go/internal/book"
	"quantcore-go/internal/signal"
)

func TestFeedRunEmitsTicksAndBooks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := NewFeed(ProviderStub, []string{"BTCUSDT"}, zerolog.Nop())
	ticks := make(chan signal.Tick, 1)
	books := make(chan book.Snapshot, 1)

	go func() {
		_ = feed.Run(ctx, ticks, books)
	}()

	deadline := time.After(2 * time.Second)
	var gotTick, gotBook bool
	for !gotTick || !gotBook {
		select {
		case tk := <-ticks:
			if tk.Symbol != "BTCUSDT" {
				t.Fatalf("unexpected tick symbol %s", tk.Symbol)
			}
			gotTick = true
		case snap := <-books:
			if snap.Symbol != "BTCUSDT" {
				t.Fatalf("unexpected book symbol %s", snap.Symbol)
			}
			if len(snap.Bids) == 0 || len(snap.Asks) == 0 {
				t.Fatalf("stub snapshot should carry both sides")
			}
			if snap.Bids[0].Price >= snap.Asks[0].Price {
				t.Fatalf("crossed stub book: bid %f ask %f", snap.Bids[0].Price, snap.Asks[0].Price)
			}
			gotBook = true
		case <-deadline:
			t.Fatal("timed out waiting for stub feed")
		}
	}
}

func TestSetSymbolsDeduplicatesAndSorts(t *testing.T) {
	feed := NewFeed(ProviderStub, []string{" ETHUSDT", "BTCUSDT", "ETHUSDT", ""}, zerolog.Nop())
	symbols := feed.snapshotSymbols()
	if len(symbols) != 2 || symbols[0] != "BTCUSDT" || symbols[1] != "ETHUSDT" {
		t.Fatalf("unexpected symbols %v", symbols)
	}
}

func TestParseBinanceSymbol(t *testing.T) {
	cases := map[string]string{
		"btcusdt@trade":         "BTCUSDT",
		"ethusdt@depth10@100ms": "ETHUSDT",
		"dogeusdt":              "DOGEUSDT",
		"":                      "",
	}
	for stream, expected := range cases {
		if got := parseBinanceSymbol(stream); got != expected {
			t.Fatalf("expected %s got %s", expected, got)
		}
	}
}

func TestDecodeBinanceTrade(t *testing.T) {
	raw := []byte(`{"p":"50123.45","q":"0.25","T":1700000000000}`)
	tick, err := decodeBinanceTrade("BTCUSDT", raw)
	if err != nil {
		t.Fatalf("decodeBinanceTrade returned error: %v", err)
	}
	if tick.Price != 50123.45 || tick.Volume != 0.25 || tick.Ts != 1700000000000 {
		t.Fatalf("unexpected tick %+v", tick)
	}

	if _, err := decodeBinanceTrade("BTCUSDT", []byte(`{"p":"bad","q":"1"}`)); err == nil {
		t.Fatalf("expected error for invalid price")
	}
}

func TestDecodeBinanceDepth(t *testing.T) {
	raw := []byte(`{"lastUpdateId":1,"bids":[["100.5","3"],["100.0","5"]],"asks":[["101.0","2"]]}`)
	snap, err := decodeBinanceDepth("BTCUSDT", raw)
	if err != nil {
		t.Fatalf("decodeBinanceDepth returned error: %v", err)
	}
	if len(snap.Bids) != 2 || len(snap.Asks) != 1 {
		t.Fatalf("unexpected level counts %+v", snap)
	}
	if snap.Bids[0].Price != 100.5 || snap.Bids[0].Size != 3 {
		t.Fatalf("unexpected best bid %+v", snap.Bids[0])
	}

	if _, err := decodeBinanceDepth("BTCUSDT", []byte(`{"bids":[["x","1"]],"asks":[]}`)); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}
