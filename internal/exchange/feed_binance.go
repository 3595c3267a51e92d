package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"quantcore-go/internal/book"
	"quantcore-go/internal/signal"
)

type binanceEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type binanceTrade struct {
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
}

type binanceDepth struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

func (f *Feed) runBinance(ctx context.Context, ticks chan<- signal.Tick, books chan<- book.Snapshot) error {
	symbols := f.snapshotSymbols()
	if len(symbols) == 0 {
		return fmt.Errorf("binance feed requires at least one symbol")
	}

	streams := make([]string, 0, 2*len(symbols))
	for _, sym := range symbols {
		lower := strings.ToLower(sym)
		streams = append(streams, lower+"@trade")
		if books != nil {
			streams = append(streams, fmt.Sprintf("%s@depth%d@100ms", lower, f.bookLevels))
		}
	}

	url := fmt.Sprintf("wss://stream.binance.com:9443/stream?streams=%s", strings.Join(streams, "/"))
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := f.consumeBinanceStream(ctx, url, ticks, books); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Warn().Err(err).Msg("binance feed disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		return nil
	}
}

func (f *Feed) consumeBinanceStream(ctx context.Context, url string, ticks chan<- signal.Tick, books chan<- book.Snapshot) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.log.Info().Str("provider", ProviderBinance).Strs("symbols", f.snapshotSymbols()).Msg("connected market data feed")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					f.log.Warn().Err(err).Msg("binance ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var env binanceEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			f.log.Warn().Err(err).Msg("failed to decode binance message")
			continue
		}

		symbol := parseBinanceSymbol(env.Stream)
		switch {
		case strings.Contains(env.Stream, "@trade"):
			if ticks == nil {
				continue
			}
			tick, err := decodeBinanceTrade(symbol, env.Data)
			if err != nil {
				f.log.Warn().Err(err).Msg("invalid trade from binance")
				continue
			}
			select {
			case ticks <- tick:
			case <-ctx.Done():
				return ctx.Err()
			}
		case strings.Contains(env.Stream, "@depth"):
			if books == nil {
				continue
			}
			snap, err := decodeBinanceDepth(symbol, env.Data)
			if err != nil {
				f.log.Warn().Err(err).Msg("invalid depth from binance")
				continue
			}
			select {
			case books <- snap:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func decodeBinanceTrade(symbol string, raw json.RawMessage) (signal.Tick, error) {
	var tr binanceTrade
	if err := json.Unmarshal(raw, &tr); err != nil {
		return signal.Tick{}, err
	}
	px, err := strconv.ParseFloat(tr.Price, 64)
	if err != nil {
		return signal.Tick{}, fmt.Errorf("parse price: %w", err)
	}
	qty, err := strconv.ParseFloat(tr.Quantity, 64)
	if err != nil {
		return signal.Tick{}, fmt.Errorf("parse quantity: %w", err)
	}
	return signal.Tick{Symbol: symbol, Price: px, Volume: qty, Ts: tr.TradeTime}, nil
}

func decodeBinanceDepth(symbol string, raw json.RawMessage) (book.Snapshot, error) {
	var depth binanceDepth
	if err := json.Unmarshal(raw, &depth); err != nil {
		return book.Snapshot{}, err
	}
	snap := book.Snapshot{Symbol: symbol, Timestamp: time.Now().UnixMilli()}
	var err error
	if snap.Bids, err = parseLevels(depth.Bids); err != nil {
		return book.Snapshot{}, err
	}
	if snap.Asks, err = parseLevels(depth.Asks); err != nil {
		return book.Snapshot{}, err
	}
	return snap, nil
}

func parseLevels(raw [][2]string) ([]book.PriceLevel, error) {
	out := make([]book.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		px, err := strconv.ParseFloat(lvl[0], 64)
		if err != nil {
			return nil, fmt.Errorf("parse level price: %w", err)
		}
		size, err := strconv.ParseFloat(lvl[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parse level size: %w", err)
		}
		out = append(out, book.PriceLevel{Price: px, Size: size})
	}
	return out, nil
}

func parseBinanceSymbol(stream string) string {
	parts := strings.Split(stream, "@")
	if len(parts) == 0 || parts[0] == "" {
		return strings.ToUpper(stream)
	}
	return strings.ToUpper(parts[0])
}
