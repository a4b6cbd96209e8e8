// Package feed implements a ports.PriceFeedPort adapter over a generic
// WebSocket market-data stream, with an automatic reconnect loop and a
// heartbeat ping to detect dead connections.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/marketstructure/execengine/domain"
	"github.com/marketstructure/execengine/ports"
)

const (
	reconnectDelay = 5 * time.Second
	pingInterval   = 30 * time.Second
)

// tickMessage is one top-of-book update as delivered over the wire.
type tickMessage struct {
	Symbol  string `json:"symbol"`
	Bid     string `json:"bid"`
	Ask     string `json:"ask"`
	BidSize string `json:"bid_size"`
	AskSize string `json:"ask_size"`
}

// Feed maintains a WebSocket connection and an in-memory top-of-book cache,
// satisfying ports.PriceFeedPort.
type Feed struct {
	mu sync.RWMutex

	url       string
	conn      *websocket.Conn
	connected bool
	running   bool
	stopCh    chan struct{}

	subscribed map[domain.Symbol]bool
	quotes     map[domain.Symbol]ports.Quote

	onDisconnect func()
}

func NewFeed(url string) *Feed {
	return &Feed{
		url:        url,
		stopCh:     make(chan struct{}),
		subscribed: make(map[domain.Symbol]bool),
		quotes:     make(map[domain.Symbol]ports.Quote),
	}
}

// OnDisconnect registers a callback fired whenever the read loop detects a
// dropped connection, used to trip the mass-cancel safety net.
func (f *Feed) OnDisconnect(cb func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onDisconnect = cb
}

func (f *Feed) Start() {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return
	}
	f.running = true
	f.mu.Unlock()

	go f.connectionLoop()
	log.Info().Str("url", f.url).Msg("📡 price feed started")
}

func (f *Feed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return
	}
	f.running = false
	close(f.stopCh)
	if f.conn != nil {
		f.conn.Close()
	}
	log.Info().Msg("price feed stopped")
}

func (f *Feed) connectionLoop() {
	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		if err := f.connect(); err != nil {
			log.Error().Err(err).Msg("price feed connection failed, retrying")
			time.Sleep(reconnectDelay)
			continue
		}

		f.readLoop()
		f.mu.RLock()
		cb := f.onDisconnect
		f.mu.RUnlock()
		if cb != nil {
			cb()
		}
		time.Sleep(reconnectDelay)
	}
}

func (f *Feed) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.conn = conn
	f.connected = true
	f.mu.Unlock()

	log.Info().Msg("🔌 price feed connected")
	f.resubscribeAll()
	go f.pingLoop()
	return nil
}

// resubscribeAll replays every symbol queued or previously subscribed so a
// reconnect doesn't silently drop coverage.
func (f *Feed) resubscribeAll() {
	f.mu.RLock()
	conn := f.conn
	symbols := make([]domain.Symbol, 0, len(f.subscribed))
	for s := range f.subscribed {
		symbols = append(symbols, s)
	}
	f.mu.RUnlock()

	for _, s := range symbols {
		if err := conn.WriteJSON(map[string]interface{}{"type": "subscribe", "symbol": s.String()}); err != nil {
			log.Error().Err(err).Str("symbol", s.String()).Msg("failed to resubscribe after reconnect")
		}
	}
}

func (f *Feed) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-f.stopCh:
			return
		case <-ticker.C:
			f.mu.RLock()
			conn, connected := f.conn, f.connected
			f.mu.RUnlock()
			if connected && conn != nil {
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}
}

func (f *Feed) readLoop() {
	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		f.mu.RLock()
		conn := f.conn
		f.mu.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("price feed read error")
			f.mu.Lock()
			f.connected = false
			f.mu.Unlock()
			return
		}
		f.processMessage(message)
	}
}

func (f *Feed) processMessage(data []byte) {
	var msgs []tickMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		var msg tickMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		msgs = []tickMessage{msg}
	}

	for _, msg := range msgs {
		symbol, err := domain.NewSymbol(msg.Symbol)
		if err != nil {
			continue
		}
		bid, _ := decimal.NewFromString(msg.Bid)
		ask, _ := decimal.NewFromString(msg.Ask)
		bidSize, _ := decimal.NewFromString(msg.BidSize)
		askSize, _ := decimal.NewFromString(msg.AskSize)

		quote := ports.Quote{
			Symbol:    symbol,
			Bid:       domain.NewMoney(bid),
			Ask:       domain.NewMoney(ask),
			BidSize:   domain.NewQuantity(bidSize),
			AskSize:   domain.NewQuantity(askSize),
			Timestamp: time.Now(),
		}

		f.mu.Lock()
		f.quotes[symbol] = quote
		f.mu.Unlock()
	}
}

func (f *Feed) GetQuote(ctx context.Context, symbol domain.Symbol) (ports.Quote, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	q, ok := f.quotes[symbol]
	if !ok {
		return ports.Quote{}, fmt.Errorf("%w: %s", domain.ErrDataUnavailable, symbol)
	}
	return q, nil
}

func (f *Feed) Subscribe(ctx context.Context, symbol domain.Symbol) error {
	f.mu.Lock()
	f.subscribed[symbol] = true
	conn := f.conn
	f.mu.Unlock()

	if conn == nil {
		return nil // queued; sent once connected via resubscribeAll on reconnect
	}
	return conn.WriteJSON(map[string]interface{}{"type": "subscribe", "symbol": symbol.String()})
}

func (f *Feed) Unsubscribe(ctx context.Context, symbol domain.Symbol) error {
	f.mu.Lock()
	delete(f.subscribed, symbol)
	conn := f.conn
	f.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.WriteJSON(map[string]interface{}{"type": "unsubscribe", "symbol": symbol.String()})
}

func (f *Feed) GetLastPrice(ctx context.Context, instrumentID domain.InstrumentId) (domain.Money, error) {
	symbol, err := domain.NewSymbol(instrumentID.String())
	if err != nil {
		return domain.ZeroMoney, err
	}
	quote, err := f.GetQuote(ctx, symbol)
	if err != nil {
		return domain.ZeroMoney, err
	}
	return quote.Mid(), nil
}
