// Package mock provides an in-process venue for paper trading: a
// random-walk market data feed plus a gateway that fills every order
// instantly at the last generated price and echoes the execution back
// through the user stream, the same way a real venue would.
package mock

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"quantcore/pkg/exchanges/common"
)

// Venue simulates an exchange. It implements common.Gateway,
// common.AccountClient and common.StreamOpener.
type Venue struct {
	mu      sync.Mutex
	prices  map[string]float64
	balance common.Balance
	userCh  chan any
	nextID  int64
	tradeID int64

	// Tick is the wall-clock delay between generated bars. Bars keep
	// their nominal timeframe labels, so a 1h strategy can be exercised
	// in seconds.
	Tick time.Duration

	// Drift and Vol shape the per-bar random walk.
	Drift float64
	Vol   float64
}

// New builds a venue seeded with starting prices per symbol.
func New(startPrices map[string]float64, quoteAsset string, quoteBalance float64) *Venue {
	prices := make(map[string]float64, len(startPrices))
	for sym, p := range startPrices {
		prices[sym] = p
	}
	return &Venue{
		prices:  prices,
		balance: common.Balance{Asset: quoteAsset, Free: quoteBalance},
		userCh:  make(chan any, 256),
		Tick:    time.Second,
		Vol:     0.004,
	}
}

func (v *Venue) price(symbol string) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.prices[symbol]
	if !ok {
		p = 100
		v.prices[symbol] = p
	}
	return p
}

// step advances the random walk for one symbol and returns the new price.
func (v *Venue) step(symbol string) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.prices[symbol]
	if !ok {
		p = 100
	}
	p *= 1 + v.Drift + v.Vol*(rand.Float64()*2-1)
	if p < 0.0001 {
		p = 0.0001
	}
	v.prices[symbol] = p
	return p
}

// SubmitOrder fills the request immediately at the current simulated
// price and queues the execution report on the user stream.
func (v *Venue) SubmitOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	price := v.price(req.Symbol)
	if req.Type == common.OrderTypeLimit && req.Price > 0 {
		price = req.Price
	}

	v.mu.Lock()
	v.nextID++
	v.tradeID++
	orderID := strconv.FormatInt(v.nextID, 10)
	tradeID := strconv.FormatInt(v.tradeID, 10)
	v.mu.Unlock()

	now := time.Now()
	update := common.OrderUpdate{
		ExchangeOrderID: orderID,
		ClientID:        req.ClientID,
		Symbol:          req.Symbol,
		Side:            req.Side,
		Status:          common.StatusFilled,
		FilledQty:       req.Qty,
		Time:            now,
	}
	fill := common.Fill{
		ExchangeOrderID: orderID,
		ClientID:        req.ClientID,
		TradeID:         tradeID,
		Symbol:          req.Symbol,
		Side:            req.Side,
		Qty:             req.Qty,
		Price:           price,
		Time:            now,
	}
	select {
	case v.userCh <- update:
	default:
	}
	select {
	case v.userCh <- fill:
	default:
	}
	return common.OrderResult{ExchangeOrderID: orderID, Status: common.StatusFilled, ClientID: req.ClientID}, nil
}

// CancelOrder is a no-op: simulated orders fill on submission.
func (v *Venue) CancelOrder(ctx context.Context, symbol, clientID string) error {
	return nil
}

func (v *Venue) FetchBalances(ctx context.Context) ([]common.Balance, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return []common.Balance{v.balance}, nil
}

// OpenStream returns a synthetic stream for the requested kind. Streams
// never fail on their own; they end only when the context does.
func (v *Venue) OpenStream(ctx context.Context, kind common.StreamKind, symbol, timeframe string) (common.Stream, error) {
	switch kind {
	case common.StreamBars:
		return &barStream{venue: v, symbol: symbol, timeframe: timeframe}, nil
	case common.StreamTrades:
		return &tradeStream{venue: v, symbol: symbol}, nil
	case common.StreamTicker:
		return &tickerStream{venue: v, symbol: symbol}, nil
	case common.StreamUser:
		return &userStream{venue: v}, nil
	}
	return nil, fmt.Errorf("unknown stream kind %q", kind)
}

// barStream synthesizes one closed bar per tick.
type barStream struct {
	venue     *Venue
	symbol    string
	timeframe string
}

func (s *barStream) Recv(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.venue.Tick):
	}
	open := s.venue.price(s.symbol)
	close_ := s.venue.step(s.symbol)
	high, low := open, close_
	if close_ > open {
		high, low = close_, open
	}
	now := time.Now()
	return common.Bar{
		Symbol:    s.symbol,
		Timeframe: s.timeframe,
		OpenTime:  now.Add(-s.venue.Tick),
		CloseTime: now,
		Open:      open,
		High:      high * 1.001,
		Low:       low * 0.999,
		Close:     close_,
		Volume:    1 + rand.Float64()*10,
	}, nil
}

func (s *barStream) Close() error { return nil }

type tradeStream struct {
	venue  *Venue
	symbol string
}

func (s *tradeStream) Recv(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.venue.Tick / 2):
	}
	return common.Trade{
		Symbol:  s.symbol,
		TradeID: strconv.FormatInt(time.Now().UnixNano(), 10),
		Price:   s.venue.price(s.symbol),
		Qty:     rand.Float64(),
		IsBuyer: rand.Intn(2) == 0,
		Time:    time.Now(),
	}, nil
}

func (s *tradeStream) Close() error { return nil }

type tickerStream struct {
	venue  *Venue
	symbol string
}

func (s *tickerStream) Recv(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.venue.Tick / 2):
	}
	p := s.venue.price(s.symbol)
	return common.Ticker{
		Symbol:   s.symbol,
		BidPrice: p * 0.9995,
		BidQty:   rand.Float64() * 5,
		AskPrice: p * 1.0005,
		AskQty:   rand.Float64() * 5,
		Time:     time.Now(),
	}, nil
}

func (s *tickerStream) Close() error { return nil }

type userStream struct {
	venue *Venue
}

func (s *userStream) Recv(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg := <-s.venue.userCh:
		return msg, nil
	}
}

func (s *userStream) Close() error { return nil }
