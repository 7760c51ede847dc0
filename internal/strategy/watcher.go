package strategy

import (
	"context"
	"log"

	"quantcore/pkg/exchanges/common"
)

// StreamWatcher subscribes to every stream it can and logs what it
// sees. It never trades; it exists to validate wiring during setup and
// serves as a reference for the optional handler surfaces.
type StreamWatcher struct {
	id       string
	symbols  []string
	interval string

	bars    int
	trades  int
	tickers int
}

func NewStreamWatcher(id string, symbols []string, interval string) *StreamWatcher {
	return &StreamWatcher{id: id, symbols: symbols, interval: interval}
}

func (s *StreamWatcher) ID() string        { return s.id }
func (s *StreamWatcher) Name() string      { return "Stream_Watcher" }
func (s *StreamWatcher) Symbols() []string { return s.symbols }
func (s *StreamWatcher) Interval() string  { return s.interval }

func (s *StreamWatcher) OnBar(ctx context.Context, t Trader, bar common.Bar) error {
	s.bars++
	log.Printf("watcher %s: bar #%d %s %s close=%.2f vol=%.4f",
		s.id, s.bars, bar.Symbol, bar.Timeframe, bar.Close, bar.Volume)
	return nil
}

func (s *StreamWatcher) OnTrade(ctx context.Context, t Trader, trade common.Trade) error {
	s.trades++
	if s.trades%100 == 1 {
		log.Printf("watcher %s: trade #%d %s %.2f x %.6f", s.id, s.trades, trade.Symbol, trade.Price, trade.Qty)
	}
	return nil
}

func (s *StreamWatcher) OnTicker(ctx context.Context, t Trader, tk common.Ticker) error {
	s.tickers++
	if s.tickers%100 == 1 {
		log.Printf("watcher %s: ticker #%d %s bid=%.2f ask=%.2f", s.id, s.tickers, tk.Symbol, tk.BidPrice, tk.AskPrice)
	}
	return nil
}

func (s *StreamWatcher) OnOrderUpdate(ctx context.Context, t Trader, ou common.OrderUpdate) error {
	log.Printf("watcher %s: order %s %s -> %s", s.id, ou.ClientID, ou.Symbol, ou.Status)
	return nil
}

func (s *StreamWatcher) OnFill(ctx context.Context, t Trader, fill common.Fill) error {
	log.Printf("watcher %s: fill %s %s %.6f @ %.2f", s.id, fill.Symbol, fill.Side, fill.Qty, fill.Price)
	return nil
}

func (s *StreamWatcher) OnStreamFailed(kind common.StreamKind, symbol, timeframe string, err error) {
	log.Printf("watcher %s: stream %s %s/%s failed: %v", s.id, kind, symbol, timeframe, err)
}
