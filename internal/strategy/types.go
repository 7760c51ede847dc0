// Package strategy defines the contract between trading strategies and
// the engine, plus the built-in strategies.
package strategy

import (
	"context"

	"quantcore/internal/risk"
	"quantcore/pkg/exchanges/common"
)

// Trader is the engine-side surface a strategy calls back into. Order
// requests are evaluated by the risk gate synchronously; when the
// decision is an acceptance the order has also been handed to the
// venue (the error reports submission problems).
type Trader interface {
	RequestOrder(ctx context.Context, req common.OrderRequest) (risk.Decision, error)
	Position(symbol string) float64
	AvailableBalance() float64
	LastPrice(symbol string) (float64, bool)
}

// Strategy is the mandatory surface every strategy implements. OnBar
// is invoked once per closed bar for each subscribed symbol.
type Strategy interface {
	ID() string
	Name() string
	Symbols() []string
	Interval() string
	OnBar(ctx context.Context, t Trader, bar common.Bar) error
}

// Optional capabilities. The engine probes for these with type
// assertions at registration; a strategy only receives the streams and
// account updates it has a handler for.

// TradeHandler receives public trades for subscribed symbols.
type TradeHandler interface {
	OnTrade(ctx context.Context, t Trader, trade common.Trade) error
}

// TickerHandler receives top-of-book updates for subscribed symbols.
type TickerHandler interface {
	OnTicker(ctx context.Context, t Trader, tk common.Ticker) error
}

// OrderUpdateHandler receives lifecycle updates for the strategy's own
// orders.
type OrderUpdateHandler interface {
	OnOrderUpdate(ctx context.Context, t Trader, ou common.OrderUpdate) error
}

// FillHandler receives executions of the strategy's own orders, after
// the ledger has been updated.
type FillHandler interface {
	OnFill(ctx context.Context, t Trader, fill common.Fill) error
}

// StreamFailureHandler is notified when a stream the strategy depends
// on is declared permanently failed. It runs before the configured
// failure policy is applied and must not block.
type StreamFailureHandler interface {
	OnStreamFailed(kind common.StreamKind, symbol, timeframe string, err error)
}
