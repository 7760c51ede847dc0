package common

import (
	"context"
	"errors"
)

// Gateway abstracts a trading venue.
type Gateway interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	CancelOrder(ctx context.Context, symbol, exchangeOrderID string) error
}

// AccountClient reads account state from a venue.
type AccountClient interface {
	FetchBalances(ctx context.Context) ([]Balance, error)
}

// StreamKind identifies a class of market/account data stream.
type StreamKind string

const (
	StreamBars   StreamKind = "bars"
	StreamTrades StreamKind = "trades"
	StreamTicker StreamKind = "ticker"
	// StreamUser carries OrderUpdate and Fill messages for our own
	// orders; symbol and timeframe are empty for this kind.
	StreamUser StreamKind = "user"
)

// Stream is one live subscription. Recv blocks until the next message,
// ctx cancellation, or a transport error. Messages are Bar, []Trade,
// Ticker, OrderUpdate or Fill values depending on the stream kind.
type Stream interface {
	Recv(ctx context.Context) (any, error)
	Close() error
}

// StreamOpener dials a single stream. timeframe is only meaningful for
// StreamBars.
type StreamOpener interface {
	OpenStream(ctx context.Context, kind StreamKind, symbol, timeframe string) (Stream, error)
}

// ErrAuth marks connection failures that no amount of retrying can fix
// (bad or expired credentials, revoked listen keys).
var ErrAuth = errors.New("authentication rejected")

// IsAuthError reports whether err is credential-related.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuth)
}
