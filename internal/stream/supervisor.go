// Package stream supervises live market/account data subscriptions:
// it owns the connect/retry loop for one stream and reports permanent
// failures exactly once.
package stream

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"quantcore/pkg/exchanges/common"
)

// State is the lifecycle phase of a supervised stream.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateRetrying
	StatePermanentlyFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateRetrying:
		return "retrying"
	case StatePermanentlyFailed:
		return "failed"
	}
	return "unknown"
}

// Event is one delivered stream message with its origin attached.
type Event struct {
	Kind      common.StreamKind
	Symbol    string
	Timeframe string
	Msg       any
}

// FailureFunc is invoked exactly once when a stream is declared
// permanently failed. It runs on the supervisor goroutine.
type FailureFunc func(kind common.StreamKind, symbol, timeframe string, err error)

// Config tunes the retry loop.
type Config struct {
	MaxRetries int // consecutive failed attempts before giving up
	Backoff    Backoff
}

// DefaultConfig mirrors typical exchange websocket tolerances.
func DefaultConfig() Config {
	return Config{MaxRetries: 5, Backoff: DefaultBackoff()}
}

// Supervisor runs one stream: dial, read until error, back off,
// redial. It transitions Connecting -> Active on the first received
// message and the failure counter resets every time Active is reached.
// After MaxRetries consecutive attempts that never reached Active, or
// immediately on an authentication error, the stream is declared
// permanently failed and never retried again.
type Supervisor struct {
	opener    common.StreamOpener
	kind      common.StreamKind
	symbol    string
	timeframe string
	cfg       Config

	out    chan<- Event
	onFail FailureFunc

	state    atomic.Int32
	lastErr  atomic.Value // error
	failOnce sync.Once
}

// New builds a supervisor for one (kind, symbol, timeframe) stream.
// Messages are delivered in order on out; out is shared across
// supervisors and must be drained by the consumer.
func New(opener common.StreamOpener, kind common.StreamKind, symbol, timeframe string, cfg Config, out chan<- Event, onFail FailureFunc) *Supervisor {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.Backoff.Base <= 0 {
		cfg.Backoff = DefaultBackoff()
	}
	return &Supervisor{
		opener:    opener,
		kind:      kind,
		symbol:    symbol,
		timeframe: timeframe,
		cfg:       cfg,
		out:       out,
		onFail:    onFail,
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// LastErr returns the most recent stream error, nil before any
// failure.
func (s *Supervisor) LastErr() error {
	if v := s.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Kind, Symbol and Timeframe identify the supervised stream.
func (s *Supervisor) Kind() common.StreamKind { return s.kind }
func (s *Supervisor) Symbol() string          { return s.symbol }
func (s *Supervisor) Timeframe() string       { return s.timeframe }

// Run blocks until ctx is cancelled or the stream permanently fails.
func (s *Supervisor) Run(ctx context.Context) {
	attempts := 0
	for {
		if ctx.Err() != nil {
			return
		}
		s.state.Store(int32(StateConnecting))
		attempts++

		err := s.attempt(ctx, &attempts)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.lastErr.Store(err)
			if common.IsAuthError(err) {
				log.Printf("stream %s %s: auth error, not retrying: %v", s.kind, s.streamName(), err)
				s.fail(err)
				return
			}
			if attempts >= s.cfg.MaxRetries {
				log.Printf("stream %s %s: giving up after %d attempts: %v", s.kind, s.streamName(), attempts, err)
				s.fail(err)
				return
			}
			s.state.Store(int32(StateRetrying))
			delay := s.cfg.Backoff.Delay(attempts)
			log.Printf("stream %s %s: attempt %d/%d failed (%v), retrying in %s",
				s.kind, s.streamName(), attempts, s.cfg.MaxRetries, err, delay)
			if !sleep(ctx, delay) {
				return
			}
		}
	}
}

// attempt dials once and pumps messages until the stream breaks. It
// resets *attempts when the stream reaches Active.
func (s *Supervisor) attempt(ctx context.Context, attempts *int) error {
	st, err := s.opener.OpenStream(ctx, s.kind, s.symbol, s.timeframe)
	if err != nil {
		return err
	}
	defer st.Close()

	active := false
	for {
		msg, err := st.Recv(ctx)
		if err != nil {
			return err
		}
		if !active {
			active = true
			*attempts = 0
			s.state.Store(int32(StateActive))
		}
		select {
		case s.out <- Event{Kind: s.kind, Symbol: s.symbol, Timeframe: s.timeframe, Msg: msg}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Supervisor) fail(err error) {
	s.state.Store(int32(StatePermanentlyFailed))
	s.failOnce.Do(func() {
		if s.onFail != nil {
			s.onFail(s.kind, s.symbol, s.timeframe, err)
		}
	})
}

func (s *Supervisor) streamName() string {
	if s.symbol == "" {
		return "account"
	}
	if s.timeframe != "" {
		return s.symbol + "@" + s.timeframe
	}
	return s.symbol
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
