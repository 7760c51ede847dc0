// Package engine coordinates strategies, market data streams, the risk
// gate and the exposure ledger. All strategy callbacks run on a single
// dispatch goroutine, so per-stream ordering is preserved and strategy
// code never needs its own locking.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"quantcore/internal/balance"
	"quantcore/internal/events"
	"quantcore/internal/ledger"
	"quantcore/internal/monitor"
	"quantcore/internal/risk"
	"quantcore/internal/strategy"
	"quantcore/internal/stream"
	"quantcore/pkg/cache"
	"quantcore/pkg/db"
	"quantcore/pkg/exchanges/common"
)

// ErrStrategyStopped is returned to a strategy that requests an order
// after it has been deactivated.
var ErrStrategyStopped = errors.New("strategy stopped")

// Config wires the engine's collaborators.
type Config struct {
	Gateway common.Gateway
	Opener  common.StreamOpener
	Gate    *risk.Gate
	Ledger  *ledger.Ledger
	Balance *balance.Manager
	Bus     *events.Bus
	Journal *db.Database           // optional
	Metrics *monitor.SystemMetrics // optional
	Prices  *cache.PriceCache
	Stream  stream.Config
}

// RegistrationOptions carries per-strategy engine settings.
type RegistrationOptions struct {
	Overrides       risk.Config
	OnStreamFailure strategy.FailureAction
	SubscribeTrades bool
	SubscribeTicker bool
}

// OptionsFromConfig maps a YAML strategy entry to registration options.
func OptionsFromConfig(cfg strategy.Config) RegistrationOptions {
	return RegistrationOptions{
		Overrides:       cfg.RiskOverrides,
		OnStreamFailure: cfg.OnStreamFailure,
		SubscribeTrades: cfg.SubscribeTrades,
		SubscribeTicker: cfg.SubscribeTicker,
	}
}

type registration struct {
	strat   strategy.Strategy
	opts    RegistrationOptions
	symbols map[string]bool
	active  bool

	// optional capabilities, probed once at registration
	trades strategy.TradeHandler
	ticker strategy.TickerHandler
	orderH strategy.OrderUpdateHandler
	fillH  strategy.FillHandler
	failH  strategy.StreamFailureHandler
}

type orderRef struct {
	strategyID string
	qty        float64
}

type streamFailure struct {
	kind      common.StreamKind
	symbol    string
	timeframe string
	err       error
}

// Engine owns the dispatch loop and the strategy registry.
type Engine struct {
	cfg Config

	mu     sync.Mutex
	regs   []*registration
	byID   map[string]*registration
	orders map[string]orderRef // client order id -> owner
	supers []*stream.Supervisor

	inbound  chan stream.Event
	failures chan streamFailure
	cancel   context.CancelFunc
}

func New(cfg Config) *Engine {
	if cfg.Stream.MaxRetries <= 0 {
		cfg.Stream = stream.DefaultConfig()
	}
	return &Engine{
		cfg:      cfg,
		byID:     make(map[string]*registration),
		orders:   make(map[string]orderRef),
		inbound:  make(chan stream.Event, 1024),
		failures: make(chan streamFailure, 16),
	}
}

// Register adds a strategy before Run. The strategy's bar callback is
// mandatory by construction; trade, ticker, order and fill handlers
// are detected here and only those streams are subscribed.
func (e *Engine) Register(s strategy.Strategy, opts RegistrationOptions) error {
	if s.ID() == "" {
		return errors.New("strategy id is empty")
	}
	if len(s.Symbols()) == 0 {
		return fmt.Errorf("strategy %q: no symbols", s.ID())
	}
	if s.Interval() == "" {
		return fmt.Errorf("strategy %q: no interval", s.ID())
	}
	if opts.OnStreamFailure == "" {
		opts.OnStreamFailure = strategy.FailureStopStrategy
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.byID[s.ID()]; dup {
		return fmt.Errorf("strategy %q: already registered", s.ID())
	}

	reg := &registration{
		strat:   s,
		opts:    opts,
		symbols: make(map[string]bool, len(s.Symbols())),
		active:  true,
	}
	for _, sym := range s.Symbols() {
		reg.symbols[sym] = true
	}
	if h, ok := s.(strategy.TradeHandler); ok && opts.SubscribeTrades {
		reg.trades = h
	}
	if h, ok := s.(strategy.TickerHandler); ok && opts.SubscribeTicker {
		reg.ticker = h
	}
	if h, ok := s.(strategy.OrderUpdateHandler); ok {
		reg.orderH = h
	}
	if h, ok := s.(strategy.FillHandler); ok {
		reg.fillH = h
	}
	if h, ok := s.(strategy.StreamFailureHandler); ok {
		reg.failH = h
	}

	e.regs = append(e.regs, reg)
	e.byID[s.ID()] = reg
	log.Printf("engine: registered %s (%s) on %v @ %s", s.ID(), s.Name(), s.Symbols(), s.Interval())
	return nil
}

// Run opens the required streams and dispatches until ctx is cancelled
// or a critical stream forces shutdown.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.cancel = cancel

	var wg sync.WaitGroup
	for _, sup := range e.buildSupervisors() {
		wg.Add(1)
		go func(s *stream.Supervisor) {
			defer wg.Done()
			s.Run(ctx)
		}(sup)
	}

	log.Printf("engine: running with %d strategies, %d streams", len(e.regs), len(e.supers))
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			e.cfg.Bus.Publish(events.EventEngineShutdown, nil)
			return ctx.Err()
		case ev := <-e.inbound:
			e.dispatch(ctx, ev)
		case f := <-e.failures:
			e.handleStreamFailure(ctx, f)
		}
	}
}

// buildSupervisors derives the union of streams the registered
// strategies need, plus the account stream for order acks and fills.
func (e *Engine) buildSupervisors() []*stream.Supervisor {
	e.mu.Lock()
	defer e.mu.Unlock()

	type key struct {
		kind      common.StreamKind
		symbol    string
		timeframe string
	}
	want := map[key]bool{{kind: common.StreamUser}: true}
	for _, reg := range e.regs {
		for sym := range reg.symbols {
			want[key{common.StreamBars, sym, reg.strat.Interval()}] = true
			if reg.trades != nil {
				want[key{kind: common.StreamTrades, symbol: sym}] = true
			}
			if reg.ticker != nil {
				want[key{kind: common.StreamTicker, symbol: sym}] = true
			}
		}
	}

	onFail := func(kind common.StreamKind, symbol, timeframe string, err error) {
		e.failures <- streamFailure{kind: kind, symbol: symbol, timeframe: timeframe, err: err}
	}
	e.supers = e.supers[:0]
	for k := range want {
		e.supers = append(e.supers, stream.New(e.cfg.Opener, k.kind, k.symbol, k.timeframe, e.cfg.Stream, e.inbound, onFail))
	}
	return e.supers
}
