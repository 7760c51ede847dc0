package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"quantcore/internal/balance"
	"quantcore/internal/events"
	"quantcore/internal/ledger"
	"quantcore/internal/risk"
	"quantcore/internal/strategy"
	"quantcore/internal/stream"
	"quantcore/pkg/cache"
	"quantcore/pkg/exchanges/common"
)

// chanStream adapts a channel to the stream contract.
type chanStream struct {
	ch <-chan any
}

func (s *chanStream) Recv(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case v, ok := <-s.ch:
		if !ok {
			return nil, io.EOF
		}
		return v, nil
	}
}

func (s *chanStream) Close() error { return nil }

// testVenue is a paper venue: the opener serves bars and the account
// stream, and submitted orders are echoed back as immediate fills.
type testVenue struct {
	mu        sync.Mutex
	bars      chan any
	user      chan any
	submitted []common.OrderRequest
	barsErr   error // when set, bar streams fail to open
	userErr   error // when set, the user stream fails to open
	seq       int
}

func newTestVenue() *testVenue {
	return &testVenue{bars: make(chan any, 64), user: make(chan any, 64)}
}

func (v *testVenue) OpenStream(ctx context.Context, kind common.StreamKind, symbol, timeframe string) (common.Stream, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch kind {
	case common.StreamBars:
		if v.barsErr != nil {
			return nil, v.barsErr
		}
		return &chanStream{ch: v.bars}, nil
	case common.StreamUser:
		if v.userErr != nil {
			return nil, v.userErr
		}
		return &chanStream{ch: v.user}, nil
	}
	return nil, fmt.Errorf("no %s stream in test venue", kind)
}

func (v *testVenue) SubmitOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	v.mu.Lock()
	v.submitted = append(v.submitted, req)
	v.seq++
	trade := fmt.Sprintf("t%d", v.seq)
	v.mu.Unlock()

	v.user <- common.Fill{
		ClientID: req.ClientID,
		TradeID:  trade,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Qty:      req.Qty,
		Price:    req.Price,
		Time:     time.Now(),
	}
	return common.OrderResult{ExchangeOrderID: trade, Status: common.StatusFilled, ClientID: req.ClientID}, nil
}

func (v *testVenue) CancelOrder(ctx context.Context, symbol, exchangeOrderID string) error {
	return nil
}

func (v *testVenue) submittedOrders() []common.OrderRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]common.OrderRequest, len(v.submitted))
	copy(out, v.submitted)
	return out
}

// probe is a scripted strategy capturing everything it receives.
type probe struct {
	id       string
	symbols  []string
	interval string
	onBar    func(ctx context.Context, t strategy.Trader, bar common.Bar) error

	mu     sync.Mutex
	bars   []common.Bar
	fills  []common.Fill
	failed []common.StreamKind
}

func (p *probe) ID() string        { return p.id }
func (p *probe) Name() string      { return "Probe" }
func (p *probe) Symbols() []string { return p.symbols }
func (p *probe) Interval() string  { return p.interval }

func (p *probe) OnBar(ctx context.Context, t strategy.Trader, bar common.Bar) error {
	p.mu.Lock()
	p.bars = append(p.bars, bar)
	p.mu.Unlock()
	if p.onBar != nil {
		return p.onBar(ctx, t, bar)
	}
	return nil
}

func (p *probe) OnFill(ctx context.Context, t strategy.Trader, fill common.Fill) error {
	p.mu.Lock()
	p.fills = append(p.fills, fill)
	p.mu.Unlock()
	return nil
}

func (p *probe) OnStreamFailed(kind common.StreamKind, symbol, timeframe string, err error) {
	p.mu.Lock()
	p.failed = append(p.failed, kind)
	p.mu.Unlock()
}

func (p *probe) barCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.bars)
}

func (p *probe) fillCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fills)
}

func (p *probe) failCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.failed)
}

func testEngine(v *testVenue, global risk.Config) (*Engine, *ledger.Ledger) {
	led := ledger.New()
	bal := balance.NewManager(nil, "USDT", time.Minute)
	bal.SetPaperBalance(10000)
	eng := New(Config{
		Gateway: v,
		Opener:  v,
		Gate:    risk.NewGate(global, led),
		Ledger:  led,
		Balance: bal,
		Bus:     events.NewBus(),
		Prices:  cache.New(),
		Stream:  stream.Config{MaxRetries: 2, Backoff: stream.Backoff{Base: time.Millisecond, Max: time.Millisecond}},
	})
	return eng, led
}

func startEngine(t *testing.T, eng *Engine) (context.CancelFunc, <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { eng.Run(ctx); close(done) }()
	return cancel, done
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func bar(symbol string, close float64) common.Bar {
	return common.Bar{Symbol: symbol, Timeframe: "1m", Close: close, CloseTime: time.Now()}
}

func TestEngineOrderFlowThroughGateAndLedger(t *testing.T) {
	v := newTestVenue()
	eng, led := testEngine(v, risk.Config{
		"max_capital_per_order_ratio": risk.Scalar(0.5),
		"min_order_value":             risk.Scalar(1),
	})

	p := &probe{
		id: "s1", symbols: []string{"BTCUSDT"}, interval: "1m",
		onBar: func(ctx context.Context, tr strategy.Trader, b common.Bar) error {
			if tr.Position(b.Symbol) != 0 {
				return nil
			}
			dec, err := tr.RequestOrder(ctx, common.OrderRequest{
				Symbol: b.Symbol, Side: common.SideBuy, Type: common.OrderTypeMarket, Qty: 1, Price: b.Close,
			})
			if err != nil {
				return err
			}
			if !dec.Accepted {
				return fmt.Errorf("unexpected rejection: %v", dec.Reason)
			}
			return nil
		},
	}
	if err := eng.Register(p, RegistrationOptions{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cancel, done := startEngine(t, eng)
	defer func() { cancel(); <-done }()

	v.bars <- bar("BTCUSDT", 100)
	waitFor(t, "fill callback", func() bool { return p.fillCount() == 1 })

	if got := led.Position("s1", "BTCUSDT"); got != 1 {
		t.Fatalf("ledger position=%v, expected 1", got)
	}
	orders := v.submittedOrders()
	if len(orders) != 1 {
		t.Fatalf("submitted=%d, expected 1", len(orders))
	}
	if orders[0].ClientID == "" {
		t.Fatalf("order went out without a client id")
	}

	// Next bar: position is 1, strategy holds. No new orders.
	v.bars <- bar("BTCUSDT", 101)
	waitFor(t, "second bar", func() bool { return p.barCount() == 2 })
	if len(v.submittedOrders()) != 1 {
		t.Fatalf("holding strategy submitted again")
	}
}

func TestEngineRejectsBeforeVenue(t *testing.T) {
	v := newTestVenue()
	eng, _ := testEngine(v, risk.Config{
		"max_position_per_symbol": risk.Scalar(0.5),
	})

	var decisions []risk.Decision
	var decMu sync.Mutex
	p := &probe{
		id: "s1", symbols: []string{"BTCUSDT"}, interval: "1m",
		onBar: func(ctx context.Context, tr strategy.Trader, b common.Bar) error {
			dec, err := tr.RequestOrder(ctx, common.OrderRequest{
				Symbol: b.Symbol, Side: common.SideBuy, Type: common.OrderTypeLimit, Qty: 1, Price: b.Close,
			})
			if err != nil {
				return err
			}
			decMu.Lock()
			decisions = append(decisions, dec)
			decMu.Unlock()
			return nil
		},
	}
	if err := eng.Register(p, RegistrationOptions{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cancel, done := startEngine(t, eng)
	defer func() { cancel(); <-done }()

	v.bars <- bar("BTCUSDT", 100)
	waitFor(t, "decision", func() bool {
		decMu.Lock()
		defer decMu.Unlock()
		return len(decisions) == 1
	})

	decMu.Lock()
	dec := decisions[0]
	decMu.Unlock()
	if dec.Accepted {
		t.Fatalf("expected rejection")
	}
	if dec.Reason.Kind != risk.RejectPositionLimit {
		t.Fatalf("reason=%q, expected position_limit", dec.Reason.Kind)
	}
	if len(v.submittedOrders()) != 0 {
		t.Fatalf("rejected order reached the venue")
	}
}

func TestEngineStrategyOverridesLoosenGate(t *testing.T) {
	v := newTestVenue()
	eng, led := testEngine(v, risk.Config{
		"max_position_per_symbol": risk.Scalar(0.5),
	})

	p := &probe{
		id: "s1", symbols: []string{"BTCUSDT"}, interval: "1m",
		onBar: func(ctx context.Context, tr strategy.Trader, b common.Bar) error {
			if tr.Position(b.Symbol) != 0 {
				return nil
			}
			_, err := tr.RequestOrder(ctx, common.OrderRequest{
				Symbol: b.Symbol, Side: common.SideBuy, Type: common.OrderTypeLimit, Qty: 1, Price: b.Close,
			})
			return err
		},
	}
	err := eng.Register(p, RegistrationOptions{
		Overrides: risk.Config{
			"max_position_per_symbol": risk.PerSymbol(map[string]float64{"DEFAULT": 5}),
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	cancel, done := startEngine(t, eng)
	defer func() { cancel(); <-done }()

	v.bars <- bar("BTCUSDT", 100)
	waitFor(t, "fill", func() bool { return led.Position("s1", "BTCUSDT") == 1 })
}

func TestEngineStopStrategyOnStreamFailure(t *testing.T) {
	v := newTestVenue()
	v.barsErr = errors.New("exchange unreachable")
	eng, _ := testEngine(v, nil)

	p := &probe{id: "s1", symbols: []string{"BTCUSDT"}, interval: "1m"}
	if err := eng.Register(p, RegistrationOptions{OnStreamFailure: strategy.FailureStopStrategy}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cancel, done := startEngine(t, eng)
	defer func() { cancel(); <-done }()

	waitFor(t, "strategy stop", func() bool {
		for _, st := range eng.Strategies() {
			if st.ID == "s1" {
				return !st.Active
			}
		}
		return false
	})
	if p.failCount() != 1 {
		t.Fatalf("OnStreamFailed fired %d times, expected once", p.failCount())
	}

	// Engine itself keeps running; only the strategy stopped.
	select {
	case <-done:
		t.Fatalf("engine exited on stop_strategy policy")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngineLogOnlyKeepsStrategyActive(t *testing.T) {
	v := newTestVenue()
	v.barsErr = errors.New("exchange unreachable")
	eng, _ := testEngine(v, nil)

	p := &probe{id: "s1", symbols: []string{"BTCUSDT"}, interval: "1m"}
	if err := eng.Register(p, RegistrationOptions{OnStreamFailure: strategy.FailureLogOnly}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cancel, done := startEngine(t, eng)
	defer func() { cancel(); <-done }()

	waitFor(t, "failure callback", func() bool { return p.failCount() == 1 })
	for _, st := range eng.Strategies() {
		if st.ID == "s1" && !st.Active {
			t.Fatalf("log_only strategy was deactivated")
		}
	}
}

func TestEngineStopsOnUserStreamFailure(t *testing.T) {
	v := newTestVenue()
	v.userErr = fmt.Errorf("listen key: %w", common.ErrAuth)
	eng, _ := testEngine(v, nil)

	p := &probe{id: "s1", symbols: []string{"BTCUSDT"}, interval: "1m"}
	if err := eng.Register(p, RegistrationOptions{OnStreamFailure: strategy.FailureLogOnly}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cancel, done := startEngine(t, eng)
	defer cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("engine did not stop after losing the account stream")
	}
	if p.failCount() != 1 {
		t.Fatalf("OnStreamFailed fired %d times, expected once", p.failCount())
	}
	for _, st := range eng.Strategies() {
		if st.Active {
			t.Fatalf("strategy %s still active after engine stop", st.ID)
		}
	}
}

func TestEngineIgnoresUnknownAndMalformedFills(t *testing.T) {
	v := newTestVenue()
	eng, led := testEngine(v, nil)

	p := &probe{id: "s1", symbols: []string{"BTCUSDT"}, interval: "1m"}
	if err := eng.Register(p, RegistrationOptions{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cancel, done := startEngine(t, eng)
	defer func() { cancel(); <-done }()

	// A fill for an order we never submitted, and one with a bad qty.
	v.user <- common.Fill{ClientID: "ghost", TradeID: "t1", Symbol: "BTCUSDT", Side: common.SideBuy, Qty: 1, Price: 100}
	v.user <- common.Fill{ClientID: "ghost", TradeID: "t2", Symbol: "BTCUSDT", Side: common.SideBuy, Qty: -1, Price: 100}
	v.bars <- bar("BTCUSDT", 100)

	waitFor(t, "bar after fills", func() bool { return p.barCount() == 1 })
	if got := led.Position("s1", "BTCUSDT"); got != 0 {
		t.Fatalf("ledger moved on bogus fills: %v", got)
	}
	if len(led.Snapshot()) != 0 {
		t.Fatalf("ledger created records for bogus fills")
	}
}

func TestRegisterValidation(t *testing.T) {
	v := newTestVenue()
	eng, _ := testEngine(v, nil)

	if err := eng.Register(&probe{id: "", symbols: []string{"BTCUSDT"}, interval: "1m"}, RegistrationOptions{}); err == nil {
		t.Fatalf("expected error for empty id")
	}
	if err := eng.Register(&probe{id: "a", interval: "1m"}, RegistrationOptions{}); err == nil {
		t.Fatalf("expected error for missing symbols")
	}
	if err := eng.Register(&probe{id: "a", symbols: []string{"BTCUSDT"}}, RegistrationOptions{}); err == nil {
		t.Fatalf("expected error for missing interval")
	}
	if err := eng.Register(&probe{id: "a", symbols: []string{"BTCUSDT"}, interval: "1m"}, RegistrationOptions{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := eng.Register(&probe{id: "a", symbols: []string{"ETHUSDT"}, interval: "1m"}, RegistrationOptions{}); err == nil {
		t.Fatalf("expected error for duplicate id")
	}
}
