package strategy

import (
	"context"
	"fmt"
	"log"

	"quantcore/internal/indicators"
	"quantcore/pkg/exchanges/common"
)

// SMACross trades simple moving average crossovers on closed bars.
// A golden cross (fast MA crossing above slow MA) opens a long; a
// death cross closes it. Each symbol keeps its own price window.
type SMACross struct {
	id         string
	symbols    []string
	interval   string
	fastPeriod int
	slowPeriod int
	size       float64

	windows map[string]*smaWindow
}

type smaWindow struct {
	prices []float64
	fastMA float64
	slowMA float64
	primed bool
}

// NewSMACross creates the strategy with explicit periods.
func NewSMACross(id string, symbols []string, interval string, fast, slow int, size float64) (*SMACross, error) {
	if fast <= 0 || slow <= 0 || fast >= slow {
		return nil, fmt.Errorf("sma_cross %q: need 0 < fast < slow, got fast=%d slow=%d", id, fast, slow)
	}
	if size <= 0 {
		return nil, fmt.Errorf("sma_cross %q: size must be positive", id)
	}
	return &SMACross{
		id:         id,
		symbols:    symbols,
		interval:   interval,
		fastPeriod: fast,
		slowPeriod: slow,
		size:       size,
		windows:    make(map[string]*smaWindow),
	}, nil
}

// NewSMACrossFromConfig builds the strategy from a YAML entry.
func NewSMACrossFromConfig(cfg Config) (*SMACross, error) {
	return NewSMACross(
		cfg.ID,
		cfg.Symbols,
		cfg.Interval,
		intParam(cfg.Parameters, "fast_period", 10),
		intParam(cfg.Parameters, "slow_period", 30),
		floatParam(cfg.Parameters, "size", 0.001),
	)
}

func (s *SMACross) ID() string { return s.id }

func (s *SMACross) Name() string {
	return fmt.Sprintf("SMA_Cross_%d_%d", s.fastPeriod, s.slowPeriod)
}

func (s *SMACross) Symbols() []string { return s.symbols }
func (s *SMACross) Interval() string  { return s.interval }

func (s *SMACross) OnBar(ctx context.Context, t Trader, bar common.Bar) error {
	w, ok := s.windows[bar.Symbol]
	if !ok {
		w = &smaWindow{prices: make([]float64, 0, s.slowPeriod)}
		s.windows[bar.Symbol] = w
	}

	w.prices = append(w.prices, bar.Close)
	if len(w.prices) > s.slowPeriod {
		w.prices = w.prices[1:]
	}
	if len(w.prices) < s.slowPeriod {
		return nil
	}

	oldFast, oldSlow := w.fastMA, w.slowMA
	w.fastMA = indicators.SMA(w.prices, s.fastPeriod)
	w.slowMA = indicators.SMA(w.prices, s.slowPeriod)
	if !w.primed {
		// First full window: no previous MAs to cross against.
		w.primed = true
		return nil
	}

	position := t.Position(bar.Symbol)
	switch {
	case oldFast <= oldSlow && w.fastMA > w.slowMA && position <= 0:
		return s.submit(ctx, t, bar, common.SideBuy, s.size)
	case oldFast >= oldSlow && w.fastMA < w.slowMA && position > 0:
		return s.submit(ctx, t, bar, common.SideSell, position)
	}
	return nil
}

func (s *SMACross) submit(ctx context.Context, t Trader, bar common.Bar, side common.Side, qty float64) error {
	dec, err := t.RequestOrder(ctx, common.OrderRequest{
		Symbol: bar.Symbol,
		Side:   side,
		Type:   common.OrderTypeMarket,
		Qty:    qty,
		Price:  bar.Close,
	})
	if err != nil {
		return fmt.Errorf("submit %s %s: %w", side, bar.Symbol, err)
	}
	if !dec.Accepted {
		log.Printf("strategy %s: %s %s blocked: %s", s.id, side, bar.Symbol, dec.Reason)
	}
	return nil
}
