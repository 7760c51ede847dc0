package strategy

import (
	"context"
	"fmt"
	"log"

	"quantcore/internal/indicators"
	"quantcore/pkg/exchanges/common"
)

// RSIReversion buys oversold dips and exits once the symbol is
// overbought again. Long only; it never opens shorts.
type RSIReversion struct {
	id         string
	symbols    []string
	interval   string
	period     int
	oversold   float64
	overbought float64
	size       float64

	windows map[string]*indicators.Window
}

func NewRSIReversion(id string, symbols []string, interval string, period int, oversold, overbought, size float64) (*RSIReversion, error) {
	if period <= 0 {
		return nil, fmt.Errorf("rsi_reversion %q: period must be positive", id)
	}
	if oversold >= overbought {
		return nil, fmt.Errorf("rsi_reversion %q: need oversold < overbought, got %.1f >= %.1f", id, oversold, overbought)
	}
	if size <= 0 {
		return nil, fmt.Errorf("rsi_reversion %q: size must be positive", id)
	}
	return &RSIReversion{
		id:         id,
		symbols:    symbols,
		interval:   interval,
		period:     period,
		oversold:   oversold,
		overbought: overbought,
		size:       size,
		windows:    make(map[string]*indicators.Window),
	}, nil
}

// NewRSIReversionFromConfig builds the strategy from a YAML entry.
func NewRSIReversionFromConfig(cfg Config) (*RSIReversion, error) {
	return NewRSIReversion(
		cfg.ID,
		cfg.Symbols,
		cfg.Interval,
		intParam(cfg.Parameters, "period", 14),
		floatParam(cfg.Parameters, "oversold", 30),
		floatParam(cfg.Parameters, "overbought", 70),
		floatParam(cfg.Parameters, "size", 0.001),
	)
}

func (s *RSIReversion) ID() string { return s.id }

func (s *RSIReversion) Name() string {
	return fmt.Sprintf("RSI_Reversion_%d", s.period)
}

func (s *RSIReversion) Symbols() []string { return s.symbols }
func (s *RSIReversion) Interval() string  { return s.interval }

func (s *RSIReversion) OnBar(ctx context.Context, t Trader, bar common.Bar) error {
	w, ok := s.windows[bar.Symbol]
	if !ok {
		w = indicators.NewWindow(s.period + 1)
		s.windows[bar.Symbol] = w
	}
	w.Push(bar.Close)
	if !w.Full() {
		return nil
	}

	rsi := indicators.RSI(w.Values(), s.period)
	position := t.Position(bar.Symbol)
	switch {
	case rsi < s.oversold && position <= 0:
		return s.submit(ctx, t, bar, common.SideBuy, s.size)
	case rsi > s.overbought && position > 0:
		return s.submit(ctx, t, bar, common.SideSell, position)
	}
	return nil
}

func (s *RSIReversion) submit(ctx context.Context, t Trader, bar common.Bar, side common.Side, qty float64) error {
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
