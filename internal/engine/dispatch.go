package engine

import (
	"context"
	"log"

	"quantcore/internal/events"
	"quantcore/internal/monitor"
	"quantcore/internal/strategy"
	"quantcore/internal/stream"
	"quantcore/pkg/db"
	"quantcore/pkg/exchanges/common"
)

func (e *Engine) dispatch(ctx context.Context, ev stream.Event) {
	switch msg := ev.Msg.(type) {
	case common.Bar:
		e.cfg.Prices.Set(msg.Symbol, msg.Close)
		if e.cfg.Metrics != nil {
			e.cfg.Metrics.IncrementBars()
		}
		e.cfg.Bus.Publish(events.EventBarClosed, msg)
		for _, reg := range e.activeFor(msg.Symbol, ev.Timeframe) {
			reg := reg
			e.safeCall(reg, "OnBar", func(t strategy.Trader) error {
				return reg.strat.OnBar(ctx, t, msg)
			})
		}
	case common.Trade:
		e.cfg.Prices.Set(msg.Symbol, msg.Price)
		for _, reg := range e.activeFor(msg.Symbol, "") {
			if reg.trades == nil {
				continue
			}
			reg := reg
			e.safeCall(reg, "OnTrade", func(t strategy.Trader) error {
				return reg.trades.OnTrade(ctx, t, msg)
			})
		}
	case common.Ticker:
		for _, reg := range e.activeFor(msg.Symbol, "") {
			if reg.ticker == nil {
				continue
			}
			reg := reg
			e.safeCall(reg, "OnTicker", func(t strategy.Trader) error {
				return reg.ticker.OnTicker(ctx, t, msg)
			})
		}
	case common.OrderUpdate:
		e.handleOrderUpdate(ctx, msg)
	case common.Fill:
		e.handleFill(ctx, msg)
	default:
		log.Printf("engine: dropping unknown message %T from %s stream", msg, ev.Kind)
	}
}

// activeFor returns active registrations covering symbol. A non-empty
// timeframe additionally requires a matching bar interval.
func (e *Engine) activeFor(symbol, timeframe string) []*registration {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*registration
	for _, reg := range e.regs {
		if !reg.active || !reg.symbols[symbol] {
			continue
		}
		if timeframe != "" && reg.strat.Interval() != timeframe {
			continue
		}
		out = append(out, reg)
	}
	return out
}

func (e *Engine) handleOrderUpdate(ctx context.Context, ou common.OrderUpdate) {
	e.mu.Lock()
	ref, known := e.orders[ou.ClientID]
	e.mu.Unlock()
	if !known {
		log.Printf("engine: order update for unknown order %q, dropping", ou.ClientID)
		return
	}

	if e.cfg.Journal != nil {
		if err := e.cfg.Journal.UpdateOrderStatus(ctx, ou.ClientID, string(ou.Status), ou.FilledQty); err != nil {
			log.Printf("engine: journal order update: %v", err)
		}
	}
	switch ou.Status {
	case common.StatusRejected, common.StatusExpired:
		e.cfg.Bus.Publish(events.EventOrderRejected, ou)
	default:
		e.cfg.Bus.Publish(events.EventOrderAccepted, ou)
	}

	e.mu.Lock()
	reg := e.byID[ref.strategyID]
	e.mu.Unlock()
	if reg == nil || !reg.active || reg.orderH == nil {
		return
	}
	e.safeCall(reg, "OnOrderUpdate", func(t strategy.Trader) error {
		return reg.orderH.OnOrderUpdate(ctx, t, ou)
	})
}

func (e *Engine) handleFill(ctx context.Context, f common.Fill) {
	// Malformed fills never reach the ledger.
	if f.Qty <= 0 || f.Price <= 0 {
		log.Printf("engine: malformed fill %+v, dropping", f)
		return
	}
	e.mu.Lock()
	ref, known := e.orders[f.ClientID]
	e.mu.Unlock()
	if !known {
		log.Printf("engine: fill for unknown order %q (%s %.8f @ %.2f), dropping",
			f.ClientID, f.Symbol, f.Qty, f.Price)
		return
	}

	rec := e.cfg.Ledger.RecordFill(ref.strategyID, f)
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.IncrementFills()
	}
	log.Printf("engine: fill %s %s %s %.8f @ %.2f -> qty=%.8f avg=%.2f pnl=%.2f",
		ref.strategyID, f.Side, f.Symbol, f.Qty, f.Price, rec.Qty, rec.AvgCost, rec.RealizedPnL)

	if e.cfg.Journal != nil {
		if err := e.cfg.Journal.InsertFill(ctx, db.FillRow{
			TradeID:    f.TradeID,
			OrderID:    f.ClientID,
			StrategyID: ref.strategyID,
			Symbol:     f.Symbol,
			Side:       string(f.Side),
			Price:      f.Price,
			Qty:        f.Qty,
		}); err != nil {
			log.Printf("engine: journal fill: %v", err)
		}
		if err := e.cfg.Journal.UpsertExposure(ctx, db.ExposureRow{
			StrategyID:      rec.StrategyID,
			Symbol:          rec.Symbol,
			Qty:             rec.Qty,
			AvgCost:         rec.AvgCost,
			RealizedPnL:     rec.RealizedPnL,
			NominalExposure: rec.NominalExposure,
		}); err != nil {
			log.Printf("engine: journal exposure: %v", err)
		}
	}
	e.cfg.Bus.Publish(events.EventOrderFilled, f)
	e.cfg.Bus.Publish(events.EventExposureChanged, rec)

	e.mu.Lock()
	reg := e.byID[ref.strategyID]
	e.mu.Unlock()
	if reg == nil || !reg.active || reg.fillH == nil {
		return
	}
	e.safeCall(reg, "OnFill", func(t strategy.Trader) error {
		return reg.fillH.OnFill(ctx, t, f)
	})
}

// handleStreamFailure applies each affected strategy's failure policy
// after its (optional) failure callback has run. The account stream is
// globally critical: losing it stops the whole engine.
func (e *Engine) handleStreamFailure(ctx context.Context, f streamFailure) {
	log.Printf("engine: stream %s %s/%s permanently failed: %v", f.kind, f.symbol, f.timeframe, f.err)
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.IncrementStreamFailures()
	}
	e.cfg.Bus.Publish(events.EventStreamFailed, f.err)

	if f.kind == common.StreamUser {
		e.stopEngine(f)
		return
	}

	stopAll := false
	for _, reg := range e.affectedBy(f) {
		e.notifyFailure(reg, f)
		switch reg.opts.OnStreamFailure {
		case strategy.FailureLogOnly:
			log.Printf("engine: %s continues without %s %s stream", reg.strat.ID(), f.kind, f.symbol)
		case strategy.FailureStopStrategy:
			e.deactivate(reg, f.err)
		case strategy.FailureStopEngine:
			e.deactivate(reg, f.err)
			stopAll = true
		}
	}
	if stopAll {
		e.stopEngine(f)
	}
}

// affectedBy returns registrations subscribed to the failed stream, in
// registration order.
func (e *Engine) affectedBy(f streamFailure) []*registration {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*registration
	for _, reg := range e.regs {
		if !reg.active || !reg.symbols[f.symbol] {
			continue
		}
		switch f.kind {
		case common.StreamBars:
			if reg.strat.Interval() != f.timeframe {
				continue
			}
		case common.StreamTrades:
			if reg.trades == nil {
				continue
			}
		case common.StreamTicker:
			if reg.ticker == nil {
				continue
			}
		}
		out = append(out, reg)
	}
	return out
}

// stopEngine shuts every strategy down in registration order, failure
// callbacks first, then cancels the run context.
func (e *Engine) stopEngine(f streamFailure) {
	e.mu.Lock()
	regs := make([]*registration, len(e.regs))
	copy(regs, e.regs)
	e.mu.Unlock()

	for _, reg := range regs {
		if !reg.active {
			continue
		}
		e.notifyFailure(reg, f)
		e.deactivate(reg, f.err)
	}
	log.Printf("engine: stopping after loss of %s %s/%s stream", f.kind, f.symbol, f.timeframe)
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) deactivate(reg *registration, cause error) {
	e.mu.Lock()
	was := reg.active
	reg.active = false
	e.mu.Unlock()
	if !was {
		return
	}
	log.Printf("engine: strategy %s stopped: %v", reg.strat.ID(), cause)
	e.cfg.Bus.Publish(events.EventStrategyStopped, reg.strat.ID())
}

// notifyFailure invokes the strategy's stream-failure callback once
// per failure, isolated from panics.
func (e *Engine) notifyFailure(reg *registration, f streamFailure) {
	if reg.failH == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: %s OnStreamFailed panicked: %v", reg.strat.ID(), r)
		}
	}()
	reg.failH.OnStreamFailed(f.kind, f.symbol, f.timeframe, f.err)
}

// safeCall runs one strategy callback with panic isolation. Errors are
// logged and do not affect other strategies.
func (e *Engine) safeCall(reg *registration, name string, fn func(strategy.Trader) error) {
	if e.cfg.Metrics != nil {
		defer monitor.NewTimer(e.cfg.Metrics.StrategyLatency).Stop()
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: %s %s panicked: %v", reg.strat.ID(), name, r)
			if e.cfg.Metrics != nil {
				e.cfg.Metrics.IncrementErrors()
			}
		}
	}()
	if err := fn(&trader{e: e, reg: reg}); err != nil {
		log.Printf("engine: %s %s: %v", reg.strat.ID(), name, err)
		if e.cfg.Metrics != nil {
			e.cfg.Metrics.IncrementErrors()
		}
	}
}
