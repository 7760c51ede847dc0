package engine

import (
	"context"
	"log"

	"github.com/google/uuid"

	"quantcore/internal/events"
	"quantcore/internal/monitor"
	"quantcore/internal/risk"
	"quantcore/pkg/db"
	"quantcore/pkg/exchanges/common"
)

// trader is the per-strategy view handed into every callback. It runs
// on the dispatch goroutine, so gate evaluation, submission and order
// bookkeeping happen before the next stream message is processed.
type trader struct {
	e   *Engine
	reg *registration
}

// RequestOrder evaluates the order against the risk gate and, when
// accepted, submits it to the venue. The decision is returned as-is on
// rejection; err reports venue/submission problems only.
func (t *trader) RequestOrder(ctx context.Context, req common.OrderRequest) (risk.Decision, error) {
	e := t.e
	if !t.active() {
		return risk.Decision{}, ErrStrategyStopped
	}
	if req.Price <= 0 {
		// Market orders are gated at the last seen price.
		if last, ok := e.cfg.Prices.Get(req.Symbol); ok {
			req.Price = last
		}
	}

	dec := e.cfg.Gate.Check(risk.Input{
		StrategyID:       t.reg.strat.ID(),
		Order:            req,
		Overrides:        t.reg.opts.Overrides,
		AvailableBalance: e.cfg.Balance.Available(),
	})
	if !dec.Accepted {
		log.Printf("engine: %s order %s %s %.8f rejected: %s",
			t.reg.strat.ID(), req.Side, req.Symbol, req.Qty, dec.Reason)
		if e.cfg.Metrics != nil {
			e.cfg.Metrics.IncrementRejections()
		}
		e.cfg.Bus.Publish(events.EventRiskRejected, *dec.Reason)
		return dec, nil
	}

	if req.ClientID == "" {
		req.ClientID = uuid.NewString()
	}
	e.mu.Lock()
	e.orders[req.ClientID] = orderRef{strategyID: t.reg.strat.ID(), qty: req.Qty}
	e.mu.Unlock()

	if e.cfg.Journal != nil {
		if err := e.cfg.Journal.InsertOrder(ctx, db.OrderRow{
			ID:         req.ClientID,
			StrategyID: t.reg.strat.ID(),
			Symbol:     req.Symbol,
			Side:       string(req.Side),
			Type:       string(req.Type),
			Price:      req.Price,
			Qty:        req.Qty,
			Status:     string(common.StatusNew),
		}); err != nil {
			log.Printf("engine: journal order: %v", err)
		}
	}

	var timer *monitor.Timer
	if e.cfg.Metrics != nil {
		timer = monitor.NewTimer(e.cfg.Metrics.OrderLatency)
	}
	res, err := e.cfg.Gateway.SubmitOrder(ctx, req)
	if timer != nil {
		timer.Stop()
	}
	if err != nil {
		e.mu.Lock()
		delete(e.orders, req.ClientID)
		e.mu.Unlock()
		if e.cfg.Journal != nil {
			if jerr := e.cfg.Journal.UpdateOrderStatus(ctx, req.ClientID, string(common.StatusRejected), 0); jerr != nil {
				log.Printf("engine: journal order status: %v", jerr)
			}
		}
		e.cfg.Bus.Publish(events.EventOrderRejected, req)
		return dec, err
	}

	if e.cfg.Journal != nil && res.ExchangeOrderID != "" {
		if _, jerr := e.cfg.Journal.DB.ExecContext(ctx,
			"UPDATE orders SET exchange_order_id = ? WHERE id = ?",
			res.ExchangeOrderID, req.ClientID); jerr != nil {
			log.Printf("engine: journal exchange id: %v", jerr)
		}
	}
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.IncrementOrders()
	}
	e.cfg.Bus.Publish(events.EventOrderSubmitted, req)
	log.Printf("engine: %s submitted %s %s %.8f @ %.2f (%s)",
		t.reg.strat.ID(), req.Side, req.Symbol, req.Qty, req.Price, req.ClientID)
	return dec, nil
}

// Position reads this strategy's signed position.
func (t *trader) Position(symbol string) float64 {
	return t.e.cfg.Ledger.Position(t.reg.strat.ID(), symbol)
}

// AvailableBalance reads the cached free quote balance.
func (t *trader) AvailableBalance() float64 {
	return t.e.cfg.Balance.Available()
}

// LastPrice reads the last cached price for a symbol.
func (t *trader) LastPrice(symbol string) (float64, bool) {
	return t.e.cfg.Prices.Get(symbol)
}

func (t *trader) active() bool {
	t.e.mu.Lock()
	defer t.e.mu.Unlock()
	return t.reg.active
}
