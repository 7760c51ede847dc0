package risk

import (
	"fmt"
	"math"

	"quantcore/pkg/exchanges/common"
)

// RejectKind classifies why the gate refused an order.
type RejectKind string

const (
	RejectPositionLimit RejectKind = "position_limit"
	RejectCapitalRatio  RejectKind = "capital_ratio"
	RejectMinOrderValue RejectKind = "min_order_value"
)

// Rejection carries the violated limit and the value that tripped it.
type Rejection struct {
	Kind      RejectKind
	Limit     float64
	Attempted float64
}

func (r Rejection) String() string {
	switch r.Kind {
	case RejectPositionLimit:
		return fmt.Sprintf("position limit: %.8f > %.8f", r.Attempted, r.Limit)
	case RejectCapitalRatio:
		return fmt.Sprintf("capital limit: notional %.2f > %.2f", r.Attempted, r.Limit)
	case RejectMinOrderValue:
		return fmt.Sprintf("order value too small: %.2f < %.2f", r.Attempted, r.Limit)
	}
	return string(r.Kind)
}

// Decision is the gate verdict for one order request.
type Decision struct {
	Accepted bool
	Reason   *Rejection
}

func accept() Decision { return Decision{Accepted: true} }

func reject(kind RejectKind, limit, attempted float64) Decision {
	return Decision{Reason: &Rejection{Kind: kind, Limit: limit, Attempted: attempted}}
}

// PositionReader exposes the current signed position for a
// strategy/symbol pair.
type PositionReader interface {
	Position(strategyID, symbol string) float64
}

// Input is everything the gate needs to evaluate one order.
type Input struct {
	StrategyID       string
	Order            common.OrderRequest
	Overrides        Config // per-strategy risk overrides, may be nil
	AvailableBalance float64
}

// Gate evaluates orders against resolved risk limits. It never mutates
// positions; it only reads them.
type Gate struct {
	global    Config
	positions PositionReader
}

// NewGate builds a gate over the global risk block and a position
// source.
func NewGate(global Config, positions PositionReader) *Gate {
	return &Gate{global: global, positions: positions}
}

// Check runs the configured checks in a fixed order and stops at the
// first violation. A resolved limit <= 0 disables that check.
func (g *Gate) Check(in Input) Decision {
	order := in.Order
	notional := order.Qty * order.Price

	// 1. Per-symbol position limit: projected absolute position after
	// the order fully fills must stay within the limit.
	maxPos := Resolve(ParamMaxPositionPerSymbol, order.Symbol, in.Overrides, g.global, FallbackMaxPosition)
	if maxPos > 0 {
		current := g.positions.Position(in.StrategyID, order.Symbol)
		projected := math.Abs(current + order.Side.Sign()*order.Qty)
		if projected > maxPos {
			return reject(RejectPositionLimit, maxPos, projected)
		}
	}

	// 2. Capital per order: notional against a fraction of available
	// balance.
	ratio := Resolve(ParamMaxCapitalPerOrderRatio, order.Symbol, in.Overrides, g.global, FallbackMaxCapitalRatio)
	if ratio > 0 {
		limit := ratio * in.AvailableBalance
		if notional > limit {
			return reject(RejectCapitalRatio, limit, notional)
		}
	}

	// 3. Minimum order value.
	minValue := Resolve(ParamMinOrderValue, order.Symbol, in.Overrides, g.global, FallbackMinOrderValue)
	if minValue > 0 && notional < minValue {
		return reject(RejectMinOrderValue, minValue, notional)
	}

	return accept()
}
