// Package ledger tracks per-strategy, per-symbol exposure and realized
// PnL under weighted-average-cost accounting. Longs and shorts are
// symmetric: a position flips sign when a fill crosses through flat.
package ledger

import (
	"math"
	"sync"
	"time"

	"quantcore/pkg/exchanges/common"
)

// qtyEpsilon absorbs float residue when a position returns to flat.
const qtyEpsilon = 1e-9

// Record is the ledger state for one strategy/symbol pair.
type Record struct {
	StrategyID      string
	Symbol          string
	Qty             float64 // signed: >0 long, <0 short
	AvgCost         float64
	RealizedPnL     float64
	NominalExposure float64 // |Qty| * last fill price
	UpdatedAt       time.Time
}

// Ledger is safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	records map[string]map[string]*Record // strategy -> symbol -> record
	totals  map[string]float64            // strategy -> sum of nominal exposures
}

func New() *Ledger {
	return &Ledger{
		records: make(map[string]map[string]*Record),
		totals:  make(map[string]float64),
	}
}

// RecordFill applies one execution and returns the updated record.
// Same-direction fills extend the position at a blended average cost;
// opposite-direction fills realize PnL on the closed quantity and, if
// the fill overshoots flat, open the residual at the fill price.
// Records are created lazily and never deleted, even at zero quantity.
func (l *Ledger) RecordFill(strategyID string, f common.Fill) Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.record(strategyID, f.Symbol)

	signed := f.Side.Sign() * f.Qty
	oldQty := rec.Qty

	if oldQty == 0 || sameSign(oldQty, signed) {
		oldAbs := math.Abs(oldQty)
		newAbs := oldAbs + f.Qty
		rec.AvgCost = (oldAbs*rec.AvgCost + f.Qty*f.Price) / newAbs
		rec.Qty = oldQty + signed
	} else {
		closed := math.Min(math.Abs(oldQty), f.Qty)
		rec.RealizedPnL += closed * (f.Price - rec.AvgCost) * sign(oldQty)
		rec.Qty = oldQty + signed
		if f.Qty-closed > qtyEpsilon {
			// Flipped through flat: residual opens at the fill price.
			rec.AvgCost = f.Price
		}
	}

	if math.Abs(rec.Qty) < qtyEpsilon {
		rec.Qty = 0
		rec.AvgCost = 0
	}

	rec.NominalExposure = math.Abs(rec.Qty) * f.Price
	rec.UpdatedAt = f.Time
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	l.retotal(rec.StrategyID)
	return *rec
}

// Position returns the signed quantity for a strategy/symbol pair, 0
// when no fills were recorded. Satisfies risk.PositionReader.
func (l *Ledger) Position(strategyID, symbol string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if rec, ok := l.records[strategyID][symbol]; ok {
		return rec.Qty
	}
	return 0
}

// Lookup returns a copy of one record.
func (l *Ledger) Lookup(strategyID, symbol string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if rec, ok := l.records[strategyID][symbol]; ok {
		return *rec, true
	}
	return Record{}, false
}

// TotalExposure returns the summed nominal exposure across all symbols
// of one strategy.
func (l *Ledger) TotalExposure(strategyID string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totals[strategyID]
}

// Snapshot returns copies of all records, for reporting.
func (l *Ledger) Snapshot() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, 0, len(l.records))
	for _, bySymbol := range l.records {
		for _, rec := range bySymbol {
			out = append(out, *rec)
		}
	}
	return out
}

func (l *Ledger) record(strategyID, symbol string) *Record {
	bySymbol, ok := l.records[strategyID]
	if !ok {
		bySymbol = make(map[string]*Record)
		l.records[strategyID] = bySymbol
	}
	rec, ok := bySymbol[symbol]
	if !ok {
		rec = &Record{StrategyID: strategyID, Symbol: symbol}
		bySymbol[symbol] = rec
	}
	return rec
}

func (l *Ledger) retotal(strategyID string) {
	total := 0.0
	for _, rec := range l.records[strategyID] {
		total += rec.NominalExposure
	}
	l.totals[strategyID] = total
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
