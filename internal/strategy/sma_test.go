package strategy

import (
	"context"
	"testing"
	"time"

	"quantcore/internal/risk"
	"quantcore/pkg/exchanges/common"
)

type fakeTrader struct {
	positions map[string]float64
	orders    []common.OrderRequest
}

func (f *fakeTrader) RequestOrder(ctx context.Context, req common.OrderRequest) (risk.Decision, error) {
	f.orders = append(f.orders, req)
	f.positions[req.Symbol] += req.Side.Sign() * req.Qty
	return risk.Decision{Accepted: true}, nil
}

func (f *fakeTrader) Position(symbol string) float64   { return f.positions[symbol] }
func (f *fakeTrader) AvailableBalance() float64        { return 10000 }
func (f *fakeTrader) LastPrice(string) (float64, bool) { return 0, false }

func feedBars(t *testing.T, s *SMACross, tr *fakeTrader, closes []float64) {
	t.Helper()
	open := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bar := common.Bar{
			Symbol:    "BTCUSDT",
			Timeframe: "1m",
			OpenTime:  open.Add(time.Duration(i) * time.Minute),
			Close:     c,
		}
		if err := s.OnBar(context.Background(), tr, bar); err != nil {
			t.Fatalf("OnBar(%d): %v", i, err)
		}
	}
}

func TestSMACrossGoldenCrossBuysOnce(t *testing.T) {
	s, err := NewSMACross("s1", []string{"BTCUSDT"}, "1m", 2, 4, 1)
	if err != nil {
		t.Fatalf("NewSMACross: %v", err)
	}
	tr := &fakeTrader{positions: map[string]float64{}}

	// Downtrend long enough to prime the window, then a sharp reversal
	// that lifts the fast MA through the slow MA.
	feedBars(t, s, tr, []float64{110, 108, 106, 104, 102, 100, 120, 130, 130, 130})

	var buys, sells int
	for _, o := range tr.orders {
		switch o.Side {
		case common.SideBuy:
			buys++
		case common.SideSell:
			sells++
		}
	}
	if buys != 1 {
		t.Fatalf("buys=%d, expected exactly 1 (orders: %+v)", buys, tr.orders)
	}
	if sells != 0 {
		t.Fatalf("sells=%d, expected 0", sells)
	}
	if tr.orders[0].Type != common.OrderTypeMarket {
		t.Fatalf("order type=%s, expected MARKET", tr.orders[0].Type)
	}
}

func TestSMACrossDeathCrossClosesLong(t *testing.T) {
	s, err := NewSMACross("s1", []string{"BTCUSDT"}, "1m", 2, 4, 1)
	if err != nil {
		t.Fatalf("NewSMACross: %v", err)
	}
	tr := &fakeTrader{positions: map[string]float64{}}

	// Downtrend to prime, a rally that opens a long, then a slide that
	// closes it.
	feedBars(t, s, tr, []float64{110, 108, 106, 104, 120, 130, 130, 80, 60, 50, 50})

	if len(tr.orders) != 2 {
		t.Fatalf("orders=%d, expected 2 (%+v)", len(tr.orders), tr.orders)
	}
	if tr.orders[0].Side != common.SideBuy || tr.orders[1].Side != common.SideSell {
		t.Fatalf("order sides = %s,%s, expected BUY,SELL", tr.orders[0].Side, tr.orders[1].Side)
	}
	if tr.orders[1].Qty != 1 {
		t.Fatalf("close qty=%v, expected full position 1", tr.orders[1].Qty)
	}
	if got := tr.positions["BTCUSDT"]; got != 0 {
		t.Fatalf("position after close=%v, expected 0", got)
	}
}

func TestSMACrossRejectsBadPeriods(t *testing.T) {
	if _, err := NewSMACross("s1", []string{"BTCUSDT"}, "1m", 30, 10, 1); err == nil {
		t.Fatalf("expected error for fast >= slow")
	}
	if _, err := NewSMACross("s1", []string{"BTCUSDT"}, "1m", 2, 4, 0); err == nil {
		t.Fatalf("expected error for zero size")
	}
}
