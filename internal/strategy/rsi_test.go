package strategy

import (
	"context"
	"testing"
	"time"

	"quantcore/pkg/exchanges/common"
)

func feedRSIBars(t *testing.T, s *RSIReversion, tr *fakeTrader, closes []float64) {
	t.Helper()
	open := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bar := common.Bar{
			Symbol:    "ETHUSDT",
			Timeframe: "1m",
			OpenTime:  open.Add(time.Duration(i) * time.Minute),
			Close:     c,
		}
		if err := s.OnBar(context.Background(), tr, bar); err != nil {
			t.Fatalf("OnBar(%d): %v", i, err)
		}
	}
}

func TestRSIReversionBuysOversoldSellsOverbought(t *testing.T) {
	s, err := NewRSIReversion("r1", []string{"ETHUSDT"}, "1m", 3, 30, 70, 2)
	if err != nil {
		t.Fatalf("NewRSIReversion: %v", err)
	}
	tr := &fakeTrader{positions: map[string]float64{}}

	// Three straight losses drive RSI to 0 (buy); three straight gains
	// push it to 100 (sell the full position).
	feedRSIBars(t, s, tr, []float64{100, 99, 98, 97, 98, 99, 100, 101})

	if len(tr.orders) != 2 {
		t.Fatalf("orders=%d, expected 2 (%+v)", len(tr.orders), tr.orders)
	}
	if tr.orders[0].Side != common.SideBuy || tr.orders[0].Qty != 2 {
		t.Fatalf("first order = %+v, expected BUY qty 2", tr.orders[0])
	}
	if tr.orders[1].Side != common.SideSell || tr.orders[1].Qty != 2 {
		t.Fatalf("second order = %+v, expected SELL qty 2", tr.orders[1])
	}
	if got := tr.positions["ETHUSDT"]; got != 0 {
		t.Fatalf("position after exit=%v, expected 0", got)
	}
}

func TestRSIReversionDoesNotPyramid(t *testing.T) {
	s, err := NewRSIReversion("r1", []string{"ETHUSDT"}, "1m", 3, 30, 70, 1)
	if err != nil {
		t.Fatalf("NewRSIReversion: %v", err)
	}
	tr := &fakeTrader{positions: map[string]float64{}}

	// RSI stays at 0 through the whole slide, but the long is opened
	// only once.
	feedRSIBars(t, s, tr, []float64{100, 99, 98, 97, 96, 95, 94})

	if len(tr.orders) != 1 {
		t.Fatalf("orders=%d, expected 1 (%+v)", len(tr.orders), tr.orders)
	}
}

func TestRSIReversionValidation(t *testing.T) {
	if _, err := NewRSIReversion("r1", []string{"ETHUSDT"}, "1m", 0, 30, 70, 1); err == nil {
		t.Fatalf("expected error for zero period")
	}
	if _, err := NewRSIReversion("r1", []string{"ETHUSDT"}, "1m", 3, 70, 30, 1); err == nil {
		t.Fatalf("expected error for inverted thresholds")
	}
}
