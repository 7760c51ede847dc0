package ledger

import (
	"math"
	"testing"

	"quantcore/pkg/exchanges/common"
)

func fill(side common.Side, qty, price float64) common.Fill {
	return common.Fill{Symbol: "BTCUSDT", Side: side, Qty: qty, Price: price}
}

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRecordFillAverageCost(t *testing.T) {
	l := New()

	rec := l.RecordFill("s1", fill(common.SideBuy, 1, 100))
	if !almost(rec.Qty, 1) || !almost(rec.AvgCost, 100) {
		t.Fatalf("after first buy: qty=%v avg=%v", rec.Qty, rec.AvgCost)
	}

	rec = l.RecordFill("s1", fill(common.SideBuy, 1, 110))
	if !almost(rec.Qty, 2) || !almost(rec.AvgCost, 105) {
		t.Fatalf("after second buy: qty=%v avg=%v, expected qty=2 avg=105", rec.Qty, rec.AvgCost)
	}
	if rec.RealizedPnL != 0 {
		t.Fatalf("extending fills must not realize PnL, got %v", rec.RealizedPnL)
	}
}

func TestRecordFillCloseRealizesPnL(t *testing.T) {
	l := New()
	l.RecordFill("s1", fill(common.SideBuy, 10, 100))

	rec := l.RecordFill("s1", fill(common.SideSell, 10, 110))
	if rec.Qty != 0 {
		t.Fatalf("qty=%v, expected flat", rec.Qty)
	}
	if !almost(rec.RealizedPnL, 100) {
		t.Fatalf("RealizedPnL=%v, expected 100", rec.RealizedPnL)
	}
	if rec.AvgCost != 0 {
		t.Fatalf("flat position kept avg cost %v", rec.AvgCost)
	}
	if rec.NominalExposure != 0 {
		t.Fatalf("flat position kept exposure %v", rec.NominalExposure)
	}

	// Record survives at zero, it is not deleted.
	if _, ok := l.Lookup("s1", "BTCUSDT"); !ok {
		t.Fatalf("record dropped after returning to flat")
	}
}

func TestRecordFillFlipThroughFlat(t *testing.T) {
	l := New()
	l.RecordFill("s1", fill(common.SideBuy, 5, 100))

	rec := l.RecordFill("s1", fill(common.SideSell, 8, 120))
	if !almost(rec.Qty, -3) {
		t.Fatalf("qty=%v, expected -3", rec.Qty)
	}
	if !almost(rec.RealizedPnL, 100) {
		t.Fatalf("RealizedPnL=%v, expected 100 (5 closed at +20)", rec.RealizedPnL)
	}
	if !almost(rec.AvgCost, 120) {
		t.Fatalf("AvgCost=%v, expected 120 for the residual short", rec.AvgCost)
	}
	if !almost(rec.NominalExposure, 360) {
		t.Fatalf("NominalExposure=%v, expected 360", rec.NominalExposure)
	}
}

func TestRecordFillShortSideSymmetry(t *testing.T) {
	l := New()

	l.RecordFill("s1", fill(common.SideSell, 2, 100))
	rec := l.RecordFill("s1", fill(common.SideSell, 2, 90))
	if !almost(rec.Qty, -4) || !almost(rec.AvgCost, 95) {
		t.Fatalf("short extend: qty=%v avg=%v, expected -4/95", rec.Qty, rec.AvgCost)
	}

	// Buying back below average cost is a profit for a short.
	rec = l.RecordFill("s1", fill(common.SideBuy, 4, 80))
	if rec.Qty != 0 {
		t.Fatalf("qty=%v, expected flat", rec.Qty)
	}
	if !almost(rec.RealizedPnL, 60) {
		t.Fatalf("RealizedPnL=%v, expected 60", rec.RealizedPnL)
	}
}

func TestTotalExposurePerStrategy(t *testing.T) {
	l := New()
	l.RecordFill("s1", fill(common.SideBuy, 2, 100))
	l.RecordFill("s1", common.Fill{Symbol: "ETHUSDT", Side: common.SideSell, Qty: 3, Price: 50})
	l.RecordFill("other", fill(common.SideBuy, 10, 100))

	if got := l.TotalExposure("s1"); !almost(got, 350) {
		t.Fatalf("TotalExposure(s1)=%v, expected 350", got)
	}
	if got := l.TotalExposure("other"); !almost(got, 1000) {
		t.Fatalf("TotalExposure(other)=%v, expected 1000", got)
	}
	if got := l.TotalExposure("unknown"); got != 0 {
		t.Fatalf("TotalExposure(unknown)=%v, expected 0", got)
	}
}

func TestPositionUnknownIsZero(t *testing.T) {
	l := New()
	if got := l.Position("s1", "BTCUSDT"); got != 0 {
		t.Fatalf("Position=%v, expected 0", got)
	}
}
