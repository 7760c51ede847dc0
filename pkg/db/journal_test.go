package db

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	d, err := New(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOrderLifecycle(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	order := OrderRow{
		ID:         "o1",
		StrategyID: "s1",
		Symbol:     "BTCUSDT",
		Side:       "BUY",
		Type:       "MARKET",
		Price:      100,
		Qty:        0.5,
		Status:     "NEW",
	}
	if err := d.InsertOrder(ctx, order); err != nil {
		t.Fatalf("InsertOrder: %v", err)
	}
	if err := d.UpdateOrderStatus(ctx, "o1", "FILLED", 0.5); err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}

	orders, err := d.ListOrders(ctx, 10)
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("orders=%d, expected 1", len(orders))
	}
	if orders[0].Status != "FILLED" || orders[0].FilledQty != 0.5 {
		t.Fatalf("order after update: status=%s filled=%v", orders[0].Status, orders[0].FilledQty)
	}
}

func TestInsertFillIgnoresDuplicateTradeID(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	fill := FillRow{
		TradeID:    "t1",
		OrderID:    "o1",
		StrategyID: "s1",
		Symbol:     "BTCUSDT",
		Side:       "BUY",
		Price:      100,
		Qty:        0.5,
	}
	if err := d.InsertFill(ctx, fill); err != nil {
		t.Fatalf("InsertFill: %v", err)
	}
	if err := d.InsertFill(ctx, fill); err != nil {
		t.Fatalf("duplicate InsertFill: %v", err)
	}

	var n int
	if err := d.DB.QueryRow("SELECT COUNT(*) FROM fills").Scan(&n); err != nil {
		t.Fatalf("count fills: %v", err)
	}
	if n != 1 {
		t.Fatalf("fills=%d, expected 1", n)
	}
}

func TestUpsertExposure(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	e := ExposureRow{StrategyID: "s1", Symbol: "BTCUSDT", Qty: 1, AvgCost: 100, NominalExposure: 100}
	if err := d.UpsertExposure(ctx, e); err != nil {
		t.Fatalf("UpsertExposure: %v", err)
	}
	e.Qty = 0
	e.RealizedPnL = 42
	e.NominalExposure = 0
	if err := d.UpsertExposure(ctx, e); err != nil {
		t.Fatalf("second UpsertExposure: %v", err)
	}

	rows, err := d.ListExposures(ctx)
	if err != nil {
		t.Fatalf("ListExposures: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("exposures=%d, expected 1", len(rows))
	}
	if rows[0].Qty != 0 || rows[0].RealizedPnL != 42 {
		t.Fatalf("exposure after upsert: qty=%v pnl=%v", rows[0].Qty, rows[0].RealizedPnL)
	}
}
