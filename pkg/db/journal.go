package db

import (
	"context"
	"fmt"
	"time"
)

// OrderRow mirrors one row of the orders table.
type OrderRow struct {
	ID              string
	StrategyID      string
	ExchangeOrderID string
	Symbol          string
	Side            string
	Type            string
	Price           float64
	Qty             float64
	FilledQty       float64
	Status          string
	CreatedAt       time.Time
}

// FillRow mirrors one row of the fills table.
type FillRow struct {
	TradeID    string
	OrderID    string
	StrategyID string
	Symbol     string
	Side       string
	Price      float64
	Qty        float64
	CreatedAt  time.Time
}

// ExposureRow mirrors one row of the exposures table.
type ExposureRow struct {
	StrategyID      string
	Symbol          string
	Qty             float64
	AvgCost         float64
	RealizedPnL     float64
	NominalExposure float64
	UpdatedAt       time.Time
}

// InsertOrder journals a newly submitted order.
func (d *Database) InsertOrder(ctx context.Context, o OrderRow) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO orders (id, strategy_id, exchange_order_id, symbol, side, type, price, qty, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.StrategyID, o.ExchangeOrderID, o.Symbol, o.Side, o.Type, o.Price, o.Qty, o.Status)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", o.ID, err)
	}
	return nil
}

// UpdateOrderStatus records a lifecycle transition.
func (d *Database) UpdateOrderStatus(ctx context.Context, orderID, status string, filledQty float64) error {
	_, err := d.DB.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, filled_qty = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, status, filledQty, orderID)
	if err != nil {
		return fmt.Errorf("update order %s: %w", orderID, err)
	}
	return nil
}

// InsertFill journals one execution. Replays of the same trade id are
// ignored so reconnect-driven duplicates stay out of the journal.
func (d *Database) InsertFill(ctx context.Context, f FillRow) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO fills (trade_id, order_id, strategy_id, symbol, side, price, qty)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(trade_id) DO NOTHING
	`, f.TradeID, f.OrderID, f.StrategyID, f.Symbol, f.Side, f.Price, f.Qty)
	if err != nil {
		return fmt.Errorf("insert fill %s: %w", f.TradeID, err)
	}
	return nil
}

// UpsertExposure mirrors the in-memory ledger record to disk.
func (d *Database) UpsertExposure(ctx context.Context, e ExposureRow) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO exposures (strategy_id, symbol, qty, avg_cost, realized_pnl, nominal_exposure, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(strategy_id, symbol) DO UPDATE SET
			qty = excluded.qty,
			avg_cost = excluded.avg_cost,
			realized_pnl = excluded.realized_pnl,
			nominal_exposure = excluded.nominal_exposure,
			updated_at = CURRENT_TIMESTAMP
	`, e.StrategyID, e.Symbol, e.Qty, e.AvgCost, e.RealizedPnL, e.NominalExposure)
	if err != nil {
		return fmt.Errorf("upsert exposure %s/%s: %w", e.StrategyID, e.Symbol, err)
	}
	return nil
}

// ListOrders returns the most recent orders, newest first.
func (d *Database) ListOrders(ctx context.Context, limit int) ([]OrderRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, strategy_id, COALESCE(exchange_order_id, ''), symbol, side, type,
		       price, qty, filled_qty, status, created_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []OrderRow
	for rows.Next() {
		var o OrderRow
		if err := rows.Scan(&o.ID, &o.StrategyID, &o.ExchangeOrderID, &o.Symbol, &o.Side,
			&o.Type, &o.Price, &o.Qty, &o.FilledQty, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListExposures returns every persisted exposure row.
func (d *Database) ListExposures(ctx context.Context) ([]ExposureRow, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT strategy_id, symbol, qty, avg_cost, realized_pnl, nominal_exposure, updated_at
		FROM exposures
		ORDER BY strategy_id, symbol
	`)
	if err != nil {
		return nil, fmt.Errorf("query exposures: %w", err)
	}
	defer rows.Close()

	var out []ExposureRow
	for rows.Next() {
		var e ExposureRow
		if err := rows.Scan(&e.StrategyID, &e.Symbol, &e.Qty, &e.AvgCost,
			&e.RealizedPnL, &e.NominalExposure, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan exposure: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
