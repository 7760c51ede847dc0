package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"venue":         s.Meta.Venue,
		"use_mock_feed": s.Meta.UseMockFeed,
		"version":       s.Meta.Version,
		"started_at":    s.Meta.StartedAt,
		"uptime":        time.Since(s.Meta.StartedAt).String(),
	})
}

func (s *Server) getMetrics(c *gin.Context) {
	if s.Metrics == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

func (s *Server) getStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": s.Engine.Strategies()})
}

func (s *Server) getStreams(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"streams": s.Engine.Streams()})
}

type positionView struct {
	StrategyID      string    `json:"strategy_id"`
	Symbol          string    `json:"symbol"`
	Qty             float64   `json:"qty"`
	AvgCost         float64   `json:"avg_cost"`
	RealizedPnL     float64   `json:"realized_pnl"`
	NominalExposure float64   `json:"nominal_exposure"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (s *Server) getPositions(c *gin.Context) {
	records := s.Ledger.Snapshot()
	out := make([]positionView, 0, len(records))
	for _, r := range records {
		out = append(out, positionView{
			StrategyID:      r.StrategyID,
			Symbol:          r.Symbol,
			Qty:             r.Qty,
			AvgCost:         r.AvgCost,
			RealizedPnL:     r.RealizedPnL,
			NominalExposure: r.NominalExposure,
			UpdatedAt:       r.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"positions": out})
}

func (s *Server) getOrders(c *gin.Context) {
	if s.DB == nil {
		c.JSON(http.StatusOK, gin.H{"orders": []any{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	rows, err := s.DB.ListOrders(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	type orderView struct {
		ID              string    `json:"id"`
		StrategyID      string    `json:"strategy_id"`
		ExchangeOrderID string    `json:"exchange_order_id,omitempty"`
		Symbol          string    `json:"symbol"`
		Side            string    `json:"side"`
		Type            string    `json:"type"`
		Price           float64   `json:"price"`
		Qty             float64   `json:"qty"`
		FilledQty       float64   `json:"filled_qty"`
		Status          string    `json:"status"`
		CreatedAt       time.Time `json:"created_at"`
	}
	out := make([]orderView, 0, len(rows))
	for _, r := range rows {
		out = append(out, orderView(r))
	}
	c.JSON(http.StatusOK, gin.H{"orders": out})
}

func (s *Server) getBalance(c *gin.Context) {
	available, locked, lastSync := s.Balance.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"asset":     s.Balance.QuoteAsset(),
		"available": available,
		"locked":    locked,
		"last_sync": lastSync,
	})
}

func (s *Server) getPrices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"prices": s.Prices.All()})
}
