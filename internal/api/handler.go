// Package api exposes a read-only HTTP surface over the running
// coordinator: strategy and stream status, positions, journaled
// orders, balances and cached prices, plus a websocket event feed.
package api

import (
	"net/http"
	"time"

	"quantcore/internal/balance"
	"quantcore/internal/engine"
	"quantcore/internal/events"
	"quantcore/internal/ledger"
	"quantcore/internal/monitor"
	"quantcore/pkg/cache"
	"quantcore/pkg/db"

	"github.com/gin-gonic/gin"
)

// Server wires HTTP endpoints around the engine and its stores.
type Server struct {
	Router  *gin.Engine
	Bus     *events.Bus
	DB      *db.Database
	Engine  *engine.Engine
	Ledger  *ledger.Ledger
	Balance *balance.Manager
	Prices  *cache.PriceCache
	Metrics *monitor.SystemMetrics
	Meta    SystemMeta
}

// SystemMeta describes runtime facts reported by /api/system/status.
type SystemMeta struct {
	Venue       string
	UseMockFeed bool
	Version     string
	StartedAt   time.Time
}

func NewServer(bus *events.Bus, database *db.Database, eng *engine.Engine, led *ledger.Ledger, bal *balance.Manager, prices *cache.PriceCache, metrics *monitor.SystemMetrics, meta SystemMeta) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:  r,
		Bus:     bus,
		DB:      database,
		Engine:  eng,
		Ledger:  led,
		Balance: bal,
		Prices:  prices,
		Metrics: metrics,
		Meta:    meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/system/status", s.getSystemStatus)
		api.GET("/metrics", s.getMetrics)
		api.GET("/strategies", s.getStrategies)
		api.GET("/streams", s.getStreams)
		api.GET("/positions", s.getPositions)
		api.GET("/orders", s.getOrders)
		api.GET("/balance", s.getBalance)
		api.GET("/prices", s.getPrices)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
