package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quantcore/internal/api"
	"quantcore/internal/balance"
	"quantcore/internal/engine"
	"quantcore/internal/events"
	"quantcore/internal/ledger"
	"quantcore/internal/monitor"
	"quantcore/internal/risk"
	"quantcore/internal/strategy"
	"quantcore/internal/stream"
	"quantcore/pkg/cache"
	"quantcore/pkg/config"
	"quantcore/pkg/db"
	"quantcore/pkg/exchanges/common"
	marketbinance "quantcore/pkg/market/binance"
	marketmock "quantcore/pkg/market/mock"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	file, err := strategy.LoadFile(cfg.StrategiesPath)
	if err != nil {
		log.Fatalf("load strategies from %s: %v", cfg.StrategiesPath, err)
	}
	log.Printf("loaded %d strategies from %s", len(file.Strategies), cfg.StrategiesPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()
	defer bus.Close()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("open journal db: %v", err)
	}
	defer database.Close()

	led := ledger.New()
	prices := cache.New()
	metrics := monitor.NewSystemMetrics()
	monitor.NewMonitor(bus, monitor.LogSink{}).Start(ctx)

	buildVersion := os.Getenv("APP_VERSION")
	if buildVersion == "" {
		buildVersion = "v1.0-dev"
	}

	// Venue selection: mock by default, Binance when credentials are
	// provided and the mock feed is turned off.
	var (
		gateway common.Gateway
		opener  common.StreamOpener
		venue   = "mock"
	)
	balanceMgr := balance.NewManager(nil, cfg.QuoteAsset, cfg.BalanceSyncInterval)
	if cfg.UseMockFeed || cfg.BinanceAPIKey == "" {
		mv := marketmock.New(nil, cfg.QuoteAsset, cfg.PaperBalance)
		gateway = mv
		opener = mv
		balanceMgr.SetPaperBalance(cfg.PaperBalance)
		log.Printf("mock venue active, paper balance %.2f %s", cfg.PaperBalance, cfg.QuoteAsset)
	} else {
		venue = "binance-spot"
		if cfg.BinanceTestnet {
			venue = "binance-spot-testnet"
		}
		client := marketbinance.New(marketbinance.Config{
			APIKey:    cfg.BinanceAPIKey,
			APISecret: cfg.BinanceAPISecret,
			Testnet:   cfg.BinanceTestnet,
		})
		client.StartTimeSync(ctx)
		gateway = client
		opener = marketbinance.NewOpener(client, cfg.BinanceTestnet)
		balanceMgr = balance.NewManager(client, cfg.QuoteAsset, cfg.BalanceSyncInterval)
		go balanceMgr.Start(ctx)
		log.Printf("binance venue active (testnet=%v)", cfg.BinanceTestnet)
	}

	gate := risk.NewGate(file.RiskManagement, led)

	eng := engine.New(engine.Config{
		Gateway: gateway,
		Opener:  opener,
		Gate:    gate,
		Ledger:  led,
		Balance: balanceMgr,
		Bus:     bus,
		Journal: database,
		Metrics: metrics,
		Prices:  prices,
		Stream: stream.Config{
			MaxRetries: cfg.StreamMaxRetries,
			Backoff:    stream.Backoff{Base: cfg.StreamBackoffMin, Max: cfg.StreamBackoffMax},
		},
	})

	registered := 0
	for _, sc := range file.Strategies {
		if !sc.IsActive {
			log.Printf("strategy %s is inactive, skipping", sc.ID)
			continue
		}
		strat, err := strategy.Build(sc)
		if err != nil {
			log.Fatalf("build strategy %s: %v", sc.ID, err)
		}
		if err := eng.Register(strat, engine.OptionsFromConfig(sc)); err != nil {
			log.Fatalf("register strategy %s: %v", sc.ID, err)
		}
		registered++
	}
	if registered == 0 {
		log.Fatal("no active strategies configured")
	}
	log.Printf("registered %d strategies", registered)

	server := api.NewServer(bus, database, eng, led, balanceMgr, prices, metrics, api.SystemMeta{
		Venue:       venue,
		UseMockFeed: venue == "mock",
		Version:     buildVersion,
		StartedAt:   time.Now(),
	})
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("api server: %v", err)
		}
	}()
	log.Printf("api listening on :%s", cfg.Port)

	engDone := make(chan error, 1)
	go func() { engDone <- eng.Run(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Println("shutdown signal received")
		cancel()
		<-engDone
	case err := <-engDone:
		if err != nil && ctx.Err() == nil {
			log.Printf("engine stopped: %v", err)
		}
	}
	log.Println("shutdown complete")
}
