// Package balance keeps a cached view of the quote-asset balance so
// the risk gate never blocks on a REST call.
package balance

import (
	"context"
	"log"
	"sync"
	"time"

	"quantcore/pkg/exchanges/common"
)

// Manager periodically refreshes the free balance of one quote asset
// (e.g. USDT) from the venue. With no client configured it serves a
// fixed paper balance.
type Manager struct {
	client       common.AccountClient
	quoteAsset   string
	syncInterval time.Duration

	mu        sync.RWMutex
	available float64
	locked    float64
	lastSync  time.Time
}

// NewManager builds a manager for one quote asset.
func NewManager(client common.AccountClient, quoteAsset string, syncInterval time.Duration) *Manager {
	if syncInterval <= 0 {
		syncInterval = time.Minute
	}
	return &Manager{client: client, quoteAsset: quoteAsset, syncInterval: syncInterval}
}

// SetPaperBalance seeds a fixed balance for runs without credentials.
func (m *Manager) SetPaperBalance(amount float64) {
	m.mu.Lock()
	m.available = amount
	m.locked = 0
	m.lastSync = time.Now()
	m.mu.Unlock()
	log.Printf("balance: paper balance set to %.2f %s", amount, m.quoteAsset)
}

// Start performs an initial sync and keeps refreshing until ctx ends.
func (m *Manager) Start(ctx context.Context) {
	if err := m.Sync(ctx); err != nil {
		log.Printf("balance: initial sync failed: %v", err)
	}
	go func() {
		ticker := time.NewTicker(m.syncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Sync(ctx); err != nil {
					log.Printf("balance: sync failed: %v", err)
				}
			}
		}
	}()
}

// Sync fetches balances once and updates the cache.
func (m *Manager) Sync(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	balances, err := m.client.FetchBalances(ctx)
	if err != nil {
		return err
	}
	for _, b := range balances {
		if b.Asset != m.quoteAsset {
			continue
		}
		m.mu.Lock()
		m.available = b.Free
		m.locked = b.Locked
		m.lastSync = time.Now()
		m.mu.Unlock()
		return nil
	}
	// Asset absent means a zero balance, not an error.
	m.mu.Lock()
	m.available = 0
	m.locked = 0
	m.lastSync = time.Now()
	m.mu.Unlock()
	return nil
}

// Available returns the cached free balance.
func (m *Manager) Available() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.available
}

// Snapshot returns the cached view for reporting.
func (m *Manager) Snapshot() (available, locked float64, lastSync time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.available, m.locked, m.lastSync
}

// QuoteAsset returns the asset this manager tracks.
func (m *Manager) QuoteAsset() string { return m.quoteAsset }
