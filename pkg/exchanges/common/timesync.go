package common

import (
	"context"
	"log"
	"sync"
	"time"
)

// TimeSync tracks the offset between local and exchange clocks so that
// signed requests carry timestamps the venue will accept.
type TimeSync struct {
	fetch    func(ctx context.Context) (int64, error)
	interval time.Duration

	mu       sync.RWMutex
	offset   int64 // ms, server - local
	lastSync time.Time
}

// NewTimeSync creates a sync manager around a server-time fetcher
// returning milliseconds since epoch.
func NewTimeSync(fetch func(ctx context.Context) (int64, error)) *TimeSync {
	return &TimeSync{fetch: fetch, interval: 30 * time.Minute}
}

// Start performs an initial sync and then resyncs periodically until
// ctx is cancelled.
func (ts *TimeSync) Start(ctx context.Context) {
	if err := ts.Sync(ctx); err != nil {
		log.Printf("timesync: initial sync failed: %v", err)
	}
	go func() {
		ticker := time.NewTicker(ts.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ts.Sync(ctx); err != nil {
					log.Printf("timesync: resync failed: %v", err)
				}
			}
		}
	}()
}

// Sync fetches server time once and updates the stored offset. Network
// latency is assumed symmetric.
func (ts *TimeSync) Sync(ctx context.Context) error {
	before := time.Now().UnixMilli()
	server, err := ts.fetch(ctx)
	if err != nil {
		return err
	}
	after := time.Now().UnixMilli()
	local := before + (after-before)/2

	ts.mu.Lock()
	ts.offset = server - local
	ts.lastSync = time.Now()
	ts.mu.Unlock()
	return nil
}

// Now returns the current time in ms adjusted for server offset.
func (ts *TimeSync) Now() int64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return time.Now().UnixMilli() + ts.offset
}

// Offset returns the last measured offset in ms.
func (ts *TimeSync) Offset() int64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.offset
}
