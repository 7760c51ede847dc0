package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"quantcore/internal/events"
)

func TestLatencyHistogramStats(t *testing.T) {
	h := NewLatencyHistogram(10)
	for _, v := range []float64{5, 1, 3, 2, 4} {
		h.Record(v)
	}
	stats := h.Stats()
	if stats.Count != 5 {
		t.Fatalf("count = %d", stats.Count)
	}
	if stats.Min != 1 || stats.Max != 5 {
		t.Fatalf("min/max = %v/%v", stats.Min, stats.Max)
	}
	if stats.Avg != 3 {
		t.Fatalf("avg = %v", stats.Avg)
	}
	if stats.P50 != 3 {
		t.Fatalf("p50 = %v", stats.P50)
	}
}

func TestLatencyHistogramSlidingWindow(t *testing.T) {
	h := NewLatencyHistogram(3)
	for _, v := range []float64{10, 20, 30, 40} {
		h.Record(v)
	}
	stats := h.Stats()
	if stats.Count != 3 || stats.Min != 20 || stats.Max != 40 {
		t.Fatalf("stats = %+v, oldest sample should be evicted", stats)
	}
}

func TestSnapshotCounters(t *testing.T) {
	m := NewSystemMetrics()
	m.IncrementBars()
	m.IncrementBars()
	m.IncrementOrders()
	m.IncrementRejections()
	m.IncrementFills()

	snap := m.GetSnapshot()
	if snap.BarsProcessed != 2 {
		t.Fatalf("bars = %d", snap.BarsProcessed)
	}
	if snap.OrdersSubmitted != 1 || snap.OrdersRejected != 1 || snap.FillsApplied != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

type recordingSink struct {
	mu   sync.Mutex
	got  []string
	done chan struct{}
}

func (s *recordingSink) Send(message string) error {
	s.mu.Lock()
	s.got = append(s.got, message)
	s.mu.Unlock()
	select {
	case s.done <- struct{}{}:
	default:
	}
	return nil
}

func TestMonitorForwardsStreamFailures(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	sink := &recordingSink{done: make(chan struct{}, 1)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	NewMonitor(bus, sink).Start(ctx)

	bus.Publish(events.EventStreamFailed, "bars BTCUSDT")

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("alert never delivered")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.got) != 1 {
		t.Fatalf("alerts = %v", sink.got)
	}
}
