package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"quantcore/internal/events"
)

// Monitor watches the bus for stream failures and risk rejections and
// forwards them to an alert sink.
type Monitor struct {
	Bus    *events.Bus
	Sink   AlertSink
	topics []events.Event
}

// NewMonitor builds a monitor for the default alert topics.
func NewMonitor(bus *events.Bus, sink AlertSink) *Monitor {
	return &Monitor{
		Bus:  bus,
		Sink: sink,
		topics: []events.Event{
			events.EventStreamFailed,
			events.EventRiskRejected,
			events.EventStrategyStopped,
		},
	}
}

// Start begins watching; it returns immediately and stops with ctx.
func (m *Monitor) Start(ctx context.Context) {
	if m.Bus == nil || m.Sink == nil {
		log.Println("monitor not fully configured; skipping")
		return
	}
	for _, topic := range m.topics {
		stream, unsub := m.Bus.Subscribe(topic, 50)
		go func(topic events.Event, stream <-chan any, unsub func()) {
			defer unsub()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-stream:
					if !ok {
						return
					}
					if err := m.Sink.Send(formatAlert(topic, msg)); err != nil {
						log.Printf("monitor: alert send failed: %v", err)
					}
				}
			}
		}(topic, stream, unsub)
	}
}

func formatAlert(topic events.Event, msg any) string {
	return fmt.Sprintf("[%s] %s: %v", time.Now().Format(time.RFC3339), topic, msg)
}
