package events

// Event enumerates high-level topics inside the coordinator.
type Event string

const (
	EventBarClosed       Event = "bar.closed"
	EventOrderSubmitted  Event = "order.submitted"
	EventOrderAccepted   Event = "order.accepted"
	EventOrderRejected   Event = "order.rejected"
	EventOrderFilled     Event = "order.filled"
	EventRiskRejected    Event = "risk.rejected"
	EventStreamFailed    Event = "stream.failed"
	EventStrategyStopped Event = "strategy.stopped"
	EventEngineShutdown  Event = "engine.shutdown"
	EventExposureChanged Event = "exposure.changed"
)
