package engine

import "quantcore/internal/stream"

// StrategyStatus is a reporting view of one registration.
type StrategyStatus struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Symbols  []string `json:"symbols"`
	Interval string   `json:"interval"`
	Active   bool     `json:"active"`
}

// StreamStatus is a reporting view of one supervised stream.
type StreamStatus struct {
	Kind      string `json:"kind"`
	Symbol    string `json:"symbol,omitempty"`
	Timeframe string `json:"timeframe,omitempty"`
	State     string `json:"state"`
	LastError string `json:"last_error,omitempty"`
}

// Strategies lists registrations in registration order.
func (e *Engine) Strategies() []StrategyStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]StrategyStatus, 0, len(e.regs))
	for _, reg := range e.regs {
		out = append(out, StrategyStatus{
			ID:       reg.strat.ID(),
			Name:     reg.strat.Name(),
			Symbols:  reg.strat.Symbols(),
			Interval: reg.strat.Interval(),
			Active:   reg.active,
		})
	}
	return out
}

// Streams reports every supervised stream and its state.
func (e *Engine) Streams() []StreamStatus {
	e.mu.Lock()
	supers := make([]*stream.Supervisor, len(e.supers))
	copy(supers, e.supers)
	e.mu.Unlock()

	out := make([]StreamStatus, 0, len(supers))
	for _, s := range supers {
		st := StreamStatus{
			Kind:      string(s.Kind()),
			Symbol:    s.Symbol(),
			Timeframe: s.Timeframe(),
			State:     s.State().String(),
		}
		if err := s.LastErr(); err != nil {
			st.LastError = err.Error()
		}
		out = append(out, st)
	}
	return out
}
