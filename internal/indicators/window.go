package indicators

// Window keeps the most recent capacity prices for one symbol. It is
// not safe for concurrent use; each strategy owns its windows and runs
// on the dispatch goroutine.
type Window struct {
	values []float64
	cap    int
}

// NewWindow creates a window holding at most capacity values.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{values: make([]float64, 0, capacity), cap: capacity}
}

// Push appends a price, evicting the oldest when full.
func (w *Window) Push(price float64) {
	if len(w.values) == w.cap {
		copy(w.values, w.values[1:])
		w.values[len(w.values)-1] = price
		return
	}
	w.values = append(w.values, price)
}

// Full reports whether the window holds capacity values.
func (w *Window) Full() bool { return len(w.values) == w.cap }

// Values returns the underlying slice, oldest first. Callers must not
// retain it across Push calls.
func (w *Window) Values() []float64 { return w.values }

// Len returns the number of values currently held.
func (w *Window) Len() int { return len(w.values) }
