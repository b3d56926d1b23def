package attention

// Window is a fixed-capacity FIFO of recent scores.
// Not safe for concurrent use; the simulator only touches it inside a tick.
type Window struct {
	buf      []float64
	capacity int
	head     int // next write position
	count    int
}

// NewWindow creates an empty window holding at most capacity scores.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		buf:      make([]float64, capacity),
		capacity: capacity,
	}
}

// Push appends v, overwriting the oldest score when full.
func (w *Window) Push(v float64) {
	w.buf[w.head] = v
	w.head = (w.head + 1) % w.capacity
	if w.count < w.capacity {
		w.count++
	}
}

// Len returns the number of scores held.
func (w *Window) Len() int {
	return w.count
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return w.capacity
}

// Values returns the scores oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, w.count)
	start := (w.head - w.count + w.capacity) % w.capacity
	for i := range w.count {
		out[i] = w.buf[(start+i)%w.capacity]
	}
	return out
}

// Variance returns the population variance of the held scores.
func (w *Window) Variance() float64 {
	if w.count == 0 {
		return 0
	}
	// Order does not matter here, and until the first wrap the held
	// scores are exactly buf[:count].
	held := w.buf[:w.count]

	var sum float64
	for _, v := range held {
		sum += v
	}
	mean := sum / float64(w.count)

	var sq float64
	for _, v := range held {
		d := v - mean
		sq += d * d
	}
	return sq / float64(w.count)
}

// Stability maps variance onto [0,1]; fewer than two scores is fully stable.
func (w *Window) Stability(gain float64) float64 {
	if w.count < 2 {
		return 1
	}
	return clamp01(1 - gain*w.Variance())
}
