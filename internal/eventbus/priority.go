package eventbus

// Priority controls dispatch order within a single emit: higher values run
// first. Mirrors the five-plus-monitor scale the original event bus used.
type Priority int

const (
	PriorityLowest  Priority = 0
	PriorityLow     Priority = 25
	PriorityNormal  Priority = 50
	PriorityHigh    Priority = 75
	PriorityHighest Priority = 100
	// PriorityMonitor is the largest value on the scale, so a monitor
	// handler runs first, before every other handler of the same list —
	// intended for pure observers (metrics, tracing) that see each event
	// before functional handlers act on it.
	PriorityMonitor Priority = 200
)
