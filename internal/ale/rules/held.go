package rules

// HeldStates is the cross-tick scratch for sustained conditions: for each
// tracked condition key it remembers when the wrapped condition first became
// true. It is owned by the engine thread and reset on engine reset or
// context switch.
type HeldStates struct {
	since map[string]float64 // key → engine time the condition became true
}

// NewHeldStates returns an empty scratch.
func NewHeldStates() *HeldStates {
	return &HeldStates{since: make(map[string]float64, 8)}
}

// track updates the timer for key given the wrapped condition's current
// truth and reports whether it has now held for sustainMs.
func (h *HeldStates) track(key string, active bool, sustainMs, nowMs float64) bool {
	if !active {
		delete(h.since, key)
		return false
	}
	since, ok := h.since[key]
	if !ok {
		h.since[key] = nowMs
		return sustainMs <= 0
	}
	return nowMs-since >= sustainMs
}

// Clear drops all timers.
func (h *HeldStates) Clear() {
	for k := range h.since {
		delete(h.since, k)
	}
}

// Len returns the number of active timers. Exposed for tests.
func (h *HeldStates) Len() int { return len(h.since) }
