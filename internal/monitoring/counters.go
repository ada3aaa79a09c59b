package monitoring

import "sync/atomic"

// Counters tracks queue-pressure events on the engine's lock-free channels.
// Both sides of the channel increment independently owned counters, so plain
// atomic adds are sufficient; no cross-field consistency is implied.
type Counters struct {
	// CommandsDropped counts control-side commands lost to a full command
	// queue. Incremented by the control thread.
	CommandsDropped atomic.Uint64

	// SnapshotsDropped counts per-tick state snapshots lost to a full state
	// queue. Incremented by the engine thread.
	SnapshotsDropped atomic.Uint64

	// Ticks counts engine ticks since start. Incremented by the engine thread.
	Ticks atomic.Uint64
}

// Default is the process-wide counter set. Components take a *Counters so
// tests can isolate themselves, but production wiring uses Default.
var Default = &Counters{}
