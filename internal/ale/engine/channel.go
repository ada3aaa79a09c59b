package engine

import (
	"github.com/banshee-data/adaptive.audio/internal/monitoring"
	"github.com/banshee-data/adaptive.audio/internal/spsc"
)

// Queue capacities. Commands arrive in bursts from game logic; the state
// queue only needs enough depth for a UI that occasionally falls behind.
const (
	commandQueueCap = 256
	stateQueueCap   = 64
)

// Channel is the pair of SPSC queues connecting the control thread to the
// engine thread: commands flow control→engine, state snapshots engine→
// control. Both directions are non-blocking; a full queue drops, an empty
// queue returns nothing.
type Channel struct {
	commands *spsc.Queue[Command]
	states   *spsc.Queue[*State]
	counters *monitoring.Counters
}

// NewChannel creates the queue pair. counters may be nil, in which case the
// process-wide default set is used.
func NewChannel(counters *monitoring.Counters) *Channel {
	if counters == nil {
		counters = monitoring.Default
	}
	return &Channel{
		commands: spsc.New[Command](commandQueueCap),
		states:   spsc.New[*State](stateQueueCap),
		counters: counters,
	}
}

// Send enqueues a command for the engine. Returns false when the queue is
// full and the command was dropped. Control thread only.
func (c *Channel) Send(cmd Command) bool {
	if !c.commands.Push(cmd) {
		c.counters.CommandsDropped.Add(1)
		return false
	}
	return true
}

// PollState returns the oldest unread snapshot, or nil when none is
// pending. Control thread only.
func (c *Channel) PollState() *State {
	s, ok := c.states.Pop()
	if !ok {
		return nil
	}
	return s
}

// DrainState returns the newest pending snapshot, discarding older ones.
// UIs that only render the latest state use this instead of PollState.
func (c *Channel) DrainState() *State {
	var latest *State
	for {
		s, ok := c.states.Pop()
		if !ok {
			return latest
		}
		latest = s
	}
}

// popCommand is the engine-side dequeue.
func (c *Channel) popCommand() (Command, bool) {
	return c.commands.Pop()
}

// publishState is the engine-side snapshot push; a full queue counts the
// drop and moves on.
func (c *Channel) publishState(s *State) {
	if !c.states.Push(s) {
		c.counters.SnapshotsDropped.Add(1)
	}
}
