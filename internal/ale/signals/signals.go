// Package signals holds the telemetry snapshot the engine decides from.
//
// Signal ids are established during setup (rule authoring determines the
// vocabulary); after warm-up the maps stop growing, so per-tick operations
// do not allocate. Values are raw game/application telemetry (win rate,
// anticipation, feature progress, ...) plus derived metrics recomputed once
// per tick.
package signals

// Signals is a mutable id→value snapshot plus derived metrics. It is owned
// by exactly one goroutine at a time: the control thread builds one and ships
// it to the engine inside an UpdateSignals command, after which the engine
// owns it.
type Signals struct {
	values map[string]float32

	// last-seen values at the previous derived-metric recompute, used to
	// form deltas.
	derivedPrev map[string]float32

	momentum float32
}

// New returns an empty snapshot with room for a typical signal vocabulary.
func New() *Signals {
	return &Signals{
		values:      make(map[string]float32, 16),
		derivedPrev: make(map[string]float32, 16),
	}
}

// Set assigns a signal value, creating the id on first use.
func (s *Signals) Set(id string, v float32) {
	s.values[id] = v
}

// Get returns the value for id, or 0 for an unknown id.
func (s *Signals) Get(id string) float32 {
	return s.values[id]
}

// Has reports whether id has ever been set.
func (s *Signals) Has(id string) bool {
	_, ok := s.values[id]
	return ok
}

// Len returns the number of distinct signal ids present.
func (s *Signals) Len() int { return len(s.values) }

// Each calls fn for every signal, in map order. Used by recorders and the
// monitor to serialize a snapshot without exposing the backing map.
func (s *Signals) Each(fn func(id string, v float32)) {
	for id, v := range s.values {
		fn(id, v)
	}
}

// Momentum returns the most recently derived raw momentum. Smoothing is the
// stability engine's job, not ours.
func (s *Signals) Momentum() float32 { return s.momentum }

// Clear removes all values and derived state.
func (s *Signals) Clear() {
	for k := range s.values {
		delete(s.values, k)
	}
	for k := range s.derivedPrev {
		delete(s.derivedPrev, k)
	}
	s.momentum = 0
}

// Clone returns an independent copy. Used when crossing the control/engine
// boundary and for the engine's previous-tick snapshot at reset; the per-tick
// path uses CopyFrom instead.
func (s *Signals) Clone() *Signals {
	c := &Signals{
		values:      make(map[string]float32, len(s.values)),
		derivedPrev: make(map[string]float32, len(s.derivedPrev)),
		momentum:    s.momentum,
	}
	for k, v := range s.values {
		c.values[k] = v
	}
	for k, v := range s.derivedPrev {
		c.derivedPrev[k] = v
	}
	return c
}

// InheritDerived copies prev's derived-metric baseline and momentum into s.
// A snapshot that replaces another one calls this so the next momentum
// recompute still forms deltas against the last one.
func (s *Signals) InheritDerived(prev *Signals) {
	if prev == nil {
		return
	}
	for k, v := range prev.derivedPrev {
		s.derivedPrev[k] = v
	}
	s.momentum = prev.momentum
}

// CopyFrom overwrites s with src's values, reusing existing map storage so
// the steady-state tick path stays allocation-free.
func (s *Signals) CopyFrom(src *Signals) {
	for k := range s.values {
		if _, ok := src.values[k]; !ok {
			delete(s.values, k)
		}
	}
	for k, v := range src.values {
		s.values[k] = v
	}
	s.momentum = src.momentum
}

// UpdateDerived recomputes the named derived metric. Unknown names are
// ignored so content files can reference metrics this build does not compute.
func (s *Signals) UpdateDerived(name string) {
	switch name {
	case "momentum":
		s.updateMomentum()
	}
}

// updateMomentum derives momentum as the mean delta of all signals since the
// last recompute. A positive value means telemetry is trending up across the
// board; rules typically feed it through the stability smoothing ring before
// acting on it.
func (s *Signals) updateMomentum() {
	if len(s.values) == 0 {
		s.momentum = 0
		return
	}
	var sum float32
	for id, v := range s.values {
		sum += v - s.derivedPrev[id]
		s.derivedPrev[id] = v
	}
	s.momentum = sum / float32(len(s.values))
}
