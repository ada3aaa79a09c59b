package transition

// SyncMode is the musical grid a transition waits for before starting.
type SyncMode uint8

const (
	// Immediate starts the transition on the next tick.
	Immediate SyncMode = iota
	// Beat waits for the next integer beat boundary.
	Beat
	// Bar waits for the next bar boundary.
	Bar
	// Phrase waits for the next 4-bar boundary.
	Phrase
	// NextDownbeat waits for beat 1 of the next bar, with a small tolerance
	// so a transition requested exactly on a downbeat starts at once.
	NextDownbeat
	// Custom waits for the next boundary of the profile's custom grid.
	Custom
)

var syncNames = map[SyncMode]string{
	Immediate:    "immediate",
	Beat:         "beat",
	Bar:          "bar",
	Phrase:       "phrase",
	NextDownbeat: "next_downbeat",
	Custom:       "custom",
}

func (m SyncMode) String() string {
	if n, ok := syncNames[m]; ok {
		return n
	}
	return "immediate"
}

// ParseSyncMode resolves an authored sync mode name; unknown names fall back
// to immediate.
func ParseSyncMode(name string) SyncMode {
	for m, n := range syncNames {
		if n == name {
			return m
		}
	}
	return Immediate
}

// downbeatToleranceBeats is how close to a downbeat "already on the
// downbeat" is, in beats.
const downbeatToleranceBeats = 0.01

// CalculateSyncDelay returns how long, in milliseconds, a transition must
// wait from the current musical position before starting.
//
// beatPos is the free-running fractional beat position (never wraps);
// boundaries are computed with modulo. Zero or negative beat duration or bar
// length would divide audio-rate math by zero downstream, so those return 0
// rather than propagate a NaN. The result is capped at maxWaitMs when
// maxWaitMs is positive — the engine never waits longer than that even if
// the musical boundary is farther away.
func CalculateSyncDelay(mode SyncMode, beatPos, beatsPerBar, beatDurationMs, maxWaitMs, customGridBeats float64) float64 {
	if beatDurationMs <= 0 {
		return 0
	}

	var delay float64
	switch mode {
	case Immediate:
		return 0

	case Beat:
		delay = (1 - mod(beatPos, 1)) * beatDurationMs

	case Bar:
		if beatsPerBar <= 0 {
			return 0
		}
		delay = (beatsPerBar - mod(beatPos, beatsPerBar)) * beatDurationMs

	case Phrase:
		if beatsPerBar <= 0 {
			return 0
		}
		phrase := 4 * beatsPerBar
		delay = (phrase - mod(beatPos, phrase)) * beatDurationMs

	case NextDownbeat:
		if beatsPerBar <= 0 {
			return 0
		}
		inBar := mod(beatPos, beatsPerBar)
		if inBar <= downbeatToleranceBeats || beatsPerBar-inBar <= downbeatToleranceBeats {
			return 0
		}
		delay = (beatsPerBar - inBar) * beatDurationMs

	case Custom:
		if customGridBeats <= 0 {
			return 0
		}
		delay = (customGridBeats - mod(beatPos, customGridBeats)) * beatDurationMs

	default:
		return 0
	}

	if maxWaitMs > 0 && delay > maxWaitMs {
		delay = maxWaitMs
	}
	return delay
}

// mod is a modulo that stays in [0, m) for the non-negative positions the
// engine produces.
func mod(v, m float64) float64 {
	r := v - float64(int64(v/m))*m
	if r < 0 {
		r += m
	}
	return r
}
