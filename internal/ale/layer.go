package ale

// LayerID identifies one discrete audio intensity tier. Authored content
// uses five tiers (0..4, ambient through climax); the mixing path tolerates
// up to MaxMixSlots so headroom exists for stingers and experiments.
type LayerID uint8

const (
	// NumLevels is the number of authored intensity tiers (L1..L5).
	NumLevels = 5

	// MaxMixSlots is the size of the per-tick volume array. Mixing code
	// never indexes past this regardless of what a profile asks for.
	MaxMixSlots = 8

	// MaxLevel is the highest valid authored level.
	MaxLevel LayerID = NumLevels - 1
)

// ClampLevel clamps level into [min, max]. Callers pass a context's
// constraints; a degenerate range (min > max) collapses to min.
func ClampLevel(level, min, max LayerID) LayerID {
	if max < min {
		max = min
	}
	if level < min {
		return min
	}
	if level > max {
		return max
	}
	return level
}

// LayerVolumes is the per-tick mix output: one volume per slot plus the
// number of slots that are actually audible this tick. It is recomputed
// every tick and never persisted.
type LayerVolumes struct {
	Volumes      [MaxMixSlots]float32
	ActiveLayers int
}

// Set assigns a volume to slot i, ignoring out-of-range slots, and keeps
// ActiveLayers tracking the highest audible slot.
func (lv *LayerVolumes) Set(i LayerID, v float32) {
	if int(i) >= MaxMixSlots {
		return
	}
	lv.Volumes[i] = v
	if v > 0 && int(i) >= lv.ActiveLayers {
		lv.ActiveLayers = int(i) + 1
	}
}

// Reset zeroes all slots.
func (lv *LayerVolumes) Reset() {
	*lv = LayerVolumes{}
}
