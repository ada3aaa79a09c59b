package transition

// FadeSpec is one half of a crossfade recipe: how long the fade runs and
// what shape it follows.
type FadeSpec struct {
	DurationMs float64
	Curve      FadeCurve
}

// DuckingConfig attenuates the crossfade region so both layers being
// audible at once does not read as a loudness bump. Amount is the gain
// reduction applied to both layers during the overlap, 0..1.
type DuckingConfig struct {
	Enabled bool
	Amount  float32
}

// Profile is an immutable crossfade recipe looked up by id. The registry
// always contains a profile with id "default"; unknown lookups fall back
// to it.
type Profile struct {
	ID string

	Sync      SyncMode
	MaxWaitMs float64

	// CustomGridBeats is the quantization grid for SyncMode Custom, in
	// beats. Ignored for other modes; 0 means no grid (delay 0).
	CustomGridBeats float64

	FadeOut   FadeSpec
	FadeIn    FadeSpec
	OverlapMs float64

	Ducking DuckingConfig
}

// TotalDurationMs is the post-sync length of the transition.
func (p *Profile) TotalDurationMs() float64 {
	return p.FadeOut.DurationMs + p.OverlapMs + p.FadeIn.DurationMs
}

// DefaultProfileID is the id the registry guarantees to resolve.
const DefaultProfileID = "default"

// Builtins returns the five stock profiles shipped with the engine. Content
// files may override or extend these.
func Builtins() []*Profile {
	return []*Profile{
		{
			ID:        DefaultProfileID,
			Sync:      Beat,
			MaxWaitMs: 2000,
			FadeOut:   FadeSpec{DurationMs: 400, Curve: EaseOutQuad},
			FadeIn:    FadeSpec{DurationMs: 400, Curve: EaseInQuad},
			OverlapMs: 200,
		},
		{
			ID:        "upshift_energetic",
			Sync:      Beat,
			MaxWaitMs: 1000,
			FadeOut:   FadeSpec{DurationMs: 250, Curve: EaseOutExpo},
			FadeIn:    FadeSpec{DurationMs: 350, Curve: EaseInCubic},
			OverlapMs: 150,
			Ducking:   DuckingConfig{Enabled: true, Amount: 0.15},
		},
		{
			ID:        "downshift_smooth",
			Sync:      Bar,
			MaxWaitMs: 4000,
			FadeOut:   FadeSpec{DurationMs: 1200, Curve: SCurve},
			FadeIn:    FadeSpec{DurationMs: 1500, Curve: SCurve},
			OverlapMs: 600,
		},
		{
			ID:        "feature_enter",
			Sync:      NextDownbeat,
			MaxWaitMs: 3000,
			FadeOut:   FadeSpec{DurationMs: 300, Curve: EaseOutCubic},
			FadeIn:    FadeSpec{DurationMs: 500, Curve: EaseInOutQuad},
			OverlapMs: 250,
			Ducking:   DuckingConfig{Enabled: true, Amount: 0.2},
		},
		{
			ID:        "feature_exit",
			Sync:      Phrase,
			MaxWaitMs: 6000,
			FadeOut:   FadeSpec{DurationMs: 1000, Curve: EaseOutQuad},
			FadeIn:    FadeSpec{DurationMs: 800, Curve: SCurve},
			OverlapMs: 400,
		},
	}
}
