// Package content loads authored content packs: the YAML files describing
// contexts, rules and transition profiles for one game. The YAML schema is
// user-facing and stable-ish; defaults and validation live here so the
// engine packages can assume well-formed registries.
package content

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/adaptive.audio/internal/ale"
	"github.com/banshee-data/adaptive.audio/internal/ale/contexts"
	"github.com/banshee-data/adaptive.audio/internal/ale/rules"
	"github.com/banshee-data/adaptive.audio/internal/ale/transition"
)

// Standard file names inside a content directory. Missing files are fine;
// transitions fall back to the builtin profiles and the other registries
// start empty.
const (
	ContextsFile    = "contexts.yaml"
	RulesFile       = "rules.yaml"
	TransitionsFile = "transitions.yaml"
)

// Pack is the loaded result: the three registries the engine is built from.
type Pack struct {
	Contexts    *contexts.Registry
	Rules       *rules.Registry
	Transitions *transition.Registry
}

// Load reads a content directory and builds the registries.
func Load(dir string) (*Pack, error) {
	ctxFile, err := loadContextsFile(filepath.Join(dir, ContextsFile))
	if err != nil {
		return nil, err
	}
	ruleFile, err := loadRulesFile(filepath.Join(dir, RulesFile))
	if err != nil {
		return nil, err
	}
	transFile, err := loadTransitionsFile(filepath.Join(dir, TransitionsFile))
	if err != nil {
		return nil, err
	}

	ctxReg, err := ctxFile.build()
	if err != nil {
		return nil, fmt.Errorf("contexts: %w", err)
	}
	ruleReg, err := ruleFile.build()
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	transReg, err := transFile.build()
	if err != nil {
		return nil, fmt.Errorf("transitions: %w", err)
	}
	return &Pack{Contexts: ctxReg, Rules: ruleReg, Transitions: transReg}, nil
}

// contextsFile is the YAML shape of contexts.yaml.
type contextsFile struct {
	Contexts []contextYAML `yaml:"contexts"`
}

type contextYAML struct {
	ID            string  `yaml:"id"`
	BPM           float64 `yaml:"bpm"`
	TimeSignature int     `yaml:"time_signature,omitempty"`
	MinLevel      int     `yaml:"min_level"`
	MaxLevel      int     `yaml:"max_level"`

	Entry entryYAML `yaml:"entry"`

	NarrativeArc *arcYAML `yaml:"narrative_arc,omitempty"`
}

type entryYAML struct {
	DefaultStartLevel int           `yaml:"default_start_level"`
	CarryCurrentLevel bool          `yaml:"carry_current_level,omitempty"`
	Triggers          []triggerYAML `yaml:"triggers,omitempty"`
}

type triggerYAML struct {
	Trigger    string `yaml:"trigger"`
	StartLevel *int   `yaml:"start_level,omitempty"`
	Transition string `yaml:"transition,omitempty"`
}

type arcYAML struct {
	Enabled        bool     `yaml:"enabled"`
	TargetLevel    int      `yaml:"target_level"`
	RampStart      *float64 `yaml:"ramp_start,omitempty"`
	ProgressSignal string   `yaml:"progress_signal,omitempty"`
}

func loadContextsFile(path string) (*contextsFile, error) {
	var f contextsFile
	if err := readYAML(path, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *contextsFile) build() (*contexts.Registry, error) {
	out := make([]*contexts.Context, 0, len(f.Contexts))
	for i := range f.Contexts {
		c := &f.Contexts[i]
		if c.MaxLevel >= ale.NumLevels || c.MinLevel < 0 || c.MinLevel > c.MaxLevel {
			return nil, fmt.Errorf("context %q: bad level range [%d, %d]", c.ID, c.MinLevel, c.MaxLevel)
		}
		// 0 is "unset" and falls back to 4/4 at playback time.
		if c.TimeSignature < 0 || c.TimeSignature > 32 {
			return nil, fmt.Errorf("context %q: bad time signature %d", c.ID, c.TimeSignature)
		}
		ctx := &contexts.Context{
			ID: c.ID,
			AudioCharacter: contexts.AudioCharacter{
				BPM:              c.BPM,
				TimeSigNumerator: uint8(c.TimeSignature),
			},
			Constraints: contexts.Constraints{
				MinLevel: ale.LayerID(c.MinLevel),
				MaxLevel: ale.LayerID(c.MaxLevel),
			},
			EntryPolicy: contexts.EntryPolicy{
				DefaultStartLevel: ale.LayerID(c.Entry.DefaultStartLevel),
				CarryCurrentLevel: c.Entry.CarryCurrentLevel,
			},
		}
		for _, tr := range c.Entry.Triggers {
			m := contexts.TriggerMapping{Trigger: tr.Trigger, Transition: tr.Transition}
			if tr.StartLevel != nil {
				lv := ale.LayerID(*tr.StartLevel)
				m.StartLevel = &lv
			}
			ctx.EntryPolicy.TriggerMappings = append(ctx.EntryPolicy.TriggerMappings, m)
		}
		if a := c.NarrativeArc; a != nil {
			ctx.NarrativeArc = contexts.NarrativeArc{
				Enabled:        a.Enabled,
				TargetLevel:    ale.LayerID(a.TargetLevel),
				ProgressSignal: a.ProgressSignal,
			}
			if a.RampStart != nil {
				ctx.NarrativeArc.RampStart = *a.RampStart
			}
		}
		out = append(out, ctx)
	}
	return contexts.NewRegistry(out...)
}

// rulesFile is the YAML shape of rules.yaml.
type rulesFile struct {
	Rules []ruleYAML `yaml:"rules"`
}

type ruleYAML struct {
	ID                  string        `yaml:"id"`
	Context             string        `yaml:"context,omitempty"`
	Priority            int           `yaml:"priority,omitempty"`
	CooldownMs          float64       `yaml:"cooldown_ms,omitempty"`
	HoldMs              float64       `yaml:"hold_ms,omitempty"`
	RequiresHoldExpired bool          `yaml:"requires_hold_expired,omitempty"`
	Transition          string        `yaml:"transition,omitempty"`
	When                conditionYAML `yaml:"when"`
	Then                actionYAML    `yaml:"then"`
}

type conditionYAML struct {
	Kind      string          `yaml:"kind"`
	Signal    string          `yaml:"signal,omitempty"`
	Op        string          `yaml:"op,omitempty"`
	Value     float32         `yaml:"value,omitempty"`
	Low       float32         `yaml:"low,omitempty"`
	High      float32         `yaml:"high,omitempty"`
	SustainMs float64         `yaml:"sustain_ms,omitempty"`
	Sub       []conditionYAML `yaml:"sub,omitempty"`
}

type actionYAML struct {
	Action string `yaml:"action"`
	Level  int    `yaml:"level,omitempty"`
	Amount int    `yaml:"amount,omitempty"`
}

func loadRulesFile(path string) (*rulesFile, error) {
	var f rulesFile
	if err := readYAML(path, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *rulesFile) build() (*rules.Registry, error) {
	out := make([]*rules.Rule, 0, len(f.Rules))
	for i := range f.Rules {
		r := &f.Rules[i]
		cond, err := r.When.build()
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.ID, err)
		}
		act, err := r.Then.build()
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.ID, err)
		}
		out = append(out, &rules.Rule{
			ID:                  r.ID,
			ContextID:           r.Context,
			Condition:           cond,
			Action:              act,
			Transition:          r.Transition,
			CooldownMs:          r.CooldownMs,
			HoldMs:              r.HoldMs,
			RequiresHoldExpired: r.RequiresHoldExpired,
			Priority:            r.Priority,
		})
	}
	return rules.NewRegistry(out...)
}

func (c *conditionYAML) build() (rules.Condition, error) {
	out := rules.Condition{
		Signal:    c.Signal,
		Value:     c.Value,
		Low:       c.Low,
		High:      c.High,
		SustainMs: c.SustainMs,
	}
	switch c.Kind {
	case "threshold":
		out.Kind = rules.CondThreshold
	case "rising_edge":
		out.Kind = rules.CondRisingEdge
	case "falling_edge":
		out.Kind = rules.CondFallingEdge
	case "range":
		out.Kind = rules.CondRange
	case "sustained":
		out.Kind = rules.CondSustained
	case "all":
		out.Kind = rules.CondAll
	case "any":
		out.Kind = rules.CondAny
	default:
		return out, fmt.Errorf("unknown condition kind %q", c.Kind)
	}

	if out.Kind == rules.CondThreshold || out.Kind == rules.CondRisingEdge || out.Kind == rules.CondFallingEdge {
		op, err := parseOp(c.Op, out.Kind)
		if err != nil {
			return out, err
		}
		out.Op = op
	}
	if out.Kind == rules.CondSustained && len(c.Sub) != 1 {
		return out, fmt.Errorf("sustained condition needs exactly one sub-condition, got %d", len(c.Sub))
	}
	if (out.Kind == rules.CondAll || out.Kind == rules.CondAny) && len(c.Sub) == 0 {
		return out, fmt.Errorf("%s condition needs sub-conditions", c.Kind)
	}
	for i := range c.Sub {
		sub, err := c.Sub[i].build()
		if err != nil {
			return out, err
		}
		out.Sub = append(out.Sub, sub)
	}
	return out, nil
}

// parseOp accepts both symbolic and word forms. Edge conditions ignore the
// operator, so empty is allowed there.
func parseOp(s string, kind rules.CondKind) (rules.Op, error) {
	switch s {
	case ">", "gt":
		return rules.OpGT, nil
	case ">=", "gte":
		return rules.OpGTE, nil
	case "<", "lt":
		return rules.OpLT, nil
	case "<=", "lte":
		return rules.OpLTE, nil
	case "":
		if kind != rules.CondThreshold {
			return rules.OpGT, nil
		}
		return rules.OpGT, fmt.Errorf("threshold condition needs an op")
	default:
		return rules.OpGT, fmt.Errorf("unknown op %q", s)
	}
}

func (a *actionYAML) build() (rules.Action, error) {
	switch a.Action {
	case "set":
		return rules.Action{Kind: rules.ActionSet, Level: ale.LayerID(a.Level)}, nil
	case "shift":
		return rules.Action{Kind: rules.ActionShift, Amount: a.Amount}, nil
	case "to_max":
		return rules.Action{Kind: rules.ActionToMax}, nil
	case "to_min":
		return rules.Action{Kind: rules.ActionToMin}, nil
	default:
		return rules.Action{}, fmt.Errorf("unknown action %q", a.Action)
	}
}

// transitionsFile is the YAML shape of transitions.yaml. Authored profiles
// overlay the builtin set, so a pack can re-tune "default" or add its own.
type transitionsFile struct {
	Transitions []profileYAML `yaml:"transitions"`
}

type profileYAML struct {
	ID              string       `yaml:"id"`
	Sync            string       `yaml:"sync"`
	MaxWaitMs       float64      `yaml:"max_wait_ms,omitempty"`
	CustomGridBeats float64      `yaml:"custom_grid_beats,omitempty"`
	FadeOut         fadeYAML     `yaml:"fade_out"`
	FadeIn          fadeYAML     `yaml:"fade_in"`
	OverlapMs       float64      `yaml:"overlap_ms,omitempty"`
	Ducking         *duckingYAML `yaml:"ducking,omitempty"`
}

type fadeYAML struct {
	DurationMs float64 `yaml:"duration_ms"`
	Curve      string  `yaml:"curve,omitempty"`
}

type duckingYAML struct {
	Enabled bool    `yaml:"enabled"`
	Amount  float32 `yaml:"amount"`
}

func loadTransitionsFile(path string) (*transitionsFile, error) {
	var f transitionsFile
	if err := readYAML(path, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *transitionsFile) build() (*transition.Registry, error) {
	profiles := transition.Builtins()
	byID := make(map[string]int, len(profiles))
	for i, p := range profiles {
		byID[p.ID] = i
	}
	for i := range f.Transitions {
		y := &f.Transitions[i]
		if y.ID == "" {
			return nil, fmt.Errorf("transition %d: missing id", i)
		}
		p := &transition.Profile{
			ID:              y.ID,
			Sync:            transition.ParseSyncMode(y.Sync),
			MaxWaitMs:       y.MaxWaitMs,
			CustomGridBeats: y.CustomGridBeats,
			FadeOut:         transition.FadeSpec{DurationMs: y.FadeOut.DurationMs, Curve: transition.ParseCurve(y.FadeOut.Curve)},
			FadeIn:          transition.FadeSpec{DurationMs: y.FadeIn.DurationMs, Curve: transition.ParseCurve(y.FadeIn.Curve)},
			OverlapMs:       y.OverlapMs,
		}
		if y.Ducking != nil {
			p.Ducking = transition.DuckingConfig{Enabled: y.Ducking.Enabled, Amount: y.Ducking.Amount}
		}
		if idx, ok := byID[p.ID]; ok {
			profiles[idx] = p
		} else {
			byID[p.ID] = len(profiles)
			profiles = append(profiles, p)
		}
	}
	return transition.NewRegistry(profiles...)
}

// readYAML unmarshals path into dst. A missing file leaves dst zero, which
// every build method treats as an empty section.
func readYAML(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
