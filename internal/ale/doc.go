// Package ale holds the shared vocabulary types of the adaptive layer
// engine: layer identifiers, per-tick mix output, and the level range the
// engine operates over.
//
// The engine proper lives in ale/engine; the decision mechanisms are split
// into layer-aligned subpackages mirroring the per-tick data flow:
//
//	signals    — telemetry snapshot and derived metrics (momentum)
//	contexts   — scenario definitions: timing, constraints, entry policy
//	rules      — condition→action triggers and matching
//	stability  — hysteresis mechanisms gating level changes
//	transition — musically-synced crossfade state machine
//	engine     — per-tick orchestration and the command/state channel
//
// Everything downstream of engine (storage, monitor, content) runs on the
// control side and only ever sees published snapshots.
package ale
