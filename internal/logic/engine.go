package logic

import "time"

// EngineConfig holds the gating parameters of the Engine.
type EngineConfig struct {
	// DangerDist is the distance (m) below which Front fires regardless of direction.
	DangerDist float64
	// MinPersist is how many consecutive frames a direction must repeat before it fires.
	MinPersist int
	// Cooldown is the minimum time between two cues of the same kind.
	Cooldown time.Duration
}

// DefaultEngineConfig returns the stock gating parameters.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DangerDist: 0.5,
		MinPersist: 3,
		Cooldown:   2500 * time.Millisecond,
	}
}

// DebounceState is the mutable bookkeeping of the Engine.
type DebounceState struct {
	LastDirection Direction
	PersistCount  int
	LastAudioKind AlertKind
	LastAudioTime time.Time
}

// Engine turns per-frame direction hints and distance readings into cues.
// It is not safe for concurrent use; the frame loop owns it.
type Engine struct {
	cfg   EngineConfig
	state DebounceState
}

// NewEngine creates an Engine with the given configuration.
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		cfg:   cfg,
		state: DebounceState{LastDirection: DirectionNone},
	}
}

// Evaluate runs one frame through the danger override, persistence gating
// and cooldown gate. It returns the cue to play now, if any.
func (e *Engine) Evaluate(dir Direction, dist Reading[float64], now time.Time) (AlertKind, bool) {
	if kind, ok := e.danger(dist); ok {
		return e.gate(kind, now)
	}

	if dir == e.state.LastDirection && dir != DirectionNone {
		e.state.PersistCount++
	} else {
		e.state.PersistCount = 1
		e.state.LastDirection = dir
	}

	kind, ok := alertFor(dir)
	if !ok || e.state.PersistCount < e.cfg.MinPersist {
		return "", false
	}
	// Fired candidates re-accumulate from zero even if the cooldown swallows them.
	e.state.PersistCount = 0
	return e.gate(kind, now)
}

// EvaluateDistance runs only the danger override. It is used for frames
// that did not go through the detector, so persistence bookkeeping is
// left alone unless the override fires.
func (e *Engine) EvaluateDistance(dist Reading[float64], now time.Time) (AlertKind, bool) {
	if kind, ok := e.danger(dist); ok {
		return e.gate(kind, now)
	}
	return "", false
}

// danger applies the override and resets persistence on every danger frame.
func (e *Engine) danger(dist Reading[float64]) (AlertKind, bool) {
	if !dist.Valid || dist.Value >= e.cfg.DangerDist {
		return "", false
	}
	e.state.PersistCount = 0
	e.state.LastDirection = DirectionNone
	return AlertFront, true
}

// gate applies the per-kind cooldown and records emissions.
func (e *Engine) gate(kind AlertKind, now time.Time) (AlertKind, bool) {
	if kind == e.state.LastAudioKind && now.Sub(e.state.LastAudioTime) < e.cfg.Cooldown {
		return "", false
	}
	e.state.LastAudioKind = kind
	e.state.LastAudioTime = now
	return kind, true
}

// State returns a copy of the debounce bookkeeping.
func (e *Engine) State() DebounceState {
	return e.state
}

// LastDirection returns the direction currently accumulating persistence.
func (e *Engine) LastDirection() Direction {
	return e.state.LastDirection
}
