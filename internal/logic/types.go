// Package logic contains the pure guidance logic for the walking aid.
// This package has NO external dependencies (no GPIO, camera, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Direction is the per-frame directional hint derived from detection boxes.
type Direction string

const (
	DirectionNone  Direction = "none"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// AlertKind identifies an audio cue.
type AlertKind string

const (
	AlertFront AlertKind = "front"
	AlertLeft  AlertKind = "left"
	AlertRight AlertKind = "right"
)

// alertFor maps a directional hint to its cue. DirectionNone has no cue.
func alertFor(d Direction) (AlertKind, bool) {
	switch d {
	case DirectionLeft:
		return AlertLeft, true
	case DirectionRight:
		return AlertRight, true
	}
	return "", false
}

// Reading is a timestamped sample from a single producer.
// Valid is false until the producer has published a usable value.
type Reading[T any] struct {
	Value T
	Time  time.Time
	Valid bool
}

// NewReading returns a valid reading of v taken at t.
func NewReading[T any](v T, t time.Time) Reading[T] {
	return Reading[T]{Value: v, Time: t, Valid: true}
}

// Box is a single detection in pixel coordinates of the frame that produced it.
type Box struct {
	X1, Y1, X2, Y2 float64
	Confidence     float64
}

// CenterX returns the horizontal center of the box.
func (b Box) CenterX() float64 {
	return (b.X1 + b.X2) / 2
}

// Alert is a cue that passed the debounce and cooldown gates.
type Alert struct {
	ID        string
	Kind      AlertKind
	Direction Direction
	Distance  Reading[float64]
	Level     Level
	Timestamp time.Time
}
