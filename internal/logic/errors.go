package logic

import "errors"

var (
	// ErrSensorUnavailable marks a permanent failure of a capability.
	// A producer that sees it stops; its field group stays not-ready.
	ErrSensorUnavailable = errors.New("sensor unavailable")

	// ErrNoSample means the capability has nothing new yet. Transient.
	ErrNoSample = errors.New("no sample")
)
