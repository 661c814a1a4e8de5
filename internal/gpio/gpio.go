// Package gpio provides the HC-SR04 ultrasonic ranger with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"time"
)

// Ranger measures the distance to the nearest obstacle ahead.
type Ranger interface {
	// ReadDistance fires one ping and returns the distance in meters.
	// A lost echo is reported as ErrEchoTimeout and is transient.
	ReadDistance() (float64, error)

	// Close releases GPIO resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinTrig = 23
	DefaultPinEcho = 24
)

// SpeedOfSound in m/s at ~20°C.
const SpeedOfSound = 343.0

// DefaultEchoTimeout bounds each wait for an echo edge.
const DefaultEchoTimeout = 60 * time.Millisecond

// ErrEchoTimeout is returned when an echo edge does not arrive in time.
var ErrEchoTimeout = errors.New("gpio: echo timeout")

// EchoDistance converts the width of an echo pulse into a one-way distance.
func EchoDistance(pulse time.Duration) float64 {
	return pulse.Seconds() * SpeedOfSound / 2
}
