//go:build !linux

package gpio

import "errors"

// RealRanger is not available on non-Linux platforms.
type RealRanger struct{}

// NewRealRanger returns an error on non-Linux platforms.
func NewRealRanger(pinTrig, pinEcho int) (*RealRanger, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// ReadDistance is not implemented on non-Linux platforms.
func (r *RealRanger) ReadDistance() (float64, error) {
	return 0, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealRanger) Close() error {
	return nil
}
