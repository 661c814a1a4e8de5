package logic

import "time"

// DefaultFPSAlpha is the EWMA weight given to the newest frame.
const DefaultFPSAlpha = 0.2

// FPSMeter keeps an exponentially weighted moving average of frame rate.
type FPSMeter struct {
	alpha float64
	value float64
}

// NewFPSMeter creates a meter with the given smoothing weight.
func NewFPSMeter(alpha float64) *FPSMeter {
	return &FPSMeter{alpha: alpha}
}

// Observe folds in the processing time of one frame and returns the new estimate.
func (f *FPSMeter) Observe(dt time.Duration) float64 {
	sec := dt.Seconds()
	if sec < 1e-6 {
		sec = 1e-6
	}
	f.value = f.alpha*(1/sec) + (1-f.alpha)*f.value
	return f.value
}

// Value returns the current estimate.
func (f *FPSMeter) Value() float64 {
	return f.value
}
