package gpio

import (
	"errors"
	"sync"
)

// FakeRanger is a test double that returns scripted distances.
type FakeRanger struct {
	mu sync.Mutex

	// Samples contains scripted readings to return.
	// Each call to ReadDistance() consumes the next sample.
	Samples []Sample

	// index tracks current position in Samples
	index int

	// Reads counts calls to ReadDistance.
	Reads int

	// Closed tracks if Close was called
	Closed bool
}

// Sample represents a single ping result.
type Sample struct {
	Meters float64
	Err    error
}

// NewFakeRanger creates a FakeRanger with the given samples.
func NewFakeRanger(samples []Sample) *FakeRanger {
	return &FakeRanger{Samples: samples}
}

// Meters builds successful samples from plain distances.
func Meters(ds ...float64) []Sample {
	out := make([]Sample, len(ds))
	for i, d := range ds {
		out[i] = Sample{Meters: d}
	}
	return out
}

// ReadDistance returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeRanger) ReadDistance() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Reads++
	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return sample.Meters, sample.Err
}

// Exhausted reports whether the last scripted sample has been returned.
func (f *FakeRanger) Exhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Samples) == 0 || (f.index == len(f.Samples)-1 && f.Reads >= len(f.Samples))
}

// Close marks the ranger as closed.
func (f *FakeRanger) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (f *FakeRanger) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Closed
}

// Reset resets the ranger to the beginning of samples.
func (f *FakeRanger) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = 0
	f.Reads = 0
	f.Closed = false
}
