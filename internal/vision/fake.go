package vision

import (
	"errors"
	"sync"

	"github.com/sweeney/pothole-guard/internal/logic"
)

// FakeCamera returns a fixed-size frame on every Read until Limit frames
// have been served, then returns ErrCameraDone.
type FakeCamera struct {
	mu     sync.Mutex
	Width  int
	Height int
	Limit  int // 0 means unlimited
	Err    error
	reads  int
	closed bool
}

// ErrCameraDone is returned once a FakeCamera has served Limit frames.
var ErrCameraDone = errors.New("fake camera: done")

// NewFakeCamera creates a 640x480 camera serving limit frames.
func NewFakeCamera(limit int) *FakeCamera {
	return &FakeCamera{Width: 640, Height: 480, Limit: limit}
}

// Read returns the next frame.
func (c *FakeCamera) Read() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return Frame{}, c.Err
	}
	if c.Limit > 0 && c.reads >= c.Limit {
		return Frame{}, ErrCameraDone
	}
	c.reads++
	return Frame{Width: c.Width, Height: c.Height, JPEG: []byte{0xff, 0xd8, byte(c.reads), 0xff, 0xd9}}, nil
}

// Reads returns how many frames were served.
func (c *FakeCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Close marks the camera closed.
func (c *FakeCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (c *FakeCamera) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// FakeDetector returns scripted boxes, one entry per Detect call. When the
// script runs out the last entry repeats.
type FakeDetector struct {
	mu     sync.Mutex
	Script [][]logic.Box
	Err    error
	calls  int
	params []logic.RuntimeParams
}

// NewFakeDetector creates a detector with the given script.
func NewFakeDetector(script ...[]logic.Box) *FakeDetector {
	return &FakeDetector{Script: script}
}

// Detect returns the next scripted box set.
func (d *FakeDetector) Detect(_ Frame, p logic.RuntimeParams) ([]logic.Box, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.params = append(d.params, p)
	i := d.calls
	d.calls++
	if d.Err != nil {
		return nil, d.Err
	}
	if len(d.Script) == 0 {
		return nil, nil
	}
	if i >= len(d.Script) {
		i = len(d.Script) - 1
	}
	return d.Script[i], nil
}

// Calls returns how many times Detect ran.
func (d *FakeDetector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// Params returns the runtime params passed to each Detect call.
func (d *FakeDetector) Params() []logic.RuntimeParams {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]logic.RuntimeParams(nil), d.params...)
}

// Close is a no-op.
func (d *FakeDetector) Close() error {
	return nil
}
