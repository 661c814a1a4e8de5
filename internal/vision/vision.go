// Package vision captures frames from the chest camera and runs the obstacle
// detector on them. The real implementations are backed by gocv and need cgo;
// fakes allow testing without a camera or model.
package vision

import (
	"errors"

	"github.com/sweeney/pothole-guard/internal/logic"
)

// Frame is one captured image, JPEG encoded.
type Frame struct {
	Width  int
	Height int
	JPEG   []byte
}

// Camera yields frames. Read blocks until the next frame is available.
type Camera interface {
	Read() (Frame, error)
	Close() error
}

// Detector finds obstacles in a frame. Boxes are in the frame's pixel space.
type Detector interface {
	Detect(f Frame, p logic.RuntimeParams) ([]logic.Box, error)
	Close() error
}

// CameraConfig selects and sizes the capture device.
type CameraConfig struct {
	Index  int // -1 probes /dev/video* in order
	Width  int
	Height int
}

// DefaultCameraConfig returns auto-probe at 640x480.
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{Index: -1, Width: 640, Height: 480}
}

// ErrEmptyFrame is returned when the device delivered no image.
var ErrEmptyFrame = errors.New("vision: empty frame")

// fallbackIndices are tried when no /dev/video* node is listed.
var fallbackIndices = []int{0, 1, 2, 10, 11, 12, 21, 22, 23, 31}
