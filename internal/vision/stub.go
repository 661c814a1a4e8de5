//go:build !gocv

package vision

import (
	"errors"
	"fmt"

	"github.com/sweeney/pothole-guard/internal/logic"
)

var errNoOpenCV = errors.New("vision: built without OpenCV (build with -tags gocv)")

// Capture is unavailable in builds without OpenCV.
type Capture struct{}

// OpenCamera always fails in builds without OpenCV.
func OpenCamera(CameraConfig) (*Capture, error) {
	return nil, fmt.Errorf("%w: %w", logic.ErrSensorUnavailable, errNoOpenCV)
}

// Index returns -1.
func (c *Capture) Index() int { return -1 }

// Read always fails.
func (c *Capture) Read() (Frame, error) { return Frame{}, errNoOpenCV }

// Close is a no-op.
func (c *Capture) Close() error { return nil }

// YOLO is unavailable in builds without OpenCV.
type YOLO struct{}

// NewYOLO always fails in builds without OpenCV.
func NewYOLO(string) (*YOLO, error) {
	return nil, fmt.Errorf("%w: %w", logic.ErrSensorUnavailable, errNoOpenCV)
}

// Detect always fails.
func (y *YOLO) Detect(Frame, logic.RuntimeParams) ([]logic.Box, error) { return nil, errNoOpenCV }

// Close is a no-op.
func (y *YOLO) Close() error { return nil }
