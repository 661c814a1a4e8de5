//go:build gocv

package vision

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Capture reads frames from a V4L2 camera via OpenCV.
type Capture struct {
	mu    sync.Mutex
	cap   *gocv.VideoCapture
	mat   gocv.Mat
	index int
}

var (
	captureBackends = []gocv.VideoCaptureAPI{gocv.VideoCaptureV4L2, gocv.VideoCaptureAny}
	captureFourCCs  = []string{"MJPG", "YUYV", "H264"}
)

// OpenCamera probes the candidate devices for cfg and returns the first one
// that delivers a frame.
func OpenCamera(cfg CameraConfig) (*Capture, error) {
	mat := gocv.NewMat()
	for _, idx := range candidates(cfg, filepath.Glob) {
		for _, be := range captureBackends {
			vc, err := gocv.OpenVideoCaptureWithAPI(idx, be)
			if err != nil || !vc.IsOpened() {
				if vc != nil {
					vc.Close()
				}
				continue
			}
			vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
			vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
			vc.Set(gocv.VideoCaptureBufferSize, 1)
			for _, fcc := range captureFourCCs {
				vc.Set(gocv.VideoCaptureFOURCC, vc.ToCodec(fcc))
				time.Sleep(50 * time.Millisecond)
				if vc.Read(&mat) && !mat.Empty() {
					log.Printf("vision: camera /dev/video%d %dx%d fourcc=%s", idx, mat.Cols(), mat.Rows(), fcc)
					return &Capture{cap: vc, mat: mat, index: idx}, nil
				}
			}
			vc.Close()
		}
	}
	mat.Close()
	return nil, errors.New("vision: no camera could be opened")
}

// Index returns the /dev/video index in use.
func (c *Capture) Index() int {
	return c.index
}

// Read grabs the next frame and encodes it as JPEG.
func (c *Capture) Read() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.cap.Read(&c.mat) || c.mat.Empty() {
		return Frame{}, ErrEmptyFrame
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, c.mat)
	if err != nil {
		return Frame{}, fmt.Errorf("vision: encode frame: %w", err)
	}
	defer buf.Close()

	return Frame{
		Width:  c.mat.Cols(),
		Height: c.mat.Rows(),
		JPEG:   append([]byte(nil), buf.GetBytes()...),
	}, nil
}

// Close releases the device.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mat.Close()
	return c.cap.Close()
}
