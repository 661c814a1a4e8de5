//go:build gocv

package vision

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/sweeney/pothole-guard/internal/logic"
)

// YOLO runs a YOLOv8 ONNX model through the OpenCV DNN module.
type YOLO struct {
	mu  sync.Mutex
	net gocv.Net
	nms float32
}

// NewYOLO loads the model at path.
func NewYOLO(path string) (*YOLO, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("vision: model: %w", err)
	}
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("vision: failed to load model from %s", path)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	return &YOLO{net: net, nms: DefaultNMSThreshold}, nil
}

// Detect runs the model on f at p.ImgSz and returns boxes scoring at least
// p.Conf, after non-maximum suppression.
func (y *YOLO) Detect(f Frame, p logic.RuntimeParams) ([]logic.Box, error) {
	y.mu.Lock()
	defer y.mu.Unlock()

	img, err := gocv.IMDecode(f.JPEG, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("vision: decode frame: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, ErrEmptyFrame
	}

	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(p.ImgSz, p.ImgSz), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	y.net.SetInput(blob, "")
	out := y.net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("vision: read output: %w", err)
	}
	cands, err := decodeYOLO(data, out.Size(), p.ImgSz, img.Cols(), img.Rows(), float32(p.Conf))
	if err != nil || len(cands) == 0 {
		return nil, err
	}

	rects := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))
	for i, c := range cands {
		rects[i] = c.rect
		scores[i] = c.conf
	}
	keep := gocv.NMSBoxes(rects, scores, float32(p.Conf), y.nms)
	return boxesAt(cands, keep), nil
}

// Close releases the network.
func (y *YOLO) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.net.Close()
}
