package vision

import (
	"errors"
	"fmt"
	"image"

	"github.com/sweeney/pothole-guard/internal/logic"
)

// DefaultNMSThreshold is the IoU above which overlapping boxes are merged.
const DefaultNMSThreshold = 0.7

var errOutputShape = errors.New("unexpected detector output shape")

// candidate is one above-threshold row of the detector output, in frame pixels.
type candidate struct {
	rect image.Rectangle
	conf float32
}

// decodeYOLO reads a YOLOv8 output tensor laid out as [1, 4+classes, n]
// (channel-major) and returns every row whose best class score reaches conf.
// Box coordinates are scaled from the square input of side imgsz back to a
// frame of frameW x frameH pixels.
func decodeYOLO(data []float32, shape []int, imgsz, frameW, frameH int, conf float32) ([]candidate, error) {
	if len(shape) != 3 || shape[1] < 5 {
		return nil, fmt.Errorf("%w: %v", errOutputShape, shape)
	}
	channels, n := shape[1], shape[2]
	if len(data) < channels*n {
		return nil, fmt.Errorf("%w: %d values for %v", errOutputShape, len(data), shape)
	}

	sx := float32(frameW) / float32(imgsz)
	sy := float32(frameH) / float32(imgsz)

	var out []candidate
	for i := 0; i < n; i++ {
		best := float32(0)
		for c := 4; c < channels; c++ {
			if s := data[c*n+i]; s > best {
				best = s
			}
		}
		if best < conf {
			continue
		}
		cx, cy := data[i], data[n+i]
		w, h := data[2*n+i], data[3*n+i]
		out = append(out, candidate{
			rect: image.Rect(
				int((cx-w/2)*sx), int((cy-h/2)*sy),
				int((cx+w/2)*sx), int((cy+h/2)*sy),
			),
			conf: best,
		})
	}
	return out, nil
}

// boxesAt converts the candidates selected by keep into logic boxes.
func boxesAt(cands []candidate, keep []int) []logic.Box {
	boxes := make([]logic.Box, 0, len(keep))
	for _, k := range keep {
		c := cands[k]
		boxes = append(boxes, logic.Box{
			X1:         float64(c.rect.Min.X),
			Y1:         float64(c.rect.Min.Y),
			X2:         float64(c.rect.Max.X),
			Y2:         float64(c.rect.Max.Y),
			Confidence: float64(c.conf),
		})
	}
	return boxes
}
