package logic

// Thresholds are the normalized horizontal bands used by Resolve.
type Thresholds struct {
	Left  float64 // nx below this is left
	Right float64 // nx above this is right
}

// DefaultThresholds returns the stock 40/60 split.
func DefaultThresholds() Thresholds {
	return Thresholds{Left: 0.40, Right: 0.60}
}

// Resolve picks the nearest box (largest Y2, first seen wins ties) and maps
// its normalized center to a direction. It has no side effects.
func Resolve(boxes []Box, frameWidth int, th Thresholds) Direction {
	if len(boxes) == 0 || frameWidth <= 0 {
		return DirectionNone
	}

	nearest := boxes[0]
	for _, b := range boxes[1:] {
		if b.Y2 > nearest.Y2 {
			nearest = b
		}
	}

	nx := nearest.CenterX() / float64(frameWidth)
	switch {
	case nx < th.Left:
		return DirectionLeft
	case nx > th.Right:
		return DirectionRight
	}
	return DirectionNone
}
