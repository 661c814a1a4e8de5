package logic

import "slices"

// Accepted ultrasonic range in meters. Samples outside are echo artifacts.
const (
	MinDistance = 0.02
	MaxDistance = 4.0
)

// DefaultMedianWindow is the number of valid samples the median is taken over.
const DefaultMedianWindow = 5

// MedianFilter smooths distance samples with a median over the last N
// in-range samples. Not safe for concurrent use; the distance loop owns it.
type MedianFilter struct {
	buf      []float64
	capacity int
	head     int // next write position
	count    int
}

// NewMedianFilter creates a filter over the last window samples.
func NewMedianFilter(window int) *MedianFilter {
	if window < 1 {
		window = 1
	}
	return &MedianFilter{
		buf:      make([]float64, window),
		capacity: window,
	}
}

// InRange reports whether d is a plausible distance sample.
func InRange(d float64) bool {
	return d >= MinDistance && d <= MaxDistance
}

// Add records a raw sample and returns the current median. Out-of-range
// samples are discarded and reported with ok=false; the buffer is unchanged.
func (m *MedianFilter) Add(d float64) (median float64, ok bool) {
	if !InRange(d) {
		return 0, false
	}
	m.buf[m.head] = d
	m.head = (m.head + 1) % m.capacity
	if m.count < m.capacity {
		m.count++
	}
	return m.Median(), true
}

// Median returns the median of the buffered samples, or 0 when empty.
// With an even count the two middle values are averaged.
func (m *MedianFilter) Median() float64 {
	if m.count == 0 {
		return 0
	}
	// Until the buffer wraps, samples sit at the front; order does not matter.
	vals := slices.Clone(m.buf[:m.count])
	slices.Sort(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid]
	}
	return (vals[mid-1] + vals[mid]) / 2
}

// Len returns the number of buffered samples.
func (m *MedianFilter) Len() int {
	return m.count
}
