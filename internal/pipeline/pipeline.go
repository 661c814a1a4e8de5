// Package pipeline runs the producer loops that feed the fusion state: the
// distance, GPS and heart-rate producers and the frame loop that turns
// camera frames into alerts. Each loop runs until its context is cancelled.
package pipeline

import (
	"context"
	"log"
	"time"
)

// Default producer intervals.
const (
	DefaultDistanceInterval = 80 * time.Millisecond
	DefaultHeartInterval    = 300 * time.Millisecond
	DefaultRetryDelay       = 100 * time.Millisecond
)

// streak logs the first error of a run of failures and the recovery after
// it, so a sensor that fails every sample does not flood the log.
type streak struct {
	name  string
	count int
}

func (s *streak) fail(err error) {
	if s.count == 0 {
		log.Printf("%s: %v", s.name, err)
	}
	s.count++
}

func (s *streak) ok() {
	if s.count > 0 {
		log.Printf("%s: recovered after %d failures", s.name, s.count)
		s.count = 0
	}
}

// sleep waits for d or until ctx is done. It reports whether ctx is still live.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
