package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sweeney/pothole-guard/internal/gpio"
	"github.com/sweeney/pothole-guard/internal/logic"
	"github.com/sweeney/pothole-guard/internal/status"
)

// DistanceLoop pings the ranger every interval and publishes the median of
// the recent in-range samples. Out-of-range samples and lost echoes are
// discarded; the last published distance stays in place.
func DistanceLoop(ctx context.Context, r gpio.Ranger, tr *status.Tracker, interval time.Duration) error {
	filter := logic.NewMedianFilter(logic.DefaultMedianWindow)
	errs := streak{name: "distance"}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		d, err := r.ReadDistance()
		switch {
		case errors.Is(err, logic.ErrSensorUnavailable):
			log.Printf("distance: %v, stopping", err)
			return nil
		case err != nil:
			errs.fail(err)
		default:
			errs.ok()
			if median, ok := filter.Add(d); ok {
				tr.PublishDistance(status.Distance{
					Ready:   true,
					Reading: logic.NewReading(median, time.Now()),
				})
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
