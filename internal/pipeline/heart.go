package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sweeney/pothole-guard/internal/logic"
	"github.com/sweeney/pothole-guard/internal/mqtt"
	"github.com/sweeney/pothole-guard/internal/status"
)

// HeartSource yields heart-rate samples without blocking. It returns
// logic.ErrNoSample when nothing new is available.
type HeartSource interface {
	Read() (mqtt.HeartSample, error)
}

// HeartLoop polls src every interval. A field missing from a sample keeps
// its previous value.
func HeartLoop(ctx context.Context, src HeartSource, tr *status.Tracker, interval time.Duration) error {
	hr := status.HeartRate{Ready: true}
	tr.PublishHeartRate(hr)

	errs := streak{name: "heart rate"}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		s, err := src.Read()
		switch {
		case errors.Is(err, logic.ErrNoSample):
			continue
		case errors.Is(err, logic.ErrSensorUnavailable):
			log.Printf("heart rate: %v, stopping", err)
			return nil
		case err != nil:
			errs.fail(err)
			continue
		}
		errs.ok()
		if s.BPM.Valid {
			hr.BPM = s.BPM
		}
		if s.SpO2.Valid {
			hr.SpO2 = s.SpO2
		}
		tr.PublishHeartRate(hr)
	}
}
