package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sweeney/pothole-guard/internal/gps"
	"github.com/sweeney/pothole-guard/internal/logic"
	"github.com/sweeney/pothole-guard/internal/status"
)

// FixSource yields GPS fixes. ReadFix blocks until the next one; Close
// must unblock it.
type FixSource interface {
	ReadFix() (gps.Fix, error)
	Close() error
}

// GPSLoop publishes every fix as it arrives. The source is closed when ctx
// is cancelled so a blocked read returns.
func GPSLoop(ctx context.Context, src FixSource, tr *status.Tracker) error {
	stop := context.AfterFunc(ctx, func() { src.Close() })
	defer stop()

	errs := streak{name: "gps"}
	for {
		fix, err := src.ReadFix()
		if ctx.Err() != nil {
			return nil
		}
		switch {
		case errors.Is(err, logic.ErrSensorUnavailable):
			log.Printf("gps: %v, stopping", err)
			return nil
		case err != nil:
			errs.fail(err)
			continue
		}
		errs.ok()
		tr.PublishGPS(status.GPSFix{
			Ready:       true,
			HasPosition: fix.HasPosition,
			Lat:         fix.Lat,
			Lon:         fix.Lon,
			HasSpeed:    fix.HasSpeed,
			SpeedKmh:    fix.SpeedKmh,
			TimeUTC:     fix.TimeUTC,
			Valid:       fix.Valid,
			Received:    time.Now(),
		})
	}
}
