package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/pothole-guard/internal/logic"
	"github.com/sweeney/pothole-guard/internal/mqtt"
	"github.com/sweeney/pothole-guard/internal/status"
	"github.com/sweeney/pothole-guard/internal/vision"
)

// Dispatcher plays the cue for an alert.
type Dispatcher interface {
	Dispatch(kind logic.AlertKind) bool
}

// FrameConfig holds the frame loop's fixed settings.
type FrameConfig struct {
	Thresholds logic.Thresholds
	Engine     logic.EngineConfig
	Warn1      float64 // caution below this distance
	Warn2      float64 // danger below this distance
}

// FrameLoop reads camera frames, runs detection on the selected ones and
// feeds the engine. It owns the engine; nothing else may touch it.
type FrameLoop struct {
	cfg        FrameConfig
	camera     vision.Camera
	detector   vision.Detector
	dispatcher Dispatcher
	publisher  *mqtt.AsyncPublisher // nil when MQTT is disabled
	tracker    *status.Tracker

	engine    *logic.Engine
	fps       *logic.FPSMeter
	frameID   uint64
	direction logic.Direction
	guidance  status.Guidance

	detectErrs streak
	now        func() time.Time
	newID      func() string
}

// NewFrameLoop wires a frame loop. pub may be nil. Alerts reach pub from a
// background goroutine, so a slow broker never holds up a frame; Close
// stops that goroutine.
func NewFrameLoop(cfg FrameConfig, cam vision.Camera, det vision.Detector, d Dispatcher, pub mqtt.Publisher, tr *status.Tracker) *FrameLoop {
	var async *mqtt.AsyncPublisher
	if pub != nil {
		async = mqtt.NewAsyncPublisher(pub, mqtt.DefaultQueueSize)
	}
	return &FrameLoop{
		cfg:        cfg,
		camera:     cam,
		detector:   det,
		dispatcher: d,
		publisher:  async,
		tracker:    tr,
		engine:     logic.NewEngine(cfg.Engine),
		fps:        logic.NewFPSMeter(logic.DefaultFPSAlpha),
		direction:  logic.DirectionNone,
		guidance:   status.Guidance{Direction: logic.DirectionNone, Level: logic.LevelUnknown},
		detectErrs: streak{name: "detect"},
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Run processes frames until ctx is cancelled. A camera read failure is
// retried after a short pause; a camera that became unavailable ends the
// loop with an error.
func (l *FrameLoop) Run(ctx context.Context) error {
	errs := streak{name: "camera"}
	for ctx.Err() == nil {
		err := l.Step()
		switch {
		case err == nil:
			errs.ok()
		case errors.Is(err, logic.ErrSensorUnavailable):
			return err
		default:
			errs.fail(err)
			if !sleep(ctx, DefaultRetryDelay) {
				return nil
			}
		}
	}
	return nil
}

// Step reads and processes one frame.
func (l *FrameLoop) Step() error {
	frame, err := l.camera.Read()
	if err != nil {
		return err
	}
	start := l.now()
	dist := l.tracker.Distance()

	kind, fired := l.evaluate(frame, dist, start)

	l.guidance.Direction = l.direction
	l.guidance.Level = logic.Classify(dist, l.cfg.Warn1, l.cfg.Warn2)
	if fired {
		l.alert(kind, dist, start)
	}
	l.tracker.PublishGuidance(l.guidance)

	fps := l.fps.Observe(l.now().Sub(start))
	l.frameID++
	l.tracker.PublishFrames(status.Frames{FPS: fps, Processed: l.frameID})
	l.tracker.PublishFrame(frame.JPEG)
	return nil
}

// evaluate runs detection if this frame is selected and feeds the engine.
// Frames without a detection result only go through the danger override.
func (l *FrameLoop) evaluate(frame vision.Frame, dist logic.Reading[float64], now time.Time) (logic.AlertKind, bool) {
	params := l.tracker.RuntimeParams()
	n := uint64(max(params.ProcessEveryN, 1))

	if l.tracker.DetectEnabled() && l.frameID%n == 0 {
		boxes, err := l.detector.Detect(frame, params)
		if err == nil {
			l.detectErrs.ok()
			l.direction = logic.Resolve(boxes, frame.Width, l.cfg.Thresholds)
			return l.engine.Evaluate(l.direction, dist, now)
		}
		l.detectErrs.fail(err)
	}
	return l.engine.EvaluateDistance(dist, now)
}

func (l *FrameLoop) alert(kind logic.AlertKind, dist logic.Reading[float64], now time.Time) {
	a := logic.Alert{
		ID:        l.newID(),
		Kind:      kind,
		Direction: l.direction,
		Distance:  dist,
		Level:     l.guidance.Level,
		Timestamp: now,
	}
	log.Printf("alert: %s (direction=%s level=%s)", a.Kind, a.Direction, a.Level)

	l.dispatcher.Dispatch(kind)
	if l.publisher != nil {
		l.publisher.Publish(a)
	}

	l.guidance.LastAudio = kind
	l.guidance.LastAudioTime = now
	l.guidance.Alerts++
}

// Close sends any queued alerts and stops the publishing goroutine. It does
// not close the camera, the detector or the publisher.
func (l *FrameLoop) Close() error {
	if l.publisher == nil {
		return nil
	}
	return l.publisher.Close()
}

// Engine returns the loop's engine state, for tests and diagnostics.
func (l *FrameLoop) Engine() logic.DebounceState {
	return l.engine.State()
}
