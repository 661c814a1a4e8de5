// Package status holds the fusion state of the daemon: one last-value-wins
// register per field group, each owned by a single producer. It is read by
// the HTTP handlers, the websocket feed and MQTT system events.
package status

import (
	"sync/atomic"
	"time"

	"github.com/sweeney/pothole-guard/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Model       string
	Camera      string
	LeftThresh  float64
	RightThresh float64
	MinPersist  int
	Warn1       float64
	Warn2       float64
	CooldownMs  int64
	Broker      string
	HTTPAddr    string
}

// Distance is the distance field group.
type Distance struct {
	Ready   bool // sensor present
	Reading logic.Reading[float64]
}

// GPSFix is the GPS field group. Lat/Lon are unknown when HasPosition is false.
type GPSFix struct {
	Ready       bool
	HasPosition bool
	Lat         float64
	Lon         float64
	HasSpeed    bool
	SpeedKmh    float64
	TimeUTC     time.Time // zero when the sentence carried no date/time
	Valid       bool      // receiver reports an active fix
	Received    time.Time
}

// HeartRate is the heart-rate field group.
type HeartRate struct {
	Ready bool
	BPM   logic.Reading[float64]
	SpO2  logic.Reading[float64]
}

// Guidance is the frame loop's field group: what it decided last.
// Direction is the result of the last frame that ran the detector; frames
// that skip detection (decimated, detection off, detector error) leave it
// unchanged.
type Guidance struct {
	Direction     logic.Direction
	Level         logic.Level
	LastAudio     logic.AlertKind
	LastAudioTime time.Time
	Alerts        int
}

// Frames is the frame-rate field group.
type Frames struct {
	FPS       float64
	Processed uint64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after it is returned.
type Snapshot struct {
	Distance      Distance
	GPS           GPSFix
	HeartRate     HeartRate
	Guidance      Guidance
	Frames        Frames
	Params        logic.RuntimeParams
	DetectEnabled bool
	MQTTConnected bool
	Network       *NetworkInfo
	StartTime     time.Time
	Now           time.Time
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker is the fusion state. Every field group lives behind its own
// atomic pointer: a writer swaps in a fresh value, a reader loads it, so
// Snapshot never blocks a producer and never sees half a group.
type Tracker struct {
	distance  atomic.Pointer[Distance]
	gps       atomic.Pointer[GPSFix]
	heart     atomic.Pointer[HeartRate]
	guidance  atomic.Pointer[Guidance]
	frames    atomic.Pointer[Frames]
	params    atomic.Pointer[logic.RuntimeParams]
	jpeg      atomic.Pointer[[]byte]
	network   atomic.Pointer[NetworkInfo]
	detect    atomic.Bool
	connected atomic.Bool

	startTime time.Time
	cfg       Config
	now       func() time.Time
}

// NewTracker creates a Tracker with the given start time, config and initial
// runtime params. Detection starts enabled; every sensor group starts unknown.
func NewTracker(startTime time.Time, cfg Config, params logic.RuntimeParams) *Tracker {
	t := &Tracker{
		startTime: startTime,
		cfg:       cfg,
		now:       time.Now,
	}
	t.distance.Store(&Distance{})
	t.gps.Store(&GPSFix{})
	t.heart.Store(&HeartRate{})
	t.guidance.Store(&Guidance{Direction: logic.DirectionNone, Level: logic.LevelUnknown})
	t.frames.Store(&Frames{})
	t.params.Store(&params)
	t.detect.Store(true)
	return t
}

// PublishDistance replaces the distance group. Called by the distance loop.
func (t *Tracker) PublishDistance(d Distance) {
	t.distance.Store(&d)
}

// PublishGPS replaces the GPS group. Called by the GPS loop.
func (t *Tracker) PublishGPS(g GPSFix) {
	t.gps.Store(&g)
}

// PublishHeartRate replaces the heart-rate group. Called by the heart-rate loop.
func (t *Tracker) PublishHeartRate(h HeartRate) {
	t.heart.Store(&h)
}

// PublishGuidance replaces the guidance group. Called by the frame loop.
func (t *Tracker) PublishGuidance(g Guidance) {
	t.guidance.Store(&g)
}

// PublishFrames replaces the frame-rate group. Called by the frame loop.
func (t *Tracker) PublishFrames(f Frames) {
	t.frames.Store(&f)
}

// PublishFrame stores the latest encoded frame. The slice must not be
// modified after the call.
func (t *Tracker) PublishFrame(jpeg []byte) {
	t.jpeg.Store(&jpeg)
}

// LatestFrame returns the latest encoded frame, or nil before the first one.
func (t *Tracker) LatestFrame() []byte {
	p := t.jpeg.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Distance returns the most recently published distance reading.
func (t *Tracker) Distance() logic.Reading[float64] {
	return t.distance.Load().Reading
}

// SetDetectEnabled turns detection on or off.
func (t *Tracker) SetDetectEnabled(on bool) {
	t.detect.Store(on)
}

// ToggleDetect flips detection and returns the new value.
func (t *Tracker) ToggleDetect() bool {
	for {
		old := t.detect.Load()
		if t.detect.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// DetectEnabled reports whether detection is on.
func (t *Tracker) DetectEnabled() bool {
	return t.detect.Load()
}

// RuntimeParams returns the current detector settings.
func (t *Tracker) RuntimeParams() logic.RuntimeParams {
	return *t.params.Load()
}

// SetRuntimeParams applies the valid subset of u. Rejected fields keep their
// previous value and are reported in the error. The applied params are
// returned either way.
func (t *Tracker) SetRuntimeParams(u logic.ParamsUpdate) (logic.RuntimeParams, error) {
	for {
		old := t.params.Load()
		next, err := old.Apply(u)
		if t.params.CompareAndSwap(old, &next) {
			return next, err
		}
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.connected.Store(connected)
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.network.Store(info)
}

// Snapshot returns a point-in-time copy of the daemon state. Groups are
// individually consistent; no ordering between groups is implied.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	s := Snapshot{
		Distance:      *t.distance.Load(),
		GPS:           *t.gps.Load(),
		HeartRate:     *t.heart.Load(),
		Guidance:      *t.guidance.Load(),
		Frames:        *t.frames.Load(),
		Params:        *t.params.Load(),
		DetectEnabled: t.detect.Load(),
		MQTTConnected: t.connected.Load(),
		StartTime:     t.startTime,
		Config:        t.cfg,
	}
	if n := t.network.Load(); n != nil {
		cp := *n
		s.Network = &cp
	}
	s.Now = t.now()
	return s
}
