package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/pothole-guard/internal/audio"
	"github.com/sweeney/pothole-guard/internal/logic"
	"github.com/sweeney/pothole-guard/internal/mqtt"
	"github.com/sweeney/pothole-guard/internal/status"
	"github.com/sweeney/pothole-guard/internal/vision"
)

var t0 = time.Date(2026, 3, 23, 7, 0, 0, 0, time.UTC)

// clock advances by step on every call.
type clock struct {
	t    time.Time
	step time.Duration
}

func (c *clock) now() time.Time {
	t := c.t
	c.t = c.t.Add(c.step)
	return t
}

var (
	leftBox  = logic.Box{X1: 40, Y1: 200, X2: 160, Y2: 420, Confidence: 0.8}  // nx ~0.16 at 640px
	rightBox = logic.Box{X1: 500, Y1: 200, X2: 620, Y2: 420, Confidence: 0.8} // nx ~0.87
)

type harness struct {
	loop   *FrameLoop
	cam    *vision.FakeCamera
	det    *vision.FakeDetector
	player *audio.FakePlayer
	pub    *mqtt.FakePublisher
	tr     *status.Tracker
	clk    *clock
}

func newHarness(t *testing.T, script ...[]logic.Box) *harness {
	t.Helper()
	h := &harness{
		cam:    vision.NewFakeCamera(0),
		det:    vision.NewFakeDetector(script...),
		player: audio.NewFakePlayer(),
		pub:    mqtt.NewFakePublisher(),
		tr:     status.NewTracker(t0, status.Config{}, logic.DefaultRuntimeParams()),
		clk:    &clock{t: t0, step: 5 * time.Millisecond},
	}
	assets := audio.Assets{
		logic.AlertFront: "/snd/depan.wav",
		logic.AlertLeft:  "/snd/kiri.wav",
		logic.AlertRight: "/snd/kanan.wav",
	}
	cfg := FrameConfig{
		Thresholds: logic.DefaultThresholds(),
		Engine:     logic.DefaultEngineConfig(),
		Warn1:      1.0,
		Warn2:      0.5,
	}
	h.loop = NewFrameLoop(cfg, h.cam, h.det, audio.NewDispatcher(assets, h.player), h.pub, h.tr)
	h.loop.now = h.clk.now
	t.Cleanup(func() { h.loop.Close() })
	ids := 0
	h.loop.newID = func() string {
		ids++
		return fmt.Sprintf("alert-%d", ids)
	}
	return h
}

func (h *harness) steps(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, h.loop.Step())
	}
}

func TestFrameLoop_LeftAfterPersistence(t *testing.T) {
	h := newHarness(t, []logic.Box{leftBox})

	h.steps(t, 2)
	assert.Empty(t, h.player.Played(), "below persistence")

	h.steps(t, 1)
	assert.Equal(t, []string{"/snd/kiri.wav"}, h.player.Played())

	require.NoError(t, h.loop.Close())
	alerts := h.pub.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "alert-1", alerts[0].ID)
	assert.Equal(t, logic.AlertLeft, alerts[0].Kind)
	assert.Equal(t, logic.DirectionLeft, alerts[0].Direction)
	assert.False(t, alerts[0].Distance.Valid)
	assert.Equal(t, logic.LevelUnknown, alerts[0].Level)

	g := h.tr.Snapshot().Guidance
	assert.Equal(t, logic.DirectionLeft, g.Direction)
	assert.Equal(t, logic.AlertLeft, g.LastAudio)
	assert.Equal(t, 1, g.Alerts)
}

func TestFrameLoop_PersistenceRestartsAfterFire(t *testing.T) {
	h := newHarness(t, []logic.Box{rightBox})
	h.loop.cfg.Engine.Cooldown = 0
	h.loop.engine = logic.NewEngine(h.loop.cfg.Engine)

	h.steps(t, 6)
	assert.Len(t, h.player.Played(), 2, "fires on frames 3 and 6")
}

func TestFrameLoop_DangerOverride(t *testing.T) {
	h := newHarness(t, []logic.Box{leftBox})
	h.tr.PublishDistance(status.Distance{Ready: true, Reading: logic.NewReading(0.3, t0)})

	h.steps(t, 1)
	assert.Equal(t, []string{"/snd/depan.wav"}, h.player.Played())

	h.steps(t, 5)
	assert.Len(t, h.player.Played(), 1, "same kind inside cooldown")
	assert.Equal(t, 0, h.loop.Engine().PersistCount, "danger frames reset persistence")

	h.clk.t = h.clk.t.Add(3 * time.Second)
	h.steps(t, 1)
	assert.Len(t, h.player.Played(), 2, "cooldown elapsed")

	require.NoError(t, h.loop.Close())
	alerts := h.pub.Alerts()
	require.Len(t, alerts, 2)
	assert.Equal(t, logic.AlertFront, alerts[0].Kind)
	assert.Equal(t, 0.3, alerts[0].Distance.Value)
	assert.Equal(t, logic.LevelDanger, alerts[0].Level)
	assert.Equal(t, logic.LevelDanger, h.tr.Snapshot().Guidance.Level)
}

func TestFrameLoop_Decimation(t *testing.T) {
	h := newHarness(t, []logic.Box{leftBox})
	n := 2
	_, err := h.tr.SetRuntimeParams(logic.ParamsUpdate{ProcessEveryN: &n})
	require.NoError(t, err)

	// Detection on frames 0, 2, 4; skipped frames keep persistence.
	h.steps(t, 4)
	assert.Equal(t, 2, h.det.Calls())
	assert.Empty(t, h.player.Played())

	h.steps(t, 1)
	assert.Equal(t, 3, h.det.Calls())
	assert.Equal(t, []string{"/snd/kiri.wav"}, h.player.Played())
}

func TestFrameLoop_DirectionHeldOnSkippedFrames(t *testing.T) {
	h := newHarness(t, []logic.Box{leftBox}, nil)
	n := 2
	_, err := h.tr.SetRuntimeParams(logic.ParamsUpdate{ProcessEveryN: &n})
	require.NoError(t, err)

	h.steps(t, 2)
	assert.Equal(t, 1, h.det.Calls())
	assert.Equal(t, logic.DirectionLeft, h.tr.Snapshot().Guidance.Direction, "frame 1 skipped detection")

	h.steps(t, 1)
	assert.Equal(t, logic.DirectionNone, h.tr.Snapshot().Guidance.Direction)
}

func TestFrameLoop_DetectDisabled(t *testing.T) {
	h := newHarness(t, []logic.Box{leftBox})
	h.tr.SetDetectEnabled(false)

	h.steps(t, 5)
	assert.Equal(t, 0, h.det.Calls())
	assert.Empty(t, h.player.Played())
	assert.Equal(t, logic.DirectionNone, h.tr.Snapshot().Guidance.Direction)

	// Danger still fires without detection.
	h.tr.PublishDistance(status.Distance{Ready: true, Reading: logic.NewReading(0.2, t0)})
	h.steps(t, 1)
	assert.Equal(t, []string{"/snd/depan.wav"}, h.player.Played())
}

func TestFrameLoop_PassesRuntimeParams(t *testing.T) {
	h := newHarness(t)
	conf, imgsz := 0.55, 640
	_, err := h.tr.SetRuntimeParams(logic.ParamsUpdate{Conf: &conf, ImgSz: &imgsz})
	require.NoError(t, err)

	h.steps(t, 1)
	params := h.det.Params()
	require.Len(t, params, 1)
	assert.Equal(t, logic.RuntimeParams{Conf: 0.55, ImgSz: 640, ProcessEveryN: 1}, params[0])
}

func TestFrameLoop_DetectorErrorKeepsPersistence(t *testing.T) {
	h := newHarness(t, []logic.Box{leftBox})
	h.steps(t, 2)

	h.det.Err = errors.New("inference failed")
	h.steps(t, 1)
	assert.Equal(t, 2, h.loop.Engine().PersistCount)

	h.det.Err = nil
	h.steps(t, 1)
	assert.Equal(t, []string{"/snd/kiri.wav"}, h.player.Played())
}

func TestFrameLoop_PublishesFrames(t *testing.T) {
	h := newHarness(t)
	h.steps(t, 3)

	snap := h.tr.Snapshot()
	assert.Equal(t, uint64(3), snap.Frames.Processed)
	assert.Greater(t, snap.Frames.FPS, 0.0)
	assert.Equal(t, []byte{0xff, 0xd8, 3, 0xff, 0xd9}, h.tr.LatestFrame())
	assert.Equal(t, logic.LevelUnknown, snap.Guidance.Level)
}

func TestFrameLoop_FPS(t *testing.T) {
	h := newHarness(t)
	h.steps(t, 1)

	// 5ms per frame: inst = 200, first EWMA step = 0.2*200
	assert.InDelta(t, 40.0, h.tr.Snapshot().Frames.FPS, 1e-9)
}

func TestFrameLoop_PublishErrorDoesNotStopDispatch(t *testing.T) {
	h := newHarness(t)
	h.pub.PublishError = errors.New("broker down")
	h.tr.PublishDistance(status.Distance{Ready: true, Reading: logic.NewReading(0.3, t0)})

	h.steps(t, 1)
	assert.Equal(t, []string{"/snd/depan.wav"}, h.player.Played())
	assert.Equal(t, 1, h.tr.Snapshot().Guidance.Alerts)
}

// stalledBroker is a Publisher whose Publish blocks until release is closed.
type stalledBroker struct {
	*mqtt.FakePublisher
	release chan struct{}
}

func (b *stalledBroker) Publish(a logic.Alert) error {
	<-b.release
	return b.FakePublisher.Publish(a)
}

func TestFrameLoop_SlowBrokerDoesNotHoldFrames(t *testing.T) {
	h := newHarness(t)
	broker := &stalledBroker{FakePublisher: mqtt.NewFakePublisher(), release: make(chan struct{})}
	require.NoError(t, h.loop.Close())
	h.loop = NewFrameLoop(h.loop.cfg, h.cam, h.det, h.loop.dispatcher, broker, h.tr)
	h.loop.now = h.clk.now
	h.tr.PublishDistance(status.Distance{Ready: true, Reading: logic.NewReading(0.3, t0)})

	start := time.Now()
	h.steps(t, 5)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "frames must not wait on the broker")
	assert.Equal(t, []string{"/snd/depan.wav"}, h.player.Played())
	assert.Equal(t, uint64(5), h.tr.Snapshot().Frames.Processed)

	close(broker.release)
	require.NoError(t, h.loop.Close())
	require.Len(t, broker.Alerts(), 1)
	assert.Equal(t, logic.AlertFront, broker.Alerts()[0].Kind)
}

func TestFrameLoop_NilPublisher(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.loop.Close())
	h.loop.publisher = nil
	h.tr.PublishDistance(status.Distance{Ready: true, Reading: logic.NewReading(0.3, t0)})

	h.steps(t, 1)
	assert.Len(t, h.player.Played(), 1)
}

func TestFrameLoop_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	h.cam.Limit = 10

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.loop.Run(ctx) }()

	require.Eventually(t, func() bool { return h.cam.Reads() == 10 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestFrameLoop_RunEndsOnUnavailableCamera(t *testing.T) {
	h := newHarness(t)
	h.cam.Err = fmt.Errorf("camera unplugged: %w", logic.ErrSensorUnavailable)

	err := h.loop.Run(context.Background())
	assert.ErrorIs(t, err, logic.ErrSensorUnavailable)
}
