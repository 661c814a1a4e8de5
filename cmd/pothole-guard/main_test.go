package main

import (
	"encoding/json"
	"fmt"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/pothole-guard/internal/audio"
	"github.com/sweeney/pothole-guard/internal/gpio"
	"github.com/sweeney/pothole-guard/internal/gps"
	"github.com/sweeney/pothole-guard/internal/logic"
	"github.com/sweeney/pothole-guard/internal/mqtt"
	"github.com/sweeney/pothole-guard/internal/pipeline"
	"github.com/sweeney/pothole-guard/internal/status"
	"github.com/sweeney/pothole-guard/internal/vision"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	got := readNetworkInfo()
	want := &status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	assert.Equal(t, want, got)
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "")

	info := readNetworkInfo()
	require.NotNil(t, info)
	assert.Equal(t, "connected", info.Status)
	assert.Empty(t, info.IP)
}

func TestSignalName(t *testing.T) {
	assert.Equal(t, "SIGINT", signalName(syscall.SIGINT))
	assert.Equal(t, "SIGTERM", signalName(syscall.SIGTERM))
	assert.Equal(t, "UNKNOWN", signalName(syscall.SIGHUP))
}

// --- runLoop tests ---

type fixture struct {
	d      *daemon
	cam    *vision.FakeCamera
	det    *vision.FakeDetector
	player *audio.FakePlayer
	pub    *mqtt.FakePublisher
	tick   chan time.Time
	sig    chan os.Signal
	done   chan error
}

func newFixture(script ...[]logic.Box) *fixture {
	f := &fixture{
		cam:    vision.NewFakeCamera(0),
		det:    vision.NewFakeDetector(script...),
		player: audio.NewFakePlayer(),
		pub:    mqtt.NewFakePublisher(),
		tick:   make(chan time.Time),
		sig:    make(chan os.Signal, 1),
	}
	start := time.Date(2026, 3, 23, 7, 0, 0, 0, time.UTC)
	tr := status.NewTracker(start, status.Config{Model: "best_pothole.onnx", Camera: "/dev/video0"}, logic.DefaultRuntimeParams())
	assets := audio.Assets{
		logic.AlertFront: "sounds/depan.wav",
		logic.AlertLeft:  "sounds/kiri.wav",
		logic.AlertRight: "sounds/kanan.wav",
	}
	f.d = &daemon{
		tracker:    tr,
		publisher:  f.pub,
		mqttStatus: f.pub,
		intervals:  intervals{distance: time.Millisecond, heart: time.Millisecond},
		now:        func() time.Time { return start },
	}
	f.d.frames = pipeline.NewFrameLoop(pipeline.FrameConfig{
		Thresholds: logic.DefaultThresholds(),
		Engine:     logic.DefaultEngineConfig(),
		Warn1:      1.5,
		Warn2:      0.5,
	}, f.cam, f.det, audio.NewDispatcher(assets, f.player), f.pub, tr)
	return f
}

func (f *fixture) start() {
	f.done = make(chan error, 1)
	go func() { f.done <- f.d.runLoop(f.tick, f.sig) }()
}

func (f *fixture) stop(t *testing.T, s os.Signal) error {
	t.Helper()
	f.sig <- s
	select {
	case err := <-f.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("runLoop did not return")
		return nil
	}
}

func eventNames(evs []mqtt.SystemEvent) []string {
	var out []string
	for _, e := range evs {
		out = append(out, e.Event)
	}
	return out
}

func TestRunLoopStartupAndShutdown(t *testing.T) {
	f := newFixture()
	f.start()
	require.Eventually(t, func() bool { return f.cam.Reads() > 3 }, time.Second, time.Millisecond)

	require.NoError(t, f.stop(t, syscall.SIGTERM))

	evs := f.pub.SystemEvents()
	assert.Equal(t, []string{"STARTUP", "SHUTDOWN"}, eventNames(evs))
	assert.True(t, evs[0].Retained)
	assert.True(t, evs[1].Retained)
	assert.Equal(t, "SIGTERM", evs[1].Reason)

	var body map[string]any
	require.NoError(t, json.Unmarshal(evs[1].RawPayload, &body))
	assert.Equal(t, "SHUTDOWN", body["event"])
	assert.Equal(t, "SIGTERM", body["reason"])
	assert.Equal(t, "best_pothole.onnx", body["model"])
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	f := newFixture()
	f.start()
	require.NoError(t, f.stop(t, syscall.SIGINT))

	evs := f.pub.SystemEvents()
	require.NotEmpty(t, evs)
	last := evs[len(evs)-1]
	assert.Equal(t, "SHUTDOWN", last.Event)
	assert.Equal(t, "SIGINT", last.Reason)
}

func TestRunLoopHeartbeat(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "10.0.0.7")
	f := newFixture()
	f.pub.SetConnected(true)
	f.start()

	f.tick <- time.Time{}
	f.tick <- time.Time{}
	require.NoError(t, f.stop(t, syscall.SIGTERM))

	evs := f.pub.SystemEvents()
	assert.Equal(t, []string{"STARTUP", "HEARTBEAT", "HEARTBEAT", "SHUTDOWN"}, eventNames(evs))
	assert.False(t, evs[1].Retained, "heartbeats are not retained")

	var body status.StatusJSON
	require.NoError(t, json.Unmarshal(evs[1].RawPayload, &body))
	assert.Equal(t, "HEARTBEAT", body.Event)
	assert.True(t, body.MQTT.Connected)
	require.NotNil(t, body.Network)
	assert.Equal(t, "10.0.0.7", body.Network.IP)
}

func TestRunLoopDangerAlertFromRanger(t *testing.T) {
	f := newFixture()
	f.d.ranger = gpio.NewFakeRanger(gpio.Meters(0.3))
	f.start()

	require.Eventually(t, func() bool { return len(f.pub.Alerts()) > 0 }, 2*time.Second, time.Millisecond)
	require.NoError(t, f.stop(t, syscall.SIGTERM))

	a := f.pub.Alerts()[0]
	assert.Equal(t, logic.AlertFront, a.Kind)
	require.True(t, a.Distance.Valid)
	assert.InDelta(t, 0.3, a.Distance.Value, 1e-9)
	assert.Contains(t, f.player.Played(), "sounds/depan.wav")

	snap := f.d.tracker.Snapshot()
	assert.True(t, snap.Distance.Ready)
	assert.Equal(t, logic.LevelDanger, snap.Guidance.Level)
}

func TestRunLoopProducersFeedTracker(t *testing.T) {
	const rmc = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230326,003.1,W*63"
	f := newFixture()
	f.d.gps = gps.NewReader(gps.NewFakePort(rmc))
	hr := mqtt.NewHeartRateRegister()
	require.NoError(t, hr.Update([]byte(`{"bpm": 72, "spo2": 98}`)))
	f.d.heart = hr
	f.start()

	require.Eventually(t, func() bool {
		s := f.d.tracker.Snapshot()
		return s.GPS.HasPosition && s.HeartRate.BPM.Valid
	}, 2*time.Second, time.Millisecond)
	require.NoError(t, f.stop(t, syscall.SIGTERM))

	s := f.d.tracker.Snapshot()
	assert.True(t, s.GPS.Ready)
	assert.InDelta(t, 48.1173, s.GPS.Lat, 1e-4)
	assert.True(t, s.HeartRate.Ready)
	assert.InDelta(t, 72, s.HeartRate.BPM.Value, 1e-9)
}

func TestRunLoopCameraUnavailable(t *testing.T) {
	f := newFixture()
	f.cam.Err = fmt.Errorf("camera: %w", logic.ErrSensorUnavailable)
	f.start()

	select {
	case err := <-f.done:
		assert.ErrorIs(t, err, logic.ErrSensorUnavailable)
	case <-time.After(2 * time.Second):
		t.Fatal("runLoop did not return after camera loss")
	}

	evs := f.pub.SystemEvents()
	require.Len(t, evs, 2)
	assert.Equal(t, "SHUTDOWN", evs[1].Event)
	assert.Equal(t, "ERROR", evs[1].Reason)
}

func TestRunLoopWithoutBroker(t *testing.T) {
	f := newFixture()
	f.d.publisher = nil
	f.d.mqttStatus = nil
	f.d.frames = pipeline.NewFrameLoop(pipeline.FrameConfig{
		Thresholds: logic.DefaultThresholds(),
		Engine:     logic.DefaultEngineConfig(),
		Warn1:      1.5,
		Warn2:      0.5,
	}, f.cam, f.det, audio.NewDispatcher(audio.Assets{}, f.player), nil, f.d.tracker)
	f.start()
	require.Eventually(t, func() bool { return f.cam.Reads() > 3 }, time.Second, time.Millisecond)
	require.NoError(t, f.stop(t, syscall.SIGTERM))
	assert.Empty(t, f.pub.SystemEvents())
}

func TestRunLoopSystemPublishErrorIsNotFatal(t *testing.T) {
	f := newFixture()
	f.pub.PublishSystemError = fmt.Errorf("broker unavailable")
	f.start()
	f.tick <- time.Time{}
	assert.NoError(t, f.stop(t, syscall.SIGTERM))
}
