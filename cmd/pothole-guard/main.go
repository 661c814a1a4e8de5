// Command pothole-guard runs the walking-aid daemon: it watches the path
// ahead with a camera and an ultrasonic ranger and speaks directional cues.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sweeney/pothole-guard/internal/audio"
	"github.com/sweeney/pothole-guard/internal/config"
	"github.com/sweeney/pothole-guard/internal/gpio"
	"github.com/sweeney/pothole-guard/internal/gps"
	"github.com/sweeney/pothole-guard/internal/mqtt"
	"github.com/sweeney/pothole-guard/internal/pipeline"
	"github.com/sweeney/pothole-guard/internal/status"
	"github.com/sweeney/pothole-guard/internal/vision"
	"github.com/sweeney/pothole-guard/internal/web"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.LookupEnv)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config) error {
	// Camera and model are required; everything else degrades.
	cam, err := vision.OpenCamera(cfg.CameraConfig())
	if err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	defer cam.Close()

	det, err := vision.NewYOLO(cfg.ModelPath)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	defer det.Close()

	player, err := audio.NewCommandPlayer(cfg.AudioMethod)
	if err != nil {
		return err
	}
	assets := audio.ScanAssets(cfg.AudioDir)
	if missing := assets.Missing(); len(missing) > 0 {
		log.Printf("audio: no file for %v in %s", missing, cfg.AudioDir)
	}

	tracker := status.NewTracker(time.Now(), cfg.StatusConfig(fmt.Sprintf("/dev/video%d", cam.Index())), cfg.RuntimeParams())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	d := &daemon{
		tracker:   tracker,
		intervals: defaultIntervals(),
		now:       time.Now,
	}

	if r, err := gpio.NewRealRanger(cfg.TrigPin, cfg.EchoPin); err != nil {
		log.Printf("ultrasonic unavailable: %v", err)
	} else {
		defer r.Close()
		d.ranger = r
		log.Printf("ultrasonic ready TRIG=%d ECHO=%d (BCM)", cfg.TrigPin, cfg.EchoPin)
	}

	if cfg.GPSPort != "" {
		if g, err := gps.NewSerialReader(cfg.GPSPort, cfg.GPSBaud); err != nil {
			log.Printf("gps unavailable: %v", err)
		} else {
			defer g.Close()
			d.gps = g
			log.Printf("gps serial opened on %s@%d", cfg.GPSPort, cfg.GPSBaud)
		}
	}

	if cfg.Broker != "" {
		hr := mqtt.NewHeartRateRegister()
		client, err := mqtt.NewRealClient(mqtt.Options{
			Broker:             cfg.Broker,
			HeartRate:          hr,
			OnConnectionChange: tracker.SetMQTTConnected,
		})
		if err != nil {
			log.Printf("mqtt unavailable: %v", err)
		} else {
			defer client.Close()
			d.publisher = client
			d.mqttStatus = client
			d.heart = hr
		}
	}

	d.frames = pipeline.NewFrameLoop(pipeline.FrameConfig{
		Thresholds: cfg.Thresholds(),
		Engine:     cfg.EngineConfig(),
		Warn1:      cfg.Warn1,
		Warn2:      cfg.Warn2,
	}, cam, det, audio.NewDispatcher(assets, player), d.publisher, tracker)

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	log.Printf("started: model=%s conf=%v imgsz=%d broker=%q heartbeat=%v",
		cfg.ModelPath, cfg.Conf, cfg.ImgSz, cfg.Broker, cfg.Heartbeat)

	var heartbeat <-chan time.Time
	if cfg.Heartbeat > 0 {
		ticker := time.NewTicker(cfg.Heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return d.runLoop(heartbeat, sigCh)
}

type intervals struct {
	distance time.Duration
	heart    time.Duration
}

func defaultIntervals() intervals {
	return intervals{
		distance: pipeline.DefaultDistanceInterval,
		heart:    pipeline.DefaultHeartInterval,
	}
}

// daemon holds the wired components. Optional producers are nil when their
// capability was not found at startup.
type daemon struct {
	tracker    *status.Tracker
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	ranger     gpio.Ranger
	gps        pipeline.FixSource
	heart      pipeline.HeartSource
	frames     *pipeline.FrameLoop
	intervals  intervals
	now        func() time.Time
}

// runLoop starts every producer and blocks until a signal arrives or a
// producer fails. STARTUP and SHUTDOWN events bracket the run; a HEARTBEAT
// is published on every heartbeat tick.
func (d *daemon) runLoop(heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	d.publishSystem("STARTUP", "", true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if d.ranger != nil {
		d.tracker.PublishDistance(status.Distance{Ready: true})
		g.Go(func() error { return pipeline.DistanceLoop(gctx, d.ranger, d.tracker, d.intervals.distance) })
	}
	if d.gps != nil {
		d.tracker.PublishGPS(status.GPSFix{Ready: true})
		g.Go(func() error { return pipeline.GPSLoop(gctx, d.gps, d.tracker) })
	}
	if d.heart != nil {
		g.Go(func() error { return pipeline.HeartLoop(gctx, d.heart, d.tracker, d.intervals.heart) })
	}
	g.Go(func() error { return d.frames.Run(gctx) })

	reason := ""
	for reason == "" {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			reason = signalName(s)
		case <-gctx.Done():
			reason = "ERROR"
		case <-heartbeat:
			if net := readNetworkInfo(); net != nil {
				d.tracker.SetNetwork(net)
			}
			snap := d.tracker.Snapshot()
			log.Printf("heartbeat: uptime=%v alerts=%d fps=%.1f", snap.Uptime().Truncate(time.Second), snap.Guidance.Alerts, snap.Frames.FPS)
			d.publishSystem("HEARTBEAT", "", false)
		}
	}

	cancel()
	err := g.Wait()
	d.frames.Close()
	d.publishSystem("SHUTDOWN", reason, true)
	return err
}

// publishSystem sends a lifecycle event carrying the full status snapshot.
func (d *daemon) publishSystem(event, reason string, retained bool) {
	if d.publisher == nil {
		return
	}
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
	snap := d.tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  d.now(),
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
		return
	}
	if event != "HEARTBEAT" {
		log.Printf("published %s event", event)
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
