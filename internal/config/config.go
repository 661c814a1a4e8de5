// Package config loads daemon settings from environment variables and
// command-line flags. Flags win over the environment; the environment wins
// over built-in defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sweeney/pothole-guard/internal/audio"
	"github.com/sweeney/pothole-guard/internal/gpio"
	"github.com/sweeney/pothole-guard/internal/gps"
	"github.com/sweeney/pothole-guard/internal/logic"
	"github.com/sweeney/pothole-guard/internal/status"
	"github.com/sweeney/pothole-guard/internal/vision"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full daemon configuration.
type Config struct {
	// Direction and gating
	LeftThresh    float64
	RightThresh   float64
	MinPersist    int
	Warn1         float64 // caution distance (m)
	Warn2         float64 // danger distance (m), also the Front override
	AudioCooldown time.Duration

	// Detector
	ModelPath     string
	Conf          float64
	ImgSz         int
	ProcessEveryN int

	// Camera
	CameraIndex int
	Width       int
	Height      int

	// Sensors
	TrigPin int
	EchoPin int
	GPSPort string
	GPSBaud int

	// Audio
	AudioDir    string
	AudioMethod string

	// Outer surfaces
	HTTPAddr  string // empty disables the status server
	Broker    string // empty disables MQTT
	Heartbeat time.Duration
}

// Default returns the built-in settings.
func Default() Config {
	th := logic.DefaultThresholds()
	rp := logic.DefaultRuntimeParams()
	cam := vision.DefaultCameraConfig()
	return Config{
		LeftThresh:    th.Left,
		RightThresh:   th.Right,
		MinPersist:    logic.DefaultEngineConfig().MinPersist,
		Warn1:         1.5,
		Warn2:         0.5,
		AudioCooldown: logic.DefaultEngineConfig().Cooldown,
		ModelPath:     "best_pothole.onnx",
		Conf:          rp.Conf,
		ImgSz:         rp.ImgSz,
		ProcessEveryN: rp.ProcessEveryN,
		CameraIndex:   cam.Index,
		Width:         cam.Width,
		Height:        cam.Height,
		TrigPin:       gpio.DefaultPinTrig,
		EchoPin:       gpio.DefaultPinEcho,
		GPSPort:       gps.DefaultPort,
		GPSBaud:       gps.DefaultBaud,
		AudioDir:      audio.DefaultDir,
		AudioMethod:   audio.DefaultMethod,
		HTTPAddr:      ":5000",
		Heartbeat:     15 * time.Minute,
	}
}

// env reads typed values from an environment lookup and collects parse errors.
type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) strVar(name string, dst *string) {
	if v, ok := e.lookup(name); ok && v != "" {
		*dst = v
	}
}

func (e *env) intVar(name string, dst *int) {
	if v, ok := e.lookup(name); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%w: %s=%q: not an integer", ErrInvalid, name, v))
			return
		}
		*dst = n
	}
}

func (e *env) floatVar(name string, dst *float64) {
	if v, ok := e.lookup(name); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || !finite(f) {
			e.errs = append(e.errs, fmt.Errorf("%w: %s=%q: not a finite number", ErrInvalid, name, v))
			return
		}
		*dst = f
	}
}

// seconds reads a plain number of seconds, like AUDIO_COOLDOWN=2.5.
func (e *env) secondsVar(name string, dst *time.Duration) {
	var f float64
	if v, ok := e.lookup(name); !ok || v == "" {
		return
	}
	before := len(e.errs)
	e.floatVar(name, &f)
	if len(e.errs) == before {
		*dst = time.Duration(f * float64(time.Second))
	}
}

// fromEnv applies environment overrides to c.
func (c *Config) fromEnv(lookup func(string) (string, bool)) error {
	e := &env{lookup: lookup}
	e.floatVar("LEFT_THRESH", &c.LeftThresh)
	e.floatVar("RIGHT_THRESH", &c.RightThresh)
	e.intVar("MIN_PERSIST_FRM", &c.MinPersist)
	e.floatVar("DIST_WARN1", &c.Warn1)
	e.floatVar("DIST_WARN2", &c.Warn2)
	e.secondsVar("AUDIO_COOLDOWN", &c.AudioCooldown)
	e.strVar("MODEL_PATH", &c.ModelPath)
	e.floatVar("CONF", &c.Conf)
	e.intVar("IMGSZ", &c.ImgSz)
	e.intVar("PROCESS_EVERY_N", &c.ProcessEveryN)
	e.intVar("CAMERA_INDEX", &c.CameraIndex)
	e.intVar("WIDTH", &c.Width)
	e.intVar("HEIGHT", &c.Height)
	e.intVar("TRIG_PIN", &c.TrigPin)
	e.intVar("ECHO_PIN", &c.EchoPin)
	e.strVar("GPS_PORT", &c.GPSPort)
	e.intVar("GPS_BAUD", &c.GPSBaud)
	e.strVar("AUDIO_DIR", &c.AudioDir)
	e.strVar("AUDIO_METHOD", &c.AudioMethod)
	e.strVar("MQTT_BROKER", &c.Broker)

	var port int
	e.intVar("PORT", &port)
	if port > 0 {
		c.HTTPAddr = fmt.Sprintf(":%d", port)
	}
	if v, ok := lookup("HTTP_ADDR"); ok {
		c.HTTPAddr = v
	}
	return errors.Join(e.errs...)
}

// Load builds the configuration from lookup (usually os.LookupEnv) and args
// (without the program name), then validates it.
func Load(args []string, lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	if err := c.fromEnv(lookup); err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("pothole-guard", flag.ContinueOnError)
	fs.Float64Var(&c.LeftThresh, "left-thresh", c.LeftThresh, "Normalised x below which an obstacle is on the left")
	fs.Float64Var(&c.RightThresh, "right-thresh", c.RightThresh, "Normalised x above which an obstacle is on the right")
	fs.IntVar(&c.MinPersist, "min-persist", c.MinPersist, "Frames a direction must persist before it is announced")
	fs.Float64Var(&c.Warn1, "warn1", c.Warn1, "Caution distance in meters")
	fs.Float64Var(&c.Warn2, "warn2", c.Warn2, "Danger distance in meters (triggers the front cue)")
	fs.DurationVar(&c.AudioCooldown, "cooldown", c.AudioCooldown, "Minimum time between two cues of the same kind")
	fs.StringVar(&c.ModelPath, "model", c.ModelPath, "Path to the YOLO ONNX model")
	fs.Float64Var(&c.Conf, "conf", c.Conf, "Detection confidence threshold")
	fs.IntVar(&c.ImgSz, "imgsz", c.ImgSz, "Detector input size in pixels")
	fs.IntVar(&c.ProcessEveryN, "process-every-n", c.ProcessEveryN, "Run detection on every Nth frame")
	fs.IntVar(&c.CameraIndex, "camera", c.CameraIndex, "Camera /dev/video index (-1 to probe)")
	fs.IntVar(&c.Width, "width", c.Width, "Capture width")
	fs.IntVar(&c.Height, "height", c.Height, "Capture height")
	fs.IntVar(&c.TrigPin, "pin-trig", c.TrigPin, "BCM pin number for the ultrasonic trigger")
	fs.IntVar(&c.EchoPin, "pin-echo", c.EchoPin, "BCM pin number for the ultrasonic echo")
	fs.StringVar(&c.GPSPort, "gps-port", c.GPSPort, "GPS serial device (empty to disable)")
	fs.IntVar(&c.GPSBaud, "gps-baud", c.GPSBaud, "GPS serial baud rate")
	fs.StringVar(&c.AudioDir, "audio-dir", c.AudioDir, "Directory holding the cue files")
	fs.StringVar(&c.AudioMethod, "audio-method", c.AudioMethod, "Audio player: aplay, paplay, ffplay or mpg123")
	fs.StringVar(&c.HTTPAddr, "http", c.HTTPAddr, "HTTP status address (empty to disable)")
	fs.StringVar(&c.Broker, "broker", c.Broker, "MQTT broker address (empty to disable)")
	fs.DurationVar(&c.Heartbeat, "heartbeat", c.Heartbeat, "Heartbeat interval (0 to disable)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every setting that is out of range.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"left threshold", c.LeftThresh},
		{"right threshold", c.RightThresh},
		{"caution distance", c.Warn1},
		{"danger distance", c.Warn2},
		{"confidence", c.Conf},
	} {
		if !finite(f.v) {
			bad("%s %v is not a finite number", f.name, f.v)
		}
	}
	if c.LeftThresh <= 0 || c.LeftThresh >= 1 {
		bad("left threshold %v not in (0,1)", c.LeftThresh)
	}
	if c.RightThresh <= 0 || c.RightThresh >= 1 {
		bad("right threshold %v not in (0,1)", c.RightThresh)
	}
	if c.LeftThresh >= c.RightThresh {
		bad("left threshold %v must be below right threshold %v", c.LeftThresh, c.RightThresh)
	}
	if c.MinPersist < 1 {
		bad("min persist %d must be at least 1", c.MinPersist)
	}
	if c.Warn2 <= 0 || c.Warn2 >= c.Warn1 {
		bad("danger distance %v must be positive and below caution distance %v", c.Warn2, c.Warn1)
	}
	if c.AudioCooldown < 0 {
		bad("audio cooldown %v is negative", c.AudioCooldown)
	}
	if c.Width <= 0 || c.Height <= 0 {
		bad("capture size %dx%d", c.Width, c.Height)
	}
	if c.Heartbeat < 0 {
		bad("heartbeat %v is negative", c.Heartbeat)
	}
	if err := c.RuntimeParams().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Thresholds returns the direction split points.
func (c Config) Thresholds() logic.Thresholds {
	return logic.Thresholds{Left: c.LeftThresh, Right: c.RightThresh}
}

// EngineConfig returns the gating parameters. The danger distance doubles
// as the Front override.
func (c Config) EngineConfig() logic.EngineConfig {
	return logic.EngineConfig{
		DangerDist: c.Warn2,
		MinPersist: c.MinPersist,
		Cooldown:   c.AudioCooldown,
	}
}

// RuntimeParams returns the initial detector settings.
func (c Config) RuntimeParams() logic.RuntimeParams {
	return logic.RuntimeParams{Conf: c.Conf, ImgSz: c.ImgSz, ProcessEveryN: c.ProcessEveryN}
}

// CameraConfig returns the capture settings.
func (c Config) CameraConfig() vision.CameraConfig {
	return vision.CameraConfig{Index: c.CameraIndex, Width: c.Width, Height: c.Height}
}

// StatusConfig returns the settings shown on the status page.
func (c Config) StatusConfig(camera string) status.Config {
	return status.Config{
		Model:       filepath.Base(c.ModelPath),
		Camera:      camera,
		LeftThresh:  c.LeftThresh,
		RightThresh: c.RightThresh,
		MinPersist:  c.MinPersist,
		Warn1:       c.Warn1,
		Warn2:       c.Warn2,
		CooldownMs:  c.AudioCooldown.Milliseconds(),
		Broker:      c.Broker,
		HTTPAddr:    c.HTTPAddr,
	}
}
