package config

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/pothole-guard/internal/logic"
)

func envOf(kv map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := kv[k]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load(nil, envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, Default(), c)
	assert.Equal(t, 0.40, c.LeftThresh)
	assert.Equal(t, 0.60, c.RightThresh)
	assert.Equal(t, 3, c.MinPersist)
	assert.Equal(t, 1.5, c.Warn1)
	assert.Equal(t, 0.5, c.Warn2)
	assert.Equal(t, 2500*time.Millisecond, c.AudioCooldown)
	assert.Equal(t, logic.DefaultRuntimeParams(), c.RuntimeParams())
	assert.Equal(t, -1, c.CameraIndex)
	assert.Equal(t, ":5000", c.HTTPAddr)
	assert.Empty(t, c.Broker)
}

func TestLoadEnv(t *testing.T) {
	c, err := Load(nil, envOf(map[string]string{
		"LEFT_THRESH":     "0.3",
		"RIGHT_THRESH":    "0.7",
		"MIN_PERSIST_FRM": "5",
		"DIST_WARN1":      "2",
		"DIST_WARN2":      "0.8",
		"AUDIO_COOLDOWN":  "1.5",
		"CONF":            "0.45",
		"IMGSZ":           "320",
		"PROCESS_EVERY_N": "2",
		"MODEL_PATH":      "/opt/models/pothole.onnx",
		"CAMERA_INDEX":    "0",
		"GPS_PORT":        "/dev/ttyUSB0",
		"AUDIO_DIR":       "/opt/sounds",
		"AUDIO_METHOD":    "mpg123",
		"PORT":            "8080",
		"MQTT_BROKER":     "tcp://10.0.0.2:1883",
	}))
	require.NoError(t, err)

	assert.Equal(t, logic.Thresholds{Left: 0.3, Right: 0.7}, c.Thresholds())
	assert.Equal(t, logic.EngineConfig{DangerDist: 0.8, MinPersist: 5, Cooldown: 1500 * time.Millisecond}, c.EngineConfig())
	assert.Equal(t, logic.RuntimeParams{Conf: 0.45, ImgSz: 320, ProcessEveryN: 2}, c.RuntimeParams())
	assert.Equal(t, "/opt/models/pothole.onnx", c.ModelPath)
	assert.Equal(t, 0, c.CameraConfig().Index)
	assert.Equal(t, "/dev/ttyUSB0", c.GPSPort)
	assert.Equal(t, "/opt/sounds", c.AudioDir)
	assert.Equal(t, "mpg123", c.AudioMethod)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, "tcp://10.0.0.2:1883", c.Broker)
}

func TestLoadHTTPAddrBeatsPort(t *testing.T) {
	c, err := Load(nil, envOf(map[string]string{"PORT": "8080", "HTTP_ADDR": "127.0.0.1:9000"}))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", c.HTTPAddr)

	c, err = Load(nil, envOf(map[string]string{"HTTP_ADDR": ""}))
	require.NoError(t, err)
	assert.Empty(t, c.HTTPAddr, "explicit empty disables the server")
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	c, err := Load(
		[]string{"-conf", "0.6", "-cooldown", "4s", "-broker", "tcp://b:1883", "-http", ""},
		envOf(map[string]string{"CONF": "0.2", "MQTT_BROKER": "tcp://a:1883"}),
	)
	require.NoError(t, err)
	assert.Equal(t, 0.6, c.Conf)
	assert.Equal(t, 4*time.Second, c.AudioCooldown)
	assert.Equal(t, "tcp://b:1883", c.Broker)
	assert.Empty(t, c.HTTPAddr)
}

func TestLoadEnvParseErrors(t *testing.T) {
	_, err := Load(nil, envOf(map[string]string{"IMGSZ": "big", "CONF": "high"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Contains(t, err.Error(), "IMGSZ")
	assert.Contains(t, err.Error(), "CONF")
}

func TestLoadRejectsNonFiniteEnv(t *testing.T) {
	for _, tt := range []struct{ name, value string }{
		{"DIST_WARN2", "NaN"},
		{"LEFT_THRESH", "nan"},
		{"DIST_WARN1", "+Inf"},
		{"AUDIO_COOLDOWN", "NaN"},
		{"CONF", "-Inf"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(nil, envOf(map[string]string{tt.name: tt.value}))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.name)
		})
	}
}

func TestLoadRejectsNonFiniteFlags(t *testing.T) {
	_, err := Load([]string{"-warn2", "NaN"}, envOf(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load([]string{"-left-thresh", "NaN"}, envOf(nil))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadUnknownFlag(t *testing.T) {
	_, err := Load([]string{"-nope"}, envOf(nil))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"left out of range", func(c *Config) { c.LeftThresh = 0 }},
		{"right out of range", func(c *Config) { c.RightThresh = 1 }},
		{"left not below right", func(c *Config) { c.LeftThresh, c.RightThresh = 0.6, 0.4 }},
		{"zero persistence", func(c *Config) { c.MinPersist = 0 }},
		{"warn2 above warn1", func(c *Config) { c.Warn1, c.Warn2 = 0.5, 1.0 }},
		{"warn2 zero", func(c *Config) { c.Warn2 = 0 }},
		{"warn2 NaN", func(c *Config) { c.Warn2 = math.NaN() }},
		{"warn1 infinite", func(c *Config) { c.Warn1 = math.Inf(1) }},
		{"left NaN", func(c *Config) { c.LeftThresh = math.NaN() }},
		{"right NaN", func(c *Config) { c.RightThresh = math.NaN() }},
		{"negative cooldown", func(c *Config) { c.AudioCooldown = -time.Second }},
		{"bad capture size", func(c *Config) { c.Width = 0 }},
		{"conf out of range", func(c *Config) { c.Conf = 1.5 }},
		{"imgsz out of range", func(c *Config) { c.ImgSz = 64 }},
		{"process_n out of range", func(c *Config) { c.ProcessEveryN = 11 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestValidateReportsAll(t *testing.T) {
	c := Default()
	c.MinPersist = 0
	c.Conf = -1
	err := c.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorIs(t, err, logic.ErrParamRejected)
}

func TestStatusConfig(t *testing.T) {
	c := Default()
	c.ModelPath = "/opt/models/best_pothole.onnx"
	sc := c.StatusConfig("/dev/video0")
	assert.Equal(t, "best_pothole.onnx", sc.Model)
	assert.Equal(t, "/dev/video0", sc.Camera)
	assert.Equal(t, int64(2500), sc.CooldownMs)
}
