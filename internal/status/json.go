package status

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/pothole-guard/internal/logic"
)

// StatusJSON is the flat JSON document served by /index.json and /metrics.
// Unknown sensor values are null rather than stale or zero.
type StatusJSON struct {
	Event           string       `json:"event,omitempty"`
	Reason          string       `json:"reason,omitempty"`
	DistanceM       *float64     `json:"distance_m"`
	Level           string       `json:"level"`
	FPS             float64      `json:"fps"`
	Direction       *string      `json:"direction"`
	LastAudio       *string      `json:"last_audio"`
	Alerts          int          `json:"alerts"`
	GPS             GPSJSON      `json:"gps"`
	HR              HRJSON       `json:"hr"`
	DetectEnabled   bool         `json:"detect_enabled"`
	Conf            float64      `json:"conf"`
	ImgSz           int          `json:"imgsz"`
	ProcessN        int          `json:"process_n"`
	UltrasonicReady bool         `json:"ultrasonic_ready"`
	GPSReady        bool         `json:"gps_ready"`
	HRReady         bool         `json:"hr_ready"`
	Model           string       `json:"model"`
	Camera          string       `json:"camera"`
	UptimeSec       int64        `json:"uptime_sec"`
	UptimeHuman     string       `json:"uptime_human"`
	StartTime       string       `json:"start_time"`
	Timestamp       string       `json:"timestamp"`
	MQTT            MQTTStatus   `json:"mqtt"`
	Network         *NetworkJSON `json:"network,omitempty"`
	Config          ConfigJSON   `json:"config"`
}

// GPSJSON is the JSON representation of the GPS group.
type GPSJSON struct {
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	SpeedKmh *float64 `json:"speed_kmh"`
	TimeUTC  *string  `json:"time_utc"`
	Valid    bool     `json:"valid"`
}

// HRJSON is the JSON representation of the heart-rate group.
type HRJSON struct {
	BPM   *float64 `json:"bpm"`
	SpO2  *float64 `json:"spo2"`
	Ready bool     `json:"ready"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	LeftThresh  float64 `json:"left_thresh"`
	RightThresh float64 `json:"right_thresh"`
	MinPersist  int     `json:"min_persist_frm"`
	Warn1       float64 `json:"dist_warn1"`
	Warn2       float64 `json:"dist_warn2"`
	CooldownMs  int64   `json:"audio_cooldown_ms"`
	HTTPAddr    string  `json:"http_addr"`
}

// GPSTimeLayout is the layout of gps.time_utc.
const GPSTimeLayout = "2006-01-02 15:04:05"

func ptr[T any](v T) *T { return &v }

func build(snap Snapshot) StatusJSON {
	uptime := snap.Uptime().Truncate(time.Second)

	sj := StatusJSON{
		Level:           string(snap.Guidance.Level),
		FPS:             snap.Frames.FPS,
		Alerts:          snap.Guidance.Alerts,
		DetectEnabled:   snap.DetectEnabled,
		Conf:            snap.Params.Conf,
		ImgSz:           snap.Params.ImgSz,
		ProcessN:        snap.Params.ProcessEveryN,
		UltrasonicReady: snap.Distance.Ready,
		GPSReady:        snap.GPS.Ready,
		HRReady:         snap.HeartRate.Ready,
		Model:           snap.Config.Model,
		Camera:          snap.Config.Camera,
		UptimeSec:       int64(uptime.Seconds()),
		UptimeHuman:     humanUptime(uptime),
		StartTime:       snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:       snap.Now.UTC().Format(time.RFC3339),
		MQTT:            MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			LeftThresh:  snap.Config.LeftThresh,
			RightThresh: snap.Config.RightThresh,
			MinPersist:  snap.Config.MinPersist,
			Warn1:       snap.Config.Warn1,
			Warn2:       snap.Config.Warn2,
			CooldownMs:  snap.Config.CooldownMs,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}

	if r := snap.Distance.Reading; r.Valid {
		sj.DistanceM = ptr(r.Value)
	}
	if d := snap.Guidance.Direction; d != "" && d != logic.DirectionNone {
		sj.Direction = ptr(string(d))
	}
	if a := snap.Guidance.LastAudio; a != "" {
		sj.LastAudio = ptr(string(a))
	}

	g := snap.GPS
	sj.GPS.Valid = g.Valid
	if g.HasPosition {
		sj.GPS.Lat = ptr(g.Lat)
		sj.GPS.Lon = ptr(g.Lon)
	}
	if g.HasSpeed {
		sj.GPS.SpeedKmh = ptr(g.SpeedKmh)
	}
	if !g.TimeUTC.IsZero() {
		sj.GPS.TimeUTC = ptr(g.TimeUTC.UTC().Format(GPSTimeLayout))
	}

	h := snap.HeartRate
	sj.HR.Ready = h.Ready
	if h.BPM.Valid {
		sj.HR.BPM = ptr(h.BPM.Value)
	}
	if h.SpO2.Valid {
		sj.HR.SpO2 = ptr(h.SpO2.Value)
	}

	if snap.Network != nil {
		sj.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return sj
}

func humanUptime(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatJSON returns the JSON status for the web endpoints (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(build(snap), "", "  ")
	return data
}

// FormatCompact returns the JSON status on a single line, for the websocket feed.
func FormatCompact(snap Snapshot) []byte {
	data, _ := json.Marshal(build(snap))
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	sj := build(snap)
	sj.Event = event
	sj.Reason = reason
	data, _ := json.Marshal(sj)
	return data
}
