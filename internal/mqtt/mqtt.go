// Package mqtt publishes alerts and lifecycle events to a broker and receives
// heart-rate readings from the pulse oximeter bridge.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/pothole-guard/internal/logic"
)

// Topic is the MQTT topic for dispatched alerts.
const Topic = "walkguard/alerts"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "walkguard/system"

// TopicHeartRate is the MQTT topic the heart-rate bridge publishes on.
const TopicHeartRate = "walkguard/heartrate"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a dispatched alert to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(alert logic.Alert) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // full status JSON; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// AlertPayload is the JSON body of an alert message.
type AlertPayload struct {
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Kind      string   `json:"kind"`
	Direction string   `json:"direction"`
	DistanceM *float64 `json:"distance_m"`
	Level     string   `json:"level"`
}

// FormatPayload creates the JSON payload for an alert.
func FormatPayload(alert logic.Alert) ([]byte, error) {
	p := AlertPayload{
		ID:        alert.ID,
		Timestamp: alert.Timestamp.UTC().Format(time.RFC3339Nano),
		Kind:      string(alert.Kind),
		Direction: string(alert.Direction),
		Level:     string(alert.Level),
	}
	if alert.Distance.Valid {
		d := alert.Distance.Value
		p.DistanceM = &d
	}
	return json.Marshal(p)
}

// SystemPayload is the body of simple system events (the will message)
// that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}
