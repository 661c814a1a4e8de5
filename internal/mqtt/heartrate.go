package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/pothole-guard/internal/logic"
)

// HeartSample is one reading from the pulse oximeter. Either field may be
// invalid when the sensor reported it as unknown.
type HeartSample struct {
	BPM  logic.Reading[float64]
	SpO2 logic.Reading[float64]
}

type heartMessage struct {
	BPM  *float64 `json:"bpm"`
	SpO2 *float64 `json:"spo2"`
}

// ParseHeartRate decodes a heart-rate message such as {"bpm":72,"spo2":98}.
// Missing, null or non-positive values are invalid.
func ParseHeartRate(payload []byte, at time.Time) (HeartSample, error) {
	var m heartMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return HeartSample{}, fmt.Errorf("parse heart rate: %w", err)
	}
	var s HeartSample
	if m.BPM != nil && *m.BPM > 0 {
		s.BPM = logic.NewReading(*m.BPM, at)
	}
	if m.SpO2 != nil && *m.SpO2 > 0 {
		s.SpO2 = logic.NewReading(*m.SpO2, at)
	}
	return s, nil
}

// HeartRateRegister keeps the latest heart-rate message received from the
// broker. It is written from the MQTT client goroutine and polled by the
// heart-rate loop.
type HeartRateRegister struct {
	mu     sync.Mutex
	latest HeartSample
	seq    uint64
	read   uint64
	now    func() time.Time
}

// NewHeartRateRegister creates an empty register.
func NewHeartRateRegister() *HeartRateRegister {
	return &HeartRateRegister{now: time.Now}
}

// Update parses payload and stores it as the latest sample.
func (r *HeartRateRegister) Update(payload []byte) error {
	s, err := ParseHeartRate(payload, r.now())
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = s
	r.seq++
	return nil
}

// Read returns the latest sample. It returns logic.ErrNoSample until the
// first message and whenever nothing new has arrived since the last Read.
func (r *HeartRateRegister) Read() (HeartSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seq == r.read {
		return HeartSample{}, logic.ErrNoSample
	}
	r.read = r.seq
	return r.latest, nil
}
