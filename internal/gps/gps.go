// Package gps reads position fixes from an NMEA receiver on a serial port.
package gps

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/sweeney/pothole-guard/internal/logic"
	"go.bug.st/serial"
)

// KnotsToKmh converts speed over ground to km/h.
const KnotsToKmh = 1.852

// DefaultPort is the Pi's primary UART symlink.
const DefaultPort = "/dev/serial0"

// DefaultBaud is the usual NMEA receiver rate.
const DefaultBaud = 9600

// MaxLineLength bounds a single NMEA line. Sentences are at most 82
// characters; anything past this is line noise.
const MaxLineLength = 1024

// Fix is one decoded RMC sentence.
type Fix struct {
	HasPosition bool // false when the receiver reports 0,0
	Lat         float64
	Lon         float64
	HasSpeed    bool
	SpeedKmh    float64
	TimeUTC     time.Time // zero unless both date and time were present
	Valid       bool      // status field is "A"
}

// Port is the minimal interface needed for the receiver's serial port.
type Port interface {
	io.Reader
	io.Closer
}

// Reader turns a stream of NMEA lines into fixes.
type Reader struct {
	port  Port
	lines *bufio.Scanner
}

// NewReader wraps an already open port.
func NewReader(port Port) *Reader {
	return &Reader{
		port:  port,
		lines: newScanner(port),
	}
}

func newScanner(port Port) *bufio.Scanner {
	sc := bufio.NewScanner(port)
	sc.Buffer(make([]byte, 0, 256), MaxLineLength)
	return sc
}

// NewSerialReader opens the receiver at path (8N1).
func NewSerialReader(path string, baud int) (*Reader, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return NewReader(port), nil
}

// ReadFix blocks until the next RMC sentence and decodes it. Other sentence
// types are skipped. A malformed RMC sentence is returned as a transient
// error; a closed or failed port wraps logic.ErrSensorUnavailable.
func (r *Reader) ReadFix() (Fix, error) {
	for r.lines.Scan() {
		fix, ok, err := ParseRMC(r.lines.Text())
		if err != nil {
			return Fix{}, err
		}
		if ok {
			return fix, nil
		}
	}
	if err := r.lines.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			// A scanner stops for good after an error; continue with a fresh one.
			r.lines = newScanner(r.port)
			return Fix{}, fmt.Errorf("gps: discarding line: %w", err)
		}
		return Fix{}, fmt.Errorf("gps: read: %v: %w", err, logic.ErrSensorUnavailable)
	}
	return Fix{}, fmt.Errorf("gps: port closed: %w", logic.ErrSensorUnavailable)
}

// Close closes the port. A blocked ReadFix returns once the port is closed.
func (r *Reader) Close() error {
	return r.port.Close()
}

// ParseRMC decodes a single line. ok is false for blank lines and for
// sentences other than RMC (any talker: GP, GN, ...).
func ParseRMC(line string) (fix Fix, ok bool, err error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") || !strings.Contains(line, "RMC,") {
		return Fix{}, false, nil
	}

	s, err := nmea.Parse(line)
	if err != nil {
		return Fix{}, false, fmt.Errorf("gps: parse: %w", err)
	}
	if s.DataType() != nmea.TypeRMC {
		return Fix{}, false, nil
	}
	m := s.(nmea.RMC)

	fix = Fix{
		Lat:      m.Latitude,
		Lon:      m.Longitude,
		HasSpeed: true,
		SpeedKmh: m.Speed * KnotsToKmh,
		Valid:    m.Validity == nmea.ValidRMC,
	}
	fix.HasPosition = m.Latitude != 0 && m.Longitude != 0
	if m.Date.Valid && m.Time.Valid {
		fix.TimeUTC = time.Date(2000+m.Date.YY, time.Month(m.Date.MM), m.Date.DD,
			m.Time.Hour, m.Time.Minute, m.Time.Second, m.Time.Millisecond*int(time.Millisecond), time.UTC)
	}
	return fix, true, nil
}
