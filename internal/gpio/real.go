//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealRanger drives an HC-SR04 on the Linux GPIO character device.
// The echo line is watched with edge events so pulse width comes from kernel
// timestamps rather than busy polling.
type RealRanger struct {
	chip    *gpiocdev.Chip
	trig    *gpiocdev.Line
	echo    *gpiocdev.Line
	edges   chan gpiocdev.LineEvent
	timeout time.Duration
	mu      sync.Mutex
}

// NewRealRanger requests the trigger and echo lines on gpiochip0.
func NewRealRanger(pinTrig, pinEcho int) (*RealRanger, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealRanger{
		chip:    chip,
		edges:   make(chan gpiocdev.LineEvent, 8),
		timeout: DefaultEchoTimeout,
	}

	trig, err := chip.RequestLine(pinTrig, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request TRIG pin %d: %w", pinTrig, err)
	}
	r.trig = trig

	echo, err := chip.RequestLine(pinEcho,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(r.handleEdge))
	if err != nil {
		trig.Close()
		chip.Close()
		return nil, fmt.Errorf("request ECHO pin %d: %w", pinEcho, err)
	}
	r.echo = echo

	// Let the sensor settle with TRIG low.
	time.Sleep(100 * time.Millisecond)
	return r, nil
}

// handleEdge runs on the gpiocdev watcher goroutine. It never blocks; edges
// that arrive while nobody is waiting are dropped.
func (r *RealRanger) handleEdge(evt gpiocdev.LineEvent) {
	select {
	case r.edges <- evt:
	default:
	}
}

// ReadDistance pulses TRIG for 10µs and measures the ECHO high time.
func (r *RealRanger) ReadDistance() (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.drain()

	if err := r.trig.SetValue(1); err != nil {
		return 0, fmt.Errorf("set TRIG high: %w", err)
	}
	time.Sleep(10 * time.Microsecond)
	if err := r.trig.SetValue(0); err != nil {
		return 0, fmt.Errorf("set TRIG low: %w", err)
	}

	rise, err := r.waitEdge(gpiocdev.LineEventRisingEdge)
	if err != nil {
		return 0, err
	}
	fall, err := r.waitEdge(gpiocdev.LineEventFallingEdge)
	if err != nil {
		return 0, err
	}
	return EchoDistance(fall.Timestamp - rise.Timestamp), nil
}

func (r *RealRanger) waitEdge(want gpiocdev.LineEventType) (gpiocdev.LineEvent, error) {
	deadline := time.NewTimer(r.timeout)
	defer deadline.Stop()
	for {
		select {
		case evt := <-r.edges:
			if evt.Type == want {
				return evt, nil
			}
		case <-deadline.C:
			return gpiocdev.LineEvent{}, ErrEchoTimeout
		}
	}
}

func (r *RealRanger) drain() {
	for {
		select {
		case <-r.edges:
		default:
			return
		}
	}
}

// Close releases GPIO resources.
// TRIG is driven low and returned to an input with pull-down (matching Pi
// boot defaults) before closing.
func (r *RealRanger) Close() error {
	var errs []error

	if r.trig != nil {
		if err := r.trig.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("set TRIG low: %w", err))
		}
		if err := r.trig.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure TRIG pin: %w", err))
		}
		if err := r.trig.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close TRIG pin: %w", err))
		}
	}
	if r.echo != nil {
		if err := r.echo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close ECHO pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
