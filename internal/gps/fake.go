package gps

import (
	"io"
	"strings"
	"sync"
)

// FakePort replays scripted NMEA text and reports EOF at the end, or blocks
// until Close when Hold is set.
type FakePort struct {
	mu     sync.Mutex
	r      io.Reader
	Hold   bool
	closed chan struct{}
	once   sync.Once
}

// NewFakePort creates a port that yields the given lines, newline-terminated.
func NewFakePort(lines ...string) *FakePort {
	return &FakePort{
		r:      strings.NewReader(strings.Join(lines, "\r\n") + "\r\n"),
		closed: make(chan struct{}),
	}
}

// Read returns scripted data, then EOF (or blocks until Close when Hold is set).
func (p *FakePort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	n, err := p.r.Read(buf)
	hold := p.Hold
	p.mu.Unlock()
	if n > 0 {
		return n, nil
	}
	if err == io.EOF && hold {
		<-p.closed
		return 0, io.ErrClosedPipe
	}
	return n, err
}

// Close unblocks any held Read.
func (p *FakePort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

// IsClosed reports whether Close was called.
func (p *FakePort) IsClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}
