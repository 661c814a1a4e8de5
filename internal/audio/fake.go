package audio

import "sync"

// FakePlayer records played paths for testing.
type FakePlayer struct {
	mu     sync.Mutex
	Err    error
	played []string
}

// NewFakePlayer creates a new FakePlayer.
func NewFakePlayer() *FakePlayer {
	return &FakePlayer{}
}

// Play records path, or returns Err if set.
func (p *FakePlayer) Play(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.played = append(p.played, path)
	return nil
}

// Played returns a copy of the played paths.
func (p *FakePlayer) Played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}
