package audio

import (
	"fmt"
	"log"
	"os/exec"
	"strings"
)

// playerArgs are the supported command-line players and their flags.
var playerArgs = map[string][]string{
	"aplay":  {"-q"},
	"paplay": nil,
	"ffplay": {"-nodisp", "-autoexit", "-loglevel", "quiet"},
	"mpg123": {"-q"},
}

// DefaultMethod is the player used when none is configured.
const DefaultMethod = "aplay"

// CommandPlayer plays files by spawning an external player process.
type CommandPlayer struct {
	name string
	args []string
}

// NewCommandPlayer returns a player for method, one of aplay, paplay,
// ffplay or mpg123.
func NewCommandPlayer(method string) (*CommandPlayer, error) {
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		method = DefaultMethod
	}
	args, ok := playerArgs[method]
	if !ok {
		return nil, fmt.Errorf("audio: unsupported player %q", method)
	}
	return &CommandPlayer{name: method, args: args}, nil
}

// Name returns the player command.
func (p *CommandPlayer) Name() string {
	return p.name
}

// command builds the process for path without starting it.
func (p *CommandPlayer) command(path string) *exec.Cmd {
	args := append(append([]string(nil), p.args...), path)
	return exec.Command(p.name, args...)
}

// Play starts the player and reaps it in the background.
func (p *CommandPlayer) Play(path string) error {
	cmd := p.command(path)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Printf("audio: %s exited: %v", p.name, err)
		}
	}()
	return nil
}
