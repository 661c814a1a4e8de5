// Package audio turns alerts into spoken cues. Assets are resolved once at
// startup; playback is fire-and-forget so the frame loop never waits on it.
package audio

import (
	"log"
	"os"
	"path/filepath"

	"github.com/sweeney/pothole-guard/internal/logic"
)

// DefaultDir is where the cue files live unless AUDIO_DIR says otherwise.
const DefaultDir = "sounds"

// Extensions are tried in order for each asset name.
var Extensions = []string{"wav", "WAV", "mp3", "MP3", "ogg", "OGG"}

// AssetNames maps each alert kind to its file basename.
var AssetNames = map[logic.AlertKind]string{
	logic.AlertFront: "depan",
	logic.AlertLeft:  "kiri",
	logic.AlertRight: "kanan",
}

// Player starts playback of a file and returns without waiting for it to end.
type Player interface {
	Play(path string) error
}

// Assets maps alert kinds to resolved file paths. Kinds without a file are absent.
type Assets map[logic.AlertKind]string

// ScanAssets looks in dir for every asset name and returns what it found.
func ScanAssets(dir string) Assets {
	found := make(Assets, len(AssetNames))
	for kind, name := range AssetNames {
		for _, ext := range Extensions {
			p := filepath.Join(dir, name+"."+ext)
			if st, err := os.Stat(p); err == nil && st.Mode().IsRegular() {
				found[kind] = p
				break
			}
		}
	}
	return found
}

// Missing returns the asset names with no file, in alert order.
func (a Assets) Missing() []string {
	var out []string
	for _, kind := range []logic.AlertKind{logic.AlertFront, logic.AlertLeft, logic.AlertRight} {
		if _, ok := a[kind]; !ok {
			out = append(out, AssetNames[kind])
		}
	}
	return out
}

// Dispatcher plays the cue for an alert kind. It does no rate limiting;
// the engine's cooldown has already decided the alert should sound.
type Dispatcher struct {
	assets Assets
	player Player
}

// NewDispatcher creates a Dispatcher over pre-resolved assets.
func NewDispatcher(assets Assets, player Player) *Dispatcher {
	return &Dispatcher{assets: assets, player: player}
}

// Dispatch starts the cue for kind. A missing asset or a failed start is
// logged and otherwise ignored. It reports whether playback started.
func (d *Dispatcher) Dispatch(kind logic.AlertKind) bool {
	path, ok := d.assets[kind]
	if !ok {
		log.Printf("audio: no asset for %s", kind)
		return false
	}
	if err := d.player.Play(path); err != nil {
		log.Printf("audio: play %s: %v", path, err)
		return false
	}
	return true
}
