// Package opus provides the libopus encoder used for voice playback.
// It is kept apart from the engine so that engine tests do not need cgo.
package opus

import (
	"fmt"

	"github.com/keshon/fadebot/internal/engine"
	"layeh.com/gopus"
)

const (
	sampleRate = 48000
	channels   = 2
)

// NewEncoder returns a stereo 48kHz encoder tuned for music.
func NewEncoder() (engine.Encoder, error) {
	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	return enc, nil
}
