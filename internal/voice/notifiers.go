package voice

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// FadeThreshold is the volume below which a fading track is stopped.
const FadeThreshold float32 = 0.01

const (
	msgVolumeReduced = "Volume reduced."
	msgStopping      = "Stopping song..."
	msgFadedOut      = "Song faded out completely!"
)

// Binding is the text destination an observer reports to.
type Binding struct {
	ChannelID string
	Messenger Messenger
	Log       zerolog.Logger
}

func (b Binding) say(ctx context.Context, text string) {
	checkMsg(b.Log, b.ChannelID, b.Messenger.Send(ctx, b.ChannelID, text))
}

// checkMsg logs a failed send. Delivery failures never reach playback.
func checkMsg(log zerolog.Logger, channelID string, err error) {
	if err != nil {
		log.Warn().Err(err).Str("channel", channelID).Msg("Error sending message")
	}
}

// TrackEndNotifier reports how many tracks ended.
type TrackEndNotifier struct {
	Binding
}

func (n *TrackEndNotifier) Act(ctx context.Context, ev *EventContext) Action {
	if ev.Class != EventTrackEnd || len(ev.Tracks) == 0 {
		return Continue
	}
	n.say(ctx, fmt.Sprintf("Tracks ended: %d.", len(ev.Tracks)))
	return Continue
}

// SongFader halves the volume of a single track on every tick and stops it
// once the volume drops below FadeThreshold. It keeps no state: every
// decision is derived from the volume the engine reports.
type SongFader struct {
	Binding
}

func (f *SongFader) Act(ctx context.Context, ev *EventContext) Action {
	if len(ev.Tracks) > 1 {
		return Cancel
	}

	// A finished or missing track ends the fade like the threshold does,
	// minus the stop command.
	if len(ev.Tracks) == 0 || ev.Tracks[0].Track == nil || ev.Tracks[0].State.Finished() {
		f.Log.Debug().Str("channel", f.ChannelID).Msg("Fader tick on finished track")
		f.say(ctx, msgStopping)
		return Cancel
	}

	te := ev.Tracks[0]
	volume := te.State.Volume / 2
	if err := te.Track.SetVolume(volume); err != nil {
		f.Log.Debug().Err(err).Msg("Set volume failed")
	}

	if volume < FadeThreshold {
		if err := te.Track.Stop(); err != nil {
			f.Log.Debug().Err(err).Msg("Stop failed")
		}
		f.say(ctx, msgStopping)
		return Cancel
	}

	f.say(ctx, msgVolumeReduced)
	return Continue
}

// FadeCompleteNotifier announces that a faded track has ended.
type FadeCompleteNotifier struct {
	Binding
}

func (n *FadeCompleteNotifier) Act(ctx context.Context, _ *EventContext) Action {
	n.say(ctx, msgFadedOut)
	return Continue
}
