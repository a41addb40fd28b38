package engine

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"

	"github.com/keshon/fadebot/internal/voice"
)

// MaxVolume is the loudest gain a track accepts.
const MaxVolume float32 = 2

var ErrTrackFinished = fmt.Errorf("%w: track is no longer playing", voice.ErrCommandFailed)

// Track is one audio stream playing on a call.
type Track struct {
	URL string

	volume   atomic.Uint32
	stopOnce sync.Once
	stop     chan struct{}

	// finished closes when the stream stops, tickerDone when periodic
	// events stop, ended once end events are queued.
	finished   chan struct{}
	tickerDone chan struct{}
	ended      chan struct{}

	mu   sync.Mutex
	mode voice.PlayMode
	subs []*subscription
}

func newTrack(url string) *Track {
	t := &Track{
		URL:        url,
		stop:       make(chan struct{}),
		finished:   make(chan struct{}),
		tickerDone: make(chan struct{}),
		ended:      make(chan struct{}),
	}
	t.volume.Store(math.Float32bits(1))
	return t
}

// State returns the current volume and play mode.
func (t *Track) State() voice.TrackState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return voice.TrackState{Volume: t.gain(), Mode: t.mode}
}

// SetVolume changes the gain applied to the next frames.
func (t *Track) SetVolume(v float32) error {
	if t.State().Finished() {
		return ErrTrackFinished
	}
	if math.IsNaN(float64(v)) || v < 0 || v > MaxVolume {
		return fmt.Errorf("%w: volume %v out of range [0, %v]", voice.ErrCommandFailed, v, MaxVolume)
	}
	t.volume.Store(math.Float32bits(v))
	return nil
}

// Stop ends playback. The track reports PlayModeStop from now on.
func (t *Track) Stop() error {
	t.mu.Lock()
	if t.mode != voice.PlayModePlay {
		t.mu.Unlock()
		return ErrTrackFinished
	}
	t.mode = voice.PlayModeStop
	t.mu.Unlock()

	t.stopOnce.Do(func() { close(t.stop) })
	return nil
}

// AddEvent attaches o to this track only.
func (t *Track) AddEvent(class voice.EventClass, o voice.Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = append(t.subs, &subscription{class: class, observer: o})
}

// Done closes after the track finished and its end events were queued.
func (t *Track) Done() <-chan struct{} {
	return t.ended
}

func (t *Track) gain() float32 {
	return math.Float32frombits(t.volume.Load())
}

func (t *Track) finish(mode voice.PlayMode) {
	t.mu.Lock()
	if t.mode == voice.PlayModePlay {
		t.mode = mode
	}
	t.mu.Unlock()
	close(t.finished)
}

func (t *Track) subscriptions(class voice.EventClass) []*subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	return subscriptionsOf(t.subs, class)
}

func (t *Track) pruneSubscriptions() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = prune(t.subs)
}

// stream reads PCM frames from src, applies the track volume, encodes them
// and hands them to the sink until the source ends or Stop is called.
func (t *Track) stream(src io.Reader, enc Encoder, sink func() chan<- []byte) error {
	pcmBuf := make([]byte, frameSize*channels*2)
	samples := make([]int16, frameSize*channels)

	for {
		select {
		case <-t.stop:
			return nil
		default:
		}

		if _, err := io.ReadFull(src, pcmBuf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		applyGain(samples, pcmBuf, t.gain())

		packet, err := enc.Encode(samples, frameSize, maxOpusBytes)
		if err != nil {
			return fmt.Errorf("encode error: %w", err)
		}

		select {
		case sink() <- packet:
		case <-t.stop:
			return nil
		}
	}
}

// applyGain decodes little-endian PCM into dst, scaled and clipped.
func applyGain(dst []int16, pcm []byte, gain float32) {
	for i := range dst {
		s := float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) * gain
		switch {
		case s > math.MaxInt16:
			s = math.MaxInt16
		case s < math.MinInt16:
			s = math.MinInt16
		}
		dst[i] = int16(s)
	}
}
