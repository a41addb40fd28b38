// Package engine plays audio into voice connections and drives the
// event observers attached to calls and tracks.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/keshon/fadebot/internal/logging"
	"github.com/keshon/fadebot/internal/voice"
	"github.com/rs/zerolog"
)

const (
	channels     = 2
	sampleRate   = 48000
	frameSize    = 960 // 20ms at 48kHz
	maxOpusBytes = frameSize * channels * 2
)

// VoiceConn is the transport a call writes opus frames to.
type VoiceConn interface {
	OpusSink() chan<- []byte
	Speaking(bool) error
	Disconnect() error
}

// Connector opens voice connections.
type Connector interface {
	ConnectVoice(ctx context.Context, guildID, channelID string) (VoiceConn, error)
}

// SourceOpener yields signed 16-bit little-endian stereo PCM at 48kHz.
type SourceOpener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// Encoder turns one PCM frame into an opus packet.
type Encoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
}

type Config struct {
	Connector  Connector
	Source     SourceOpener
	NewEncoder func() (Encoder, error)

	// FadeDelay is the wait before the first periodic event of a track,
	// FadePeriod the interval between the following ones.
	FadeDelay  time.Duration
	FadePeriod time.Duration
}

// Engine owns one Call per guild.
type Engine struct {
	cfg Config
	log zerolog.Logger

	mu    sync.Mutex
	calls map[string]*Call
	joins map[string]*sync.Mutex
}

func New(cfg Config) *Engine {
	if cfg.FadePeriod <= 0 {
		cfg.FadePeriod = 5 * time.Second
	}
	if cfg.FadeDelay < 0 {
		cfg.FadeDelay = 0
	}
	return &Engine{
		cfg:   cfg,
		log:   logging.Module("engine"),
		calls: make(map[string]*Call),
		joins: make(map[string]*sync.Mutex),
	}
}

// Join connects to channelID. A guild keeps the same Call across joins:
// joining another channel moves the existing call instead of creating one.
func (e *Engine) Join(ctx context.Context, guildID, channelID string) (voice.Call, error) {
	if channelID == "" {
		return nil, errors.New("voice channel ID is not set")
	}

	lock := e.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	c, ok := e.Call(guildID)
	if ok && c.closing() {
		// The leaving call still owns the guild's voice connection.
		select {
		case <-c.gone:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		ok = false
	}
	if ok && c.ChannelID() == channelID {
		return c, nil
	}

	conn, err := e.cfg.Connector.ConnectVoice(ctx, guildID, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to join voice channel: %w", err)
	}

	if ok {
		if err := c.move(channelID, conn); err != nil {
			_ = conn.Disconnect()
			return nil, fmt.Errorf("failed to join voice channel: %w", err)
		}
		e.log.Info().Str("guild", guildID).Str("channel", channelID).Msg("Moved call")
		return c, nil
	}

	c = newCall(e, guildID, channelID, conn)
	e.mu.Lock()
	e.calls[guildID] = c
	e.mu.Unlock()

	e.log.Info().Str("guild", guildID).Str("channel", channelID).Msg("Joined voice channel")
	return c, nil
}

// guildLock serializes joins of one guild without blocking other guilds.
func (e *Engine) guildLock(guildID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.joins[guildID]
	if !ok {
		l = &sync.Mutex{}
		e.joins[guildID] = l
	}
	return l
}

// Call returns the call of a guild.
func (e *Engine) Call(guildID string) (*Call, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.calls[guildID]
	return c, ok
}

// Shutdown disconnects every call.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	calls := make([]*Call, 0, len(e.calls))
	for _, c := range e.calls {
		calls = append(calls, c)
	}
	e.mu.Unlock()

	for _, c := range calls {
		if err := c.Disconnect(); err != nil {
			e.log.Warn().Err(err).Str("guild", c.guildID).Msg("Disconnect failed")
		}
	}
}

func (e *Engine) forget(c *Call) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.calls[c.guildID] == c {
		delete(e.calls, c.guildID)
	}
}
