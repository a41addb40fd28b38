package voice

import (
	"context"
	"errors"
	"fmt"

	"github.com/keshon/fadebot/internal/logging"
	"github.com/rs/zerolog"
)

// JoinRequest asks the bot to join the voice channel a user is in.
type JoinRequest struct {
	GuildID       string
	UserID        string
	TextChannelID string
}

// PlayRequest starts a track that fades out on the guild's session.
type PlayRequest struct {
	GuildID       string
	TextChannelID string
	URL           string
}

// LeaveRequest disconnects the guild's session.
type LeaveRequest struct {
	GuildID       string
	TextChannelID string
}

// Coordinator runs the join protocol and wires observers to sessions.
type Coordinator struct {
	engine    Engine
	presence  Presence
	messenger Messenger
	sessions  *Sessions
	log       zerolog.Logger
}

func NewCoordinator(engine Engine, presence Presence, messenger Messenger) *Coordinator {
	return &Coordinator{
		engine:    engine,
		presence:  presence,
		messenger: messenger,
		sessions:  NewSessions(),
		log:       logging.Module("voice"),
	}
}

// Session returns the live session of a guild.
func (c *Coordinator) Session(guildID string) (*Session, bool) {
	return c.sessions.Get(guildID)
}

func (c *Coordinator) reply(ctx context.Context, channelID, text string) {
	checkMsg(c.log, channelID, c.messenger.Send(ctx, channelID, text))
}

// Join connects to the requester's voice channel and attaches a
// TrackEndNotifier bound to the requesting text channel. Exactly one
// acknowledgement is sent per call.
func (c *Coordinator) Join(ctx context.Context, req JoinRequest) (*Session, error) {
	channelID, ok := c.presence.CurrentVoiceChannel(req.GuildID, req.UserID)
	if !ok {
		c.reply(ctx, req.TextChannelID, "Not in a voice channel")
		return nil, ErrNotInChannel
	}

	call, err := c.engine.Join(ctx, req.GuildID, channelID)
	if err != nil {
		c.log.Error().Err(err).Str("guild", req.GuildID).Str("channel", channelID).Msg("Join failed")
		c.reply(ctx, req.TextChannelID, "Error joining the channel")
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	sess := c.sessions.Acquire(req.GuildID, call)
	_ = sess.Do(func(reg *Registry) error {
		if reg.HasGlobal(EventTrackEnd) {
			return nil
		}
		reg.AttachGlobal(EventTrackEnd, &TrackEndNotifier{Binding{
			ChannelID: req.TextChannelID,
			Messenger: c.messenger,
			Log:       c.log,
		}})
		return nil
	})

	c.log.Info().Str("guild", req.GuildID).Str("channel", channelID).Msg("Joined voice channel")
	c.reply(ctx, req.TextChannelID, fmt.Sprintf("Joined <#%s>", channelID))
	return sess, nil
}

// Play starts url on the guild's session and attaches a SongFader and a
// FadeCompleteNotifier to the new track.
func (c *Coordinator) Play(ctx context.Context, req PlayRequest) error {
	sess, ok := c.sessions.Get(req.GuildID)
	if !ok {
		c.reply(ctx, req.TextChannelID, "Not in a voice channel to play in")
		return ErrNoSession
	}

	track, err := sess.call.Play(ctx, req.URL)
	if err != nil {
		c.log.Error().Err(err).Str("guild", req.GuildID).Str("url", req.URL).Msg("Play failed")
		c.reply(ctx, req.TextChannelID, "Error sourcing ffmpeg")
		return fmt.Errorf("play %q: %w", req.URL, err)
	}

	binding := Binding{ChannelID: req.TextChannelID, Messenger: c.messenger, Log: c.log}
	_ = sess.Do(func(reg *Registry) error {
		reg.AttachTrack(track, EventPeriodic, &SongFader{binding})
		reg.AttachTrack(track, EventTrackEnd, &FadeCompleteNotifier{binding})
		return nil
	})

	c.reply(ctx, req.TextChannelID, "Playing song")
	return nil
}

// Leave disconnects the guild's call and drops its session.
func (c *Coordinator) Leave(ctx context.Context, req LeaveRequest) error {
	sess, ok := c.sessions.Remove(req.GuildID)
	if !ok {
		c.reply(ctx, req.TextChannelID, "Not in a voice channel")
		return ErrNoSession
	}

	if err := sess.call.Disconnect(); err != nil {
		c.log.Warn().Err(err).Str("guild", req.GuildID).Msg("Disconnect failed")
		c.reply(ctx, req.TextChannelID, fmt.Sprintf("Failed: %v", err))
		return err
	}

	c.reply(ctx, req.TextChannelID, "Left voice channel")
	return nil
}

// IsUserError reports whether err was already reported to the requester.
func IsUserError(err error) bool {
	return errors.Is(err, ErrNotInChannel) || errors.Is(err, ErrConnectFailed) || errors.Is(err, ErrNoSession)
}
