package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/keshon/fadebot/internal/logging"
	"github.com/keshon/fadebot/internal/storage"
	"github.com/keshon/fadebot/internal/voice"
)

// Voice is the part of the coordinator the voice commands drive.
type Voice interface {
	Join(ctx context.Context, req voice.JoinRequest) (*voice.Session, error)
	Play(ctx context.Context, req voice.PlayRequest) error
	Leave(ctx context.Context, req voice.LeaveRequest) error
}

var errNotMessage = errors.New("unsupported context")

func messageContext(ctx interface{}) (*MessageContext, error) {
	v, ok := ctx.(*MessageContext)
	if !ok {
		return nil, fmt.Errorf("%w: %T", errNotMessage, ctx)
	}
	return v, nil
}

// userFacing hides failures the coordinator already reported in chat.
func userFacing(err error) error {
	if voice.IsUserError(err) {
		l := logging.Module("command")
		l.Debug().Err(err).Msg("Voice request rejected")
		return nil
	}
	return err
}

type JoinCommand struct {
	Voice Voice
}

func (c *JoinCommand) Name() string        { return "join" }
func (c *JoinCommand) Description() string { return "Join your voice channel" }
func (c *JoinCommand) Aliases() []string   { return []string{"j"} }
func (c *JoinCommand) Group() string       { return "voice" }
func (c *JoinCommand) Category() string    { return "🎵 Music" }

func (c *JoinCommand) Run(ctx interface{}) error {
	v, err := messageContext(ctx)
	if err != nil {
		return err
	}

	sess, err := c.Voice.Join(v.ctx(), voice.JoinRequest{
		GuildID:       v.Event.GuildID,
		UserID:        v.Event.Author.ID,
		TextChannelID: v.Event.ChannelID,
	})
	if err != nil {
		return userFacing(err)
	}

	if v.Storage != nil {
		rec := storage.SessionRecord{
			ChannelID:     sess.ChannelID(),
			TextChannelID: v.Event.ChannelID,
			UserID:        v.Event.Author.ID,
			JoinedAt:      time.Now(),
		}
		if err := v.Storage.AppendSession(v.Event.GuildID, rec); err != nil {
			l := logging.Module("command")
			l.Warn().Err(err).Msg("Failed to record session")
		}
	}
	return nil
}

type PlayCommand struct {
	Voice Voice
}

func (c *PlayCommand) Name() string        { return "play" }
func (c *PlayCommand) Description() string { return "Play a song that slowly fades out" }
func (c *PlayCommand) Aliases() []string   { return []string{"p"} }
func (c *PlayCommand) Group() string       { return "voice" }
func (c *PlayCommand) Category() string    { return "🎵 Music" }

func (c *PlayCommand) Run(ctx interface{}) error {
	v, err := messageContext(ctx)
	if err != nil {
		return err
	}
	if len(v.Args) == 0 {
		v.reply(fmt.Sprintf("Usage: %s%s <url>", v.Prefix, c.Name()))
		return nil
	}

	err = c.Voice.Play(v.ctx(), voice.PlayRequest{
		GuildID:       v.Event.GuildID,
		TextChannelID: v.Event.ChannelID,
		URL:           v.Args[0],
	})
	return userFacing(err)
}

type LeaveCommand struct {
	Voice Voice
}

func (c *LeaveCommand) Name() string        { return "leave" }
func (c *LeaveCommand) Description() string { return "Leave the voice channel" }
func (c *LeaveCommand) Aliases() []string   { return []string{"stop"} }
func (c *LeaveCommand) Group() string       { return "voice" }
func (c *LeaveCommand) Category() string    { return "🎵 Music" }

func (c *LeaveCommand) Run(ctx interface{}) error {
	v, err := messageContext(ctx)
	if err != nil {
		return err
	}
	err = c.Voice.Leave(v.ctx(), voice.LeaveRequest{
		GuildID:       v.Event.GuildID,
		TextChannelID: v.Event.ChannelID,
	})
	return userFacing(err)
}

// RegisterVoiceCommands installs join, play and leave with the standard middleware.
func RegisterVoiceCommands(r *Registry, v Voice) {
	for _, cmd := range []Command{&JoinCommand{Voice: v}, &PlayCommand{Voice: v}, &LeaveCommand{Voice: v}} {
		r.Register(ApplyMiddlewares(cmd, WithCommandLogger(), WithGuildOnly()))
	}
}
