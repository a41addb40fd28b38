package command

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/fadebot/internal/logging"
	"github.com/keshon/fadebot/internal/storage"
	"github.com/keshon/fadebot/internal/voice"
)

type Command interface {
	Name() string
	Description() string
	Aliases() []string
	Group() string
	Category() string
	Run(ctx interface{}) error
}

// MessageContext is what the runtime hands a prefix command.
type MessageContext struct {
	Context   context.Context
	Session   *discordgo.Session
	Event     *discordgo.MessageCreate
	Storage   *storage.Storage
	Messenger voice.Messenger
	Prefix    string
	Args      []string
}

func (c *MessageContext) ctx() context.Context {
	if c.Context == nil {
		return context.Background()
	}
	return c.Context
}

// reply answers in the channel the message came from. Failures are logged.
func (c *MessageContext) reply(text string) {
	if c.Messenger == nil {
		return
	}
	if err := c.Messenger.Send(c.ctx(), c.Event.ChannelID, text); err != nil {
		l := logging.Module("command")
		l.Warn().Err(err).Str("channel", c.Event.ChannelID).Msg("Error sending message")
	}
}
