package command

import (
	"strings"
	"time"

	"github.com/keshon/fadebot/internal/logging"
	"github.com/keshon/fadebot/internal/storage"
)

type Middleware func(Command) Command

type wrappedCommand struct {
	Command
	wrap func(ctx interface{}) error
}

func (w *wrappedCommand) Run(ctx interface{}) error {
	return w.wrap(ctx)
}

func ApplyMiddlewares(cmd Command, mws ...Middleware) Command {
	for _, mw := range mws {
		cmd = mw(cmd)
	}
	return cmd
}

// WithGuildOnly drops messages that were not sent in a guild.
func WithGuildOnly() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx interface{}) error {
				if v, ok := ctx.(*MessageContext); ok && v.Event.GuildID == "" {
					return nil
				}
				return cmd.Run(ctx)
			},
		}
	}
}

// WithCommandLogger records each executed command in the guild history.
func WithCommandLogger() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx interface{}) error {
				err := cmd.Run(ctx)

				v, ok := ctx.(*MessageContext)
				if !ok || v.Storage == nil {
					return err
				}

				rec := storage.CommandHistoryRecord{
					ChannelID: v.Event.ChannelID,
					Command:   cmd.Name(),
					Param:     strings.Join(v.Args, " "),
					Datetime:  time.Now(),
				}
				if v.Event.Author != nil {
					rec.UserID = v.Event.Author.ID
					rec.Username = v.Event.Author.Username
				}
				if v.Session != nil {
					if ch, e := v.Session.State.Channel(v.Event.ChannelID); e == nil {
						rec.ChannelName = ch.Name
					}
					if g, e := v.Session.State.Guild(v.Event.GuildID); e == nil {
						rec.GuildName = g.Name
					}
				}
				if e := v.Storage.AppendCommandToHistory(v.Event.GuildID, rec); e != nil {
					l := logging.Module("command")
					l.Warn().Err(e).Str("command", cmd.Name()).Msg("Failed to log command")
				}
				return err
			},
		}
	}
}
