package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/fadebot/internal/command"
	"github.com/keshon/fadebot/internal/config"
	"github.com/keshon/fadebot/internal/logging"
	"github.com/keshon/fadebot/internal/storage"
	"github.com/keshon/fadebot/internal/voice"
	"github.com/rs/zerolog"
)

// Bot routes prefixed chat messages to registered commands.
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	storage  *storage.Storage
	commands *command.Registry
	replies  voice.Messenger
	log      zerolog.Logger
}

func NewBot(dg *discordgo.Session, cfg *config.Config, store *storage.Storage, commands *command.Registry, replies voice.Messenger) *Bot {
	return &Bot{
		dg:       dg,
		cfg:      cfg,
		storage:  store,
		commands: commands,
		replies:  replies,
		log:      logging.Module("discord"),
	}
}

// Run opens the gateway and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.configureIntents()
	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.onMessageCreate(ctx, s, m)
	})

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("Shutdown signal received. Cleaning up...")
	return nil
}

func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	for _, g := range r.Guilds {
		b.leaveIfBlacklisted(s, g.ID)
	}
	b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("Discord bot is running")
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	b.log.Info().Str("guild", g.ID).Str("name", g.Name).Msg("Guild available")
	b.leaveIfBlacklisted(s, g.ID)
}

func (b *Bot) leaveIfBlacklisted(s *discordgo.Session, guildID string) {
	if !b.cfg.IsBlacklisted(guildID) {
		return
	}
	b.log.Info().Str("guild", guildID).Msg("Leaving blacklisted guild")
	if err := s.GuildLeave(guildID); err != nil {
		b.log.Error().Err(err).Str("guild", guildID).Msg("Failed to leave guild")
	}
}

func (b *Bot) onMessageCreate(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	selfID := ""
	if s.State != nil && s.State.User != nil {
		selfID = s.State.User.ID
	}
	b.route(ctx, s, m, selfID)
}

// route runs the command named by m, if any. Failures are logged only;
// commands report to chat on their own.
func (b *Bot) route(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, selfID string) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == selfID {
		return
	}
	if b.cfg.IsBlacklisted(m.GuildID) {
		return
	}

	name, args, ok := command.Parse(b.cfg.CommandPrefix, m.Content)
	if !ok {
		return
	}
	cmd, ok := b.commands.Get(name)
	if !ok {
		b.log.Debug().Str("command", name).Msg("Unknown command")
		return
	}

	err := cmd.Run(&command.MessageContext{
		Context:   ctx,
		Session:   s,
		Event:     m,
		Storage:   b.storage,
		Messenger: b.replies,
		Prefix:    b.cfg.CommandPrefix,
		Args:      args,
	})
	if err != nil {
		b.log.Error().Err(err).Str("command", cmd.Name()).Str("guild", m.GuildID).Msg("Error running command")
	}
}
