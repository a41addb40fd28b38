package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/fadebot/internal/command"
	"github.com/keshon/fadebot/internal/config"
	"github.com/keshon/fadebot/internal/discord"
	"github.com/keshon/fadebot/internal/engine"
	"github.com/keshon/fadebot/internal/engine/opus"
	"github.com/keshon/fadebot/internal/logging"
	"github.com/keshon/fadebot/internal/storage"
	"github.com/keshon/fadebot/internal/voice"
	"github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if err := logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}
	log.Info().Msg("Starting fadebot...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.New(ctx, cfg.StoragePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.Close()

	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create session")
	}
	dg.ShouldRetryOnRateLimit = false

	eng := engine.New(engine.Config{
		Connector:  &engine.DiscordConnector{Session: dg},
		Source:     &engine.FFmpegSource{Binary: cfg.FFmpegPath, YouTube: &youtube.Client{}},
		NewEncoder: opus.NewEncoder,
		FadeDelay:  cfg.FadeDelay,
		FadePeriod: cfg.FadePeriod,
	})
	defer eng.Shutdown()

	messenger := discord.NewMessenger(dg, cfg.SendRate)
	coord := voice.NewCoordinator(eng, &discord.StatePresence{State: dg.State}, messenger)

	commands := command.NewRegistry()
	command.RegisterVoiceCommands(commands, coord)

	bot := discord.NewBot(dg, cfg, store, commands, messenger)

	errCh := make(chan error, 1)
	go func() {
		if err := bot.Run(ctx); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("Shutting down...")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Discord bot error")
		}
		cancel()
	}

	log.Info().Msg("fadebot exited cleanly")
}
