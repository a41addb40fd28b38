package engine

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// DiscordConnector joins voice channels through a discordgo session.
type DiscordConnector struct {
	Session *discordgo.Session
}

func (d *DiscordConnector) ConnectVoice(_ context.Context, guildID, channelID string) (VoiceConn, error) {
	vc, err := d.Session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("channel voice join: %w", err)
	}
	return &discordVoice{vc: vc}, nil
}

type discordVoice struct {
	vc *discordgo.VoiceConnection
}

func (d *discordVoice) OpusSink() chan<- []byte { return d.vc.OpusSend }
func (d *discordVoice) Speaking(b bool) error  { return d.vc.Speaking(b) }
func (d *discordVoice) Disconnect() error      { return d.vc.Disconnect() }
