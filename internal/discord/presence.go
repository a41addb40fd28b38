package discord

import "github.com/bwmarrin/discordgo"

// StatePresence answers voice presence from the gateway state cache.
type StatePresence struct {
	State *discordgo.State
}

func (p *StatePresence) CurrentVoiceChannel(guildID, userID string) (string, bool) {
	vs, err := p.State.VoiceState(guildID, userID)
	if err != nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}
