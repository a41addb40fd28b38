package voice

import (
	"context"
	"errors"
)

var (
	ErrNotInChannel  = errors.New("user is not in a voice channel")
	ErrConnectFailed = errors.New("failed to join voice channel")
	ErrNoSession     = errors.New("no voice session for guild")
	ErrSendFailed    = errors.New("failed to send message")
	ErrCommandFailed = errors.New("track command rejected")
)

// Engine establishes voice calls. One call exists per guild.
type Engine interface {
	Join(ctx context.Context, guildID, channelID string) (Call, error)
}

// Call is an established voice connection for one guild.
type Call interface {
	ChannelID() string
	AddGlobalEvent(class EventClass, o Observer)
	Play(ctx context.Context, url string) (Track, error)
	Disconnect() error
}

// Presence resolves the voice channel a user currently occupies.
type Presence interface {
	CurrentVoiceChannel(guildID, userID string) (string, bool)
}

// Messenger delivers plain text to a text channel.
type Messenger interface {
	Send(ctx context.Context, channelID, text string) error
}
