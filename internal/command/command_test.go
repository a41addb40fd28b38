package command

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/fadebot/internal/storage"
	"github.com/keshon/fadebot/internal/voice"
)

type stubTrack struct{}

func (stubTrack) SetVolume(float32) error                   { return nil }
func (stubTrack) Stop() error                               { return nil }
func (stubTrack) State() voice.TrackState                   { return voice.TrackState{Volume: 1} }
func (stubTrack) AddEvent(voice.EventClass, voice.Observer) {}

type stubCall struct{ channelID string }

func (c *stubCall) ChannelID() string                                 { return c.channelID }
func (c *stubCall) AddGlobalEvent(voice.EventClass, voice.Observer)   {}
func (c *stubCall) Play(context.Context, string) (voice.Track, error) { return stubTrack{}, nil }
func (c *stubCall) Disconnect() error                                 { return nil }

type stubEngine struct{ call *stubCall }

func (e *stubEngine) Join(context.Context, string, string) (voice.Call, error) {
	return e.call, nil
}

type stubPresence map[string]string

func (p stubPresence) CurrentVoiceChannel(_, userID string) (string, bool) {
	ch, ok := p[userID]
	return ch, ok
}

type chatLog struct {
	mu    sync.Mutex
	texts []string
}

func (l *chatLog) Send(_ context.Context, _, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.texts = append(l.texts, text)
	return nil
}

func (l *chatLog) last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.texts) == 0 {
		return ""
	}
	return l.texts[len(l.texts)-1]
}

func newMessage(guildID, userID string, args ...string) *MessageContext {
	return &MessageContext{
		Event: &discordgo.MessageCreate{Message: &discordgo.Message{
			GuildID:   guildID,
			ChannelID: "text",
			Author:    &discordgo.User{ID: userID, Username: "user-" + userID},
		}},
		Args: args,
	}
}

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.New(context.Background(), filepath.Join(t.TempDir(), "datastore.json"))
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestRegistry(t *testing.T) (*Registry, *chatLog, *storage.Storage) {
	t.Helper()
	chat := &chatLog{}
	coord := voice.NewCoordinator(&stubEngine{call: &stubCall{channelID: "vc"}}, stubPresence{"u1": "vc"}, chat)
	reg := NewRegistry()
	RegisterVoiceCommands(reg, coord)
	return reg, chat, newTestStorage(t)
}

func run(t *testing.T, reg *Registry, name string, ctx *MessageContext) error {
	t.Helper()
	cmd, ok := reg.Get(name)
	if !ok {
		t.Fatalf("command %q not registered", name)
	}
	return cmd.Run(ctx)
}

func TestParse(t *testing.T) {
	tests := []struct {
		content string
		name    string
		args    []string
		ok      bool
	}{
		{"~join", "join", nil, true},
		{"  ~PLAY https://x y ", "play", []string{"https://x", "y"}, true},
		{"~", "", nil, false},
		{"join", "", nil, false},
		{"!join", "", nil, false},
	}
	for _, tt := range tests {
		name, args, ok := Parse("~", tt.content)
		if ok != tt.ok || name != tt.name || len(args) != len(tt.args) {
			t.Errorf("Parse(%q) = %q %v %v", tt.content, name, args, ok)
			continue
		}
		for i := range args {
			if args[i] != tt.args[i] {
				t.Errorf("Parse(%q) args = %v", tt.content, args)
			}
		}
	}
}

func TestRegistryAliases(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	for _, name := range []string{"join", "J", "play", "p", "leave", "stop"} {
		if _, ok := reg.Get(name); !ok {
			t.Errorf("Get(%q) missing", name)
		}
	}
	all := reg.All()
	if len(all) != 3 || all[0].Name() != "join" || all[2].Name() != "play" {
		t.Errorf("All() = %v", all)
	}
}

func TestJoinRecordsSessionAndHistory(t *testing.T) {
	reg, chat, store := newTestRegistry(t)
	ctx := newMessage("g1", "u1")
	ctx.Storage = store

	if err := run(t, reg, "join", ctx); err != nil {
		t.Fatalf("join: %v", err)
	}
	if got := chat.last(); got != "Joined <#vc>" {
		t.Errorf("reply = %q", got)
	}

	sessions, _ := store.FetchSessions("g1")
	if len(sessions) != 1 || sessions[0].ChannelID != "vc" || sessions[0].UserID != "u1" {
		t.Errorf("sessions = %+v", sessions)
	}
	history, _ := store.FetchCommandHistory("g1")
	if len(history) != 1 || history[0].Command != "join" || history[0].Username != "user-u1" {
		t.Errorf("history = %+v", history)
	}
}

func TestJoinWithoutPresenceIsHandled(t *testing.T) {
	reg, chat, store := newTestRegistry(t)
	ctx := newMessage("g1", "stranger")
	ctx.Storage = store

	if err := run(t, reg, "join", ctx); err != nil {
		t.Fatalf("join returned %v, want nil after reply", err)
	}
	if got := chat.last(); got != "Not in a voice channel" {
		t.Errorf("reply = %q", got)
	}
	if sessions, _ := store.FetchSessions("g1"); len(sessions) != 0 {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestPlayFlow(t *testing.T) {
	reg, chat, _ := newTestRegistry(t)

	bare := newMessage("g1", "u1")
	bare.Messenger = chat
	bare.Prefix = "~"
	if err := run(t, reg, "play", bare); err != nil {
		t.Errorf("play without url: %v", err)
	}
	if got := chat.last(); got != "Usage: ~play <url>" {
		t.Errorf("reply = %q", got)
	}
	if err := run(t, reg, "play", newMessage("g1", "u1", "https://a")); err != nil {
		t.Errorf("play before join: %v", err)
	}
	if got := chat.last(); got != "Not in a voice channel to play in" {
		t.Errorf("reply = %q", got)
	}

	if err := run(t, reg, "join", newMessage("g1", "u1")); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := run(t, reg, "p", newMessage("g1", "u1", "https://a")); err != nil {
		t.Fatalf("play: %v", err)
	}
	if got := chat.last(); got != "Playing song" {
		t.Errorf("reply = %q", got)
	}

	if err := run(t, reg, "leave", newMessage("g1", "u1")); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if got := chat.last(); got != "Left voice channel" {
		t.Errorf("reply = %q", got)
	}
}

func TestGuildOnly(t *testing.T) {
	reg, chat, _ := newTestRegistry(t)

	if err := run(t, reg, "join", newMessage("", "u1")); err != nil {
		t.Fatalf("join in DM: %v", err)
	}
	if len(chat.texts) != 0 {
		t.Errorf("DM produced replies: %v", chat.texts)
	}
}

func TestUnsupportedContext(t *testing.T) {
	cmd := &JoinCommand{}
	if err := cmd.Run("nope"); !errors.Is(err, errNotMessage) {
		t.Errorf("err = %v", err)
	}
}
