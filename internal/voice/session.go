package voice

import "sync"

// Session is the voice connection of one guild. The call handle is shared
// between command handlers attaching observers and the engine invoking them,
// so every attach goes through Do.
type Session struct {
	GuildID string

	mu       sync.Mutex
	call     Call
	attached map[EventClass]bool
}

func newSession(guildID string, call Call) *Session {
	return &Session{
		GuildID:  guildID,
		call:     call,
		attached: make(map[EventClass]bool),
	}
}

// ChannelID returns the voice channel the call is connected to.
func (s *Session) ChannelID() string {
	return s.call.ChannelID()
}

// Do runs fn with exclusive access to the session registry.
// fn must not perform network I/O.
func (s *Session) Do(fn func(reg *Registry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Registry{session: s})
}

// Sessions tracks the live session of every guild.
type Sessions struct {
	mu      sync.Mutex
	byGuild map[string]*Session
}

func NewSessions() *Sessions {
	return &Sessions{byGuild: make(map[string]*Session)}
}

// Acquire returns the guild session bound to call, replacing any session
// that holds a different call.
func (m *Sessions) Acquire(guildID string, call Call) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.byGuild[guildID]; ok && s.call == call {
		return s
	}

	s := newSession(guildID, call)
	m.byGuild[guildID] = s
	return s
}

// Get returns the session for a guild.
func (m *Sessions) Get(guildID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byGuild[guildID]
	return s, ok
}

// Remove forgets the session for a guild and returns it.
func (m *Sessions) Remove(guildID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byGuild[guildID]
	if ok {
		delete(m.byGuild, guildID)
	}
	return s, ok
}

// Len returns the number of live sessions.
func (m *Sessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byGuild)
}
