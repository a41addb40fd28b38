package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/keshon/datastore"
)

const (
	commandHistoryLimit int = 20
	sessionHistoryLimit int = 12

	saveInterval = 10 * time.Second
)

type Storage struct {
	mu       sync.Mutex
	ds       *datastore.DataStore
	cancel   context.CancelFunc
	readOnly bool
}

type CommandHistoryRecord struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	GuildName   string    `json:"guild_name"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Command     string    `json:"command"`
	Param       string    `json:"param"`
	Datetime    time.Time `json:"datetime"`
}

// SessionRecord is written each time the bot joins a voice channel.
type SessionRecord struct {
	ChannelID     string    `json:"channel_id"`
	TextChannelID string    `json:"text_channel_id"`
	UserID        string    `json:"user_id"`
	JoinedAt      time.Time `json:"joined_at"`
}

type Record struct {
	CommandsHistoryList []CommandHistoryRecord `json:"cmd_history"`
	Sessions            []SessionRecord        `json:"sessions"`
}

// ErrReadOnly is returned by writes on a store opened with OpenReadOnly.
var ErrReadOnly = errors.New("storage is read-only")

// New opens the datastore at filePath. It is saved periodically and on Close.
func New(ctx context.Context, filePath string) (*Storage, error) {
	return open(ctx, filePath, false)
}

// OpenReadOnly opens filePath for reading. Nothing is ever written back,
// so it is safe to use next to a running bot.
func OpenReadOnly(ctx context.Context, filePath string) (*Storage, error) {
	return open(ctx, filePath, true)
}

func open(ctx context.Context, filePath string, readOnly bool) (*Storage, error) {
	ctx, cancel := context.WithCancel(ctx)
	ds, err := datastore.New(ctx, filePath, datastore.WithSaveInterval(saveInterval))
	if err != nil {
		cancel()
		return nil, err
	}
	return &Storage{ds: ds, cancel: cancel, readOnly: readOnly}, nil
}

// Close stops autosaving and, unless read-only, writes a final snapshot.
func (s *Storage) Close() error {
	s.cancel()
	if s.readOnly {
		return nil
	}
	return s.ds.Close()
}

// guildRecord loads the record of a guild. A missing guild yields an empty
// record and nothing is stored.
func (s *Storage) guildRecord(guildID string) (*Record, error) {
	var record Record
	if _, err := s.ds.Get(guildID, &record); err != nil {
		return nil, fmt.Errorf("error reading guild record: %w", err)
	}

	record.CommandsHistoryList = tail(record.CommandsHistoryList, commandHistoryLimit)
	record.Sessions = tail(record.Sessions, sessionHistoryLimit)
	return &record, nil
}

func (s *Storage) update(guildID string, fn func(*Record)) error {
	if s.readOnly {
		return ErrReadOnly
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.guildRecord(guildID)
	if err != nil {
		return err
	}
	fn(record)
	if err := s.ds.Set(guildID, record); err != nil {
		return fmt.Errorf("error saving guild record: %w", err)
	}
	return nil
}

func tail[T any](list []T, limit int) []T {
	if len(list) > limit {
		return list[len(list)-limit:]
	}
	return list
}

// AppendCommandToHistory appends a command history record for a guild
func (s *Storage) AppendCommandToHistory(guildID string, command CommandHistoryRecord) error {
	return s.update(guildID, func(r *Record) {
		r.CommandsHistoryList = tail(append(r.CommandsHistoryList, command), commandHistoryLimit)
	})
}

func (s *Storage) FetchCommandHistory(guildID string) ([]CommandHistoryRecord, error) {
	record, err := s.guildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.CommandsHistoryList, nil
}

func (s *Storage) AppendSession(guildID string, session SessionRecord) error {
	return s.update(guildID, func(r *Record) {
		r.Sessions = tail(append(r.Sessions, session), sessionHistoryLimit)
	})
}

func (s *Storage) FetchSessions(guildID string) ([]SessionRecord, error) {
	record, err := s.guildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.Sessions, nil
}
