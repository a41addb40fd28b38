package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/keshon/fadebot/internal/storage"
)

func seedStorage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datastore.json")
	s, err := storage.New(context.Background(), path)
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	_ = s.AppendCommandToHistory("g1", storage.CommandHistoryRecord{Username: "alice", Command: "play", Param: "https://a", Datetime: at})
	_ = s.AppendSession("g1", storage.SessionRecord{ChannelID: "vc", TextChannelID: "text", UserID: "u1", JoinedAt: at})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestHistoryTable(t *testing.T) {
	path := seedStorage(t)
	now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = time.Now })

	out, err := execute(t, "--storage", path, "history", "g1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	for _, want := range []string{"COMMAND", "alice", "play", "https://a", "2 hours ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSessionsJSON(t *testing.T) {
	path := seedStorage(t)

	out, err := execute(t, "--storage", path, "--json", "sessions", "g1")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	var got []storage.SessionRecord
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(got) != 1 || got[0].ChannelID != "vc" {
		t.Errorf("sessions = %+v", got)
	}
}

func TestReadsLeaveDatastoreUntouched(t *testing.T) {
	path := seedStorage(t)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	for _, args := range [][]string{{"history", "unknown"}, {"sessions", "unknown"}, {"history", "g1"}} {
		if _, err := execute(t, append([]string{"--storage", path}, args...)...); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Errorf("datastore changed:\nbefore %s\nafter  %s", before, after)
	}
}

func TestEmptyGuildAndMissingFile(t *testing.T) {
	path := seedStorage(t)

	out, err := execute(t, "--storage", path, "--json=false", "history", "other")
	if err != nil || !strings.Contains(out, "No commands recorded.") {
		t.Errorf("empty guild: %q, %v", out, err)
	}

	if _, err := execute(t, "--storage", filepath.Join(t.TempDir(), "nope.json"), "history", "g1"); err == nil {
		t.Error("expected error for missing datastore")
	}
}
