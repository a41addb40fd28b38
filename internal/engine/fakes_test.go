package engine

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/keshon/fadebot/internal/voice"
)

type fakeConn struct {
	sink         chan []byte
	frames       atomic.Int64
	disconnected atomic.Int32
	done         chan struct{}
}

func newFakeConn() *fakeConn {
	c := &fakeConn{sink: make(chan []byte), done: make(chan struct{})}
	go func() {
		for {
			select {
			case <-c.sink:
				c.frames.Add(1)
			case <-c.done:
				return
			}
		}
	}()
	return c
}

func (c *fakeConn) OpusSink() chan<- []byte { return c.sink }
func (c *fakeConn) Speaking(bool) error    { return nil }

func (c *fakeConn) Disconnect() error {
	if c.disconnected.Add(1) == 1 {
		close(c.done)
	}
	return nil
}

type fakeConnector struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error

	// gate, when set, runs before connecting and may block.
	gate func(guildID string)
}

func (f *fakeConnector) ConnectVoice(_ context.Context, guildID, _ string) (VoiceConn, error) {
	if f.gate != nil {
		f.gate(guildID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := newFakeConn()
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeConnector) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// endlessPCM yields a constant sample forever.
type endlessPCM struct {
	sample int16
	closed atomic.Bool
}

func (r *endlessPCM) Read(p []byte) (int, error) {
	if r.closed.Load() {
		return 0, io.EOF
	}
	for i := 0; i+1 < len(p); i += 2 {
		binary.LittleEndian.PutUint16(p[i:], uint16(r.sample))
	}
	time.Sleep(100 * time.Microsecond)
	return len(p) &^ 1, nil
}

func (r *endlessPCM) Close() error {
	r.closed.Store(true)
	return nil
}

func pcmFrames(n int, sample int16) io.ReadCloser {
	buf := make([]byte, n*frameSize*channels*2)
	for i := 0; i+1 < len(buf); i += 2 {
		binary.LittleEndian.PutUint16(buf[i:], uint16(sample))
	}
	return io.NopCloser(bytes.NewReader(buf))
}

// gatedReader blocks its first read until release is closed.
type gatedReader struct {
	io.ReadCloser
	release chan struct{}
}

func (g *gatedReader) Read(p []byte) (int, error) {
	<-g.release
	return g.ReadCloser.Read(p)
}

// slowClose blocks Close until release is closed.
type slowClose struct {
	io.ReadCloser
	release chan struct{}
}

func (s *slowClose) Close() error {
	<-s.release
	return s.ReadCloser.Close()
}

type fakeSource struct {
	open func(url string) (io.ReadCloser, error)
}

func (s *fakeSource) Open(_ context.Context, url string) (io.ReadCloser, error) {
	return s.open(url)
}

type fakeEncoder struct {
	mu    sync.Mutex
	first []int16
}

func (e *fakeEncoder) Encode(pcm []int16, _, _ int) ([]byte, error) {
	e.mu.Lock()
	e.first = append(e.first, pcm[0])
	e.mu.Unlock()
	return []byte{0xF8, 0xFF, 0xFE}, nil
}

type recordingMessenger struct {
	mu   sync.Mutex
	sent []string
}

func (m *recordingMessenger) Send(_ context.Context, _, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, text)
	return nil
}

func (m *recordingMessenger) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

// countingObserver wraps an observer and counts its invocations.
type countingObserver struct {
	inner voice.Observer
	calls atomic.Int32
}

func (o *countingObserver) Act(ctx context.Context, ev *voice.EventContext) voice.Action {
	o.calls.Add(1)
	return o.inner.Act(ctx, ev)
}

type testEngine struct {
	*Engine
	connector *fakeConnector
	encoder   *fakeEncoder
}

func newTestEngine(t *testing.T, open func(string) (io.ReadCloser, error)) *testEngine {
	t.Helper()
	connector := &fakeConnector{}
	enc := &fakeEncoder{}
	e := New(Config{
		Connector:  connector,
		Source:     &fakeSource{open: open},
		NewEncoder: func() (Encoder, error) { return enc, nil },
		FadeDelay:  0,
		FadePeriod: 2 * time.Millisecond,
	})
	t.Cleanup(e.Shutdown)
	return &testEngine{Engine: e, connector: connector, encoder: enc}
}

func waitDone(t *testing.T, tr *Track) {
	t.Helper()
	select {
	case <-tr.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("track did not finish")
	}
}

var errBoom = errors.New("boom")
