package voice

import (
	"context"
	"sync"
)

type sentMessage struct {
	ChannelID string
	Text      string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (m *fakeMessenger) Send(_ context.Context, channelID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{ChannelID: channelID, Text: text})
	return m.err
}

func (m *fakeMessenger) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

func (m *fakeMessenger) count(text string) int {
	n := 0
	for _, s := range m.messages() {
		if s.Text == text {
			n++
		}
	}
	return n
}

type fakePresence map[string]string

func (p fakePresence) CurrentVoiceChannel(guildID, userID string) (string, bool) {
	ch, ok := p[guildID+"/"+userID]
	return ch, ok
}

type fakeTrack struct {
	mu         sync.Mutex
	volume     float32
	mode       PlayMode
	setVolumes []float32
	stops      int
	volumeErr  error
	stopErr    error
	events     map[EventClass][]Observer
}

func newFakeTrack(volume float32) *fakeTrack {
	return &fakeTrack{volume: volume, events: make(map[EventClass][]Observer)}
}

func (t *fakeTrack) SetVolume(v float32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setVolumes = append(t.setVolumes, v)
	if t.volumeErr != nil {
		return t.volumeErr
	}
	t.volume = v
	return nil
}

func (t *fakeTrack) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stops++
	if t.stopErr != nil {
		return t.stopErr
	}
	t.mode = PlayModeStop
	return nil
}

func (t *fakeTrack) State() TrackState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TrackState{Volume: t.volume, Mode: t.mode}
}

func (t *fakeTrack) AddEvent(class EventClass, o Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events[class] = append(t.events[class], o)
}

func (t *fakeTrack) event() *EventContext {
	return &EventContext{
		Class:  EventPeriodic,
		Tracks: []TrackEvent{{State: t.State(), Track: t}},
	}
}

type fakeCall struct {
	mu           sync.Mutex
	channelID    string
	global       map[EventClass][]Observer
	track        *fakeTrack
	playErr      error
	disconnected int
}

func newFakeCall(channelID string) *fakeCall {
	return &fakeCall{channelID: channelID, global: make(map[EventClass][]Observer)}
}

func (c *fakeCall) ChannelID() string { return c.channelID }

func (c *fakeCall) AddGlobalEvent(class EventClass, o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.global[class] = append(c.global[class], o)
}

func (c *fakeCall) observers(class EventClass) []Observer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Observer(nil), c.global[class]...)
}

func (c *fakeCall) Play(context.Context, string) (Track, error) {
	if c.playErr != nil {
		return nil, c.playErr
	}
	c.track = newFakeTrack(1)
	return c.track, nil
}

func (c *fakeCall) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected++
	return nil
}

type fakeEngine struct {
	mu    sync.Mutex
	call  *fakeCall
	err   error
	joins int
}

func (e *fakeEngine) Join(_ context.Context, _, _ string) (Call, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.joins++
	if e.err != nil {
		return nil, e.err
	}
	return e.call, nil
}

func (e *fakeEngine) joinCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.joins
}
