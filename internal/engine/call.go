package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keshon/fadebot/internal/voice"
	"github.com/rs/zerolog"
)

var ErrCallClosed = errors.New("call is disconnected")

type subscription struct {
	class     voice.EventClass
	observer  voice.Observer
	cancelled atomic.Bool
}

func subscriptionsOf(list []*subscription, class voice.EventClass) []*subscription {
	var out []*subscription
	for _, s := range list {
		if s.class == class && !s.cancelled.Load() {
			out = append(out, s)
		}
	}
	return out
}

func prune(list []*subscription) []*subscription {
	out := list[:0]
	for _, s := range list {
		if !s.cancelled.Load() {
			out = append(out, s)
		}
	}
	return out
}

// Call is the voice connection of one guild. Observers attached to it or to
// its tracks are invoked one at a time from the call's dispatcher goroutine.
type Call struct {
	engine  *Engine
	guildID string
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	channelID string
	conn      VoiceConn
	global    []*subscription
	current   *Track
	closed    bool

	jobs       chan func()
	quit       chan struct{}
	quitOnce   sync.Once
	dispatched chan struct{}
	gone       chan struct{}
}

func newCall(e *Engine, guildID, channelID string, conn VoiceConn) *Call {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Call{
		engine:     e,
		guildID:    guildID,
		log:        e.log.With().Str("guild", guildID).Logger(),
		ctx:        ctx,
		cancel:     cancel,
		channelID:  channelID,
		conn:       conn,
		jobs:       make(chan func(), 64),
		quit:       make(chan struct{}),
		dispatched: make(chan struct{}),
		gone:       make(chan struct{}),
	}
	go c.dispatch()
	return c
}

func (c *Call) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

// AddGlobalEvent attaches o to every track played on this call.
func (c *Call) AddGlobalEvent(class voice.EventClass, o voice.Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.global = append(c.global, &subscription{class: class, observer: o})
}

// Play starts url, stopping whatever was playing before.
func (c *Call) Play(ctx context.Context, url string) (voice.Track, error) {
	src, err := c.engine.cfg.Source.Open(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}

	enc, err := c.engine.cfg.NewEncoder()
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("encoder error: %w", err)
	}

	t := newTrack(url)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		src.Close()
		return nil, ErrCallClosed
	}
	prev := c.current
	c.current = t
	c.mu.Unlock()

	if prev != nil {
		_ = prev.Stop()
	}

	c.log.Info().Str("url", url).Msg("Starting track")
	go c.playback(t, prev, src, enc)
	go c.tickLoop(t)
	return t, nil
}

// Current returns the track that is playing, if any.
func (c *Call) Current() (*Track, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.current != nil
}

// Disconnect stops playback, delivers the pending end events and closes
// the voice connection. It must not be called from an observer.
func (c *Call) Disconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cur := c.current
	conn := c.conn
	c.mu.Unlock()

	if cur != nil {
		_ = cur.Stop()
		<-cur.Done()
	}

	c.quitOnce.Do(func() { close(c.quit) })
	<-c.dispatched

	err := conn.Disconnect()
	c.engine.forget(c)
	close(c.gone)

	c.log.Info().Msg("Disconnected")
	return err
}

// closing reports whether Disconnect has started.
func (c *Call) closing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Call) move(channelID string, conn VoiceConn) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCallClosed
	}
	old := c.conn
	c.conn = conn
	c.channelID = channelID
	c.mu.Unlock()

	if old != conn {
		if err := old.Disconnect(); err != nil {
			c.log.Warn().Err(err).Msg("Failed to close previous voice connection")
		}
	}
	return nil
}

func (c *Call) connection() VoiceConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Call) sink() chan<- []byte {
	return c.connection().OpusSink()
}

func (c *Call) playback(t *Track, prev *Track, src io.ReadCloser, enc Encoder) {
	defer close(t.ended)

	if prev != nil {
		<-prev.finished
	}

	conn := c.connection()
	if err := conn.Speaking(true); err != nil {
		c.log.Debug().Err(err).Msg("Speaking(true) failed")
	}

	err := t.stream(src, enc, c.sink)
	src.Close()

	if err := conn.Speaking(false); err != nil {
		c.log.Debug().Err(err).Msg("Speaking(false) failed")
	}

	if err != nil {
		c.log.Error().Err(err).Str("url", t.URL).Msg("Playback error")
	} else {
		c.log.Info().Str("url", t.URL).Msg("Playback finished")
	}

	t.finish(voice.PlayModeEnd)
	<-t.tickerDone

	c.mu.Lock()
	if c.current == t {
		c.current = nil
	}
	c.mu.Unlock()

	c.enqueue(func() { c.fireEnd(t) })
}

func (c *Call) tickLoop(t *Track) {
	defer close(t.tickerDone)

	timer := time.NewTimer(c.engine.cfg.FadeDelay)
	defer timer.Stop()

	select {
	case <-t.finished:
		return
	case <-c.quit:
		return
	case <-timer.C:
	}

	ticker := time.NewTicker(c.engine.cfg.FadePeriod)
	defer ticker.Stop()

	for {
		select {
		case c.jobs <- func() { c.firePeriodic(t) }:
		case <-t.finished:
			return
		case <-c.quit:
			return
		}

		select {
		case <-t.finished:
			return
		case <-c.quit:
			return
		case <-ticker.C:
		}
	}
}

func (c *Call) enqueue(job func()) {
	select {
	case c.jobs <- job:
	case <-c.quit:
		c.log.Warn().Msg("Event dropped, call closed")
	}
}

// dispatch runs queued observer invocations until the call is closed,
// then drains what is left.
func (c *Call) dispatch() {
	defer close(c.dispatched)
	defer c.cancel()

	for {
		select {
		case job := <-c.jobs:
			job()
		case <-c.quit:
			for {
				select {
				case job := <-c.jobs:
					job()
				default:
					return
				}
			}
		}
	}
}

func (c *Call) globalSubscriptions(class voice.EventClass) []*subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return subscriptionsOf(c.global, class)
}

func (c *Call) firePeriodic(t *Track) {
	subs := append(t.subscriptions(voice.EventPeriodic), c.globalSubscriptions(voice.EventPeriodic)...)
	if len(subs) == 0 {
		return
	}
	c.fire(subs, &voice.EventContext{
		Class:  voice.EventPeriodic,
		Tracks: []voice.TrackEvent{{State: t.State(), Track: t}},
	})
}

// fireEnd runs the track's own end observers before the call-wide ones.
func (c *Call) fireEnd(t *Track) {
	ev := &voice.EventContext{
		Class:  voice.EventTrackEnd,
		Tracks: []voice.TrackEvent{{State: t.State(), Track: t}},
	}
	c.fire(t.subscriptions(voice.EventTrackEnd), ev)
	c.fire(c.globalSubscriptions(voice.EventTrackEnd), ev)
}

func (c *Call) fire(subs []*subscription, ev *voice.EventContext) {
	cancelled := false
	for _, s := range subs {
		if s.cancelled.Load() {
			continue
		}
		if s.observer.Act(c.ctx, ev) == voice.Cancel {
			s.cancelled.Store(true)
			cancelled = true
		}
	}
	if !cancelled {
		return
	}

	c.mu.Lock()
	c.global = prune(c.global)
	c.mu.Unlock()
	for _, tr := range tracksOf(ev) {
		tr.pruneSubscriptions()
	}
}

func tracksOf(ev *voice.EventContext) []*Track {
	var out []*Track
	for _, te := range ev.Tracks {
		if t, ok := te.Track.(*Track); ok {
			out = append(out, t)
		}
	}
	return out
}
