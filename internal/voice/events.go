package voice

import "context"

// EventClass selects which engine signal an observer is attached to.
type EventClass int

const (
	// EventTrackEnd fires once when one or more tracks finish.
	EventTrackEnd EventClass = iota
	// EventPeriodic fires repeatedly while a track plays.
	EventPeriodic
)

func (c EventClass) String() string {
	switch c {
	case EventTrackEnd:
		return "track-end"
	case EventPeriodic:
		return "periodic"
	default:
		return "unknown"
	}
}

// Action is what an observer asks the engine to do after an invocation.
type Action int

const (
	// Continue keeps the observer attached.
	Continue Action = iota
	// Cancel detaches the observer; the engine never invokes it again.
	Cancel
)

func (a Action) String() string {
	if a == Cancel {
		return "cancel"
	}
	return "continue"
}

// PlayMode is the engine-reported lifecycle of a track.
type PlayMode int

const (
	PlayModePlay PlayMode = iota
	PlayModeStop
	PlayModeEnd
)

func (m PlayMode) String() string {
	switch m {
	case PlayModePlay:
		return "playing"
	case PlayModeStop:
		return "stopped"
	case PlayModeEnd:
		return "ended"
	default:
		return "unknown"
	}
}

// TrackState is a snapshot of a track taken when an event is dispatched.
type TrackState struct {
	Volume float32
	Mode   PlayMode
}

// Finished reports whether the track can no longer accept commands.
func (s TrackState) Finished() bool {
	return s.Mode != PlayModePlay
}

// TrackHandle is the command surface of a track owned by the engine.
type TrackHandle interface {
	SetVolume(volume float32) error
	Stop() error
}

// Track is a playing track as returned by Call.Play.
type Track interface {
	TrackHandle
	State() TrackState
	AddEvent(class EventClass, o Observer)
}

// TrackEvent pairs a track with the state it had at dispatch time.
type TrackEvent struct {
	State TrackState
	Track TrackHandle
}

// EventContext is handed to observers on every invocation.
type EventContext struct {
	Class  EventClass
	Tracks []TrackEvent
}

// Observer reacts to one class of engine events.
type Observer interface {
	Act(ctx context.Context, ev *EventContext) Action
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(ctx context.Context, ev *EventContext) Action

func (f ObserverFunc) Act(ctx context.Context, ev *EventContext) Action {
	return f(ctx, ev)
}
