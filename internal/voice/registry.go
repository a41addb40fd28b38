package voice

// Registry attaches observers to a session's call or to one of its tracks.
// It is only reachable through Session.Do and does not deduplicate:
// callers check HasGlobal before attaching a class a second time.
type Registry struct {
	session *Session
}

// AttachGlobal attaches o to every track played on the call.
func (r *Registry) AttachGlobal(class EventClass, o Observer) {
	r.session.call.AddGlobalEvent(class, o)
	r.session.attached[class] = true
}

// HasGlobal reports whether a global observer of class was attached
// through this session.
func (r *Registry) HasGlobal(class EventClass) bool {
	return r.session.attached[class]
}

// AttachTrack attaches o to a single track.
func (r *Registry) AttachTrack(t Track, class EventClass, o Observer) {
	t.AddEvent(class, o)
}
