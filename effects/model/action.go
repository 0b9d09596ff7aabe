package model

// Action is a dispatched event. It is treated as immutable once dispatched.
type Action struct {
	Type    string
	Payload any
	Meta    *Meta
}

// Meta carries routing and causation metadata attached by the bridge.
type Meta struct {
	Feedbacks *Routing
	Cause     *Cause
}

// Routing marks an action as an effect action and/or names the state path
// that owns its result.
type Routing struct {
	IsEffect bool
	Path     Path
}

// Cause records the type of the action that produced a path-scoped update.
type Cause struct {
	Type string
}

// Fielder exposes named fields to the pattern matcher.
type Fielder interface {
	Field(key string) (any, bool)
}

var (
	_ Fielder = Action{}
	_ Fielder = (*Meta)(nil)
	_ Fielder = (*Routing)(nil)
	_ Fielder = (*Cause)(nil)
)

// Field returns "type", "payload" and "meta". Absent payload and meta report false.
func (a Action) Field(key string) (any, bool) {
	switch key {
	case "type":
		return a.Type, true
	case "payload":
		return a.Payload, a.Payload != nil
	case "meta":
		return a.Meta, a.Meta != nil
	default:
		return nil, false
	}
}

// Routing returns the routing metadata, or nil.
func (a Action) Routing() *Routing {
	if a.Meta == nil {
		return nil
	}
	return a.Meta.Feedbacks
}

// WithRouting returns a copy of the action whose routing metadata is r.
// The cause, if any, is kept.
func (a Action) WithRouting(r Routing) Action {
	meta := Meta{Feedbacks: &r}
	if a.Meta != nil {
		meta.Cause = a.Meta.Cause
	}
	a.Meta = &meta
	return a
}

func (m *Meta) Field(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	switch key {
	case "feedbacks":
		return m.Feedbacks, m.Feedbacks != nil
	case "cause":
		return m.Cause, m.Cause != nil
	default:
		return nil, false
	}
}

func (r *Routing) Field(key string) (any, bool) {
	if r == nil {
		return nil, false
	}
	switch key {
	case "isEffect":
		return r.IsEffect, true
	case "path":
		return r.Path, r.Path != nil
	default:
		return nil, false
	}
}

func (c *Cause) Field(key string) (any, bool) {
	if c == nil || key != "type" {
		return nil, false
	}
	return c.Type, true
}
