package midi

import (
	"context"

	"go-acordeon/catalog"
	"go-acordeon/debug"
	"go-acordeon/sequencer"
)

// Engine is what keyboard input drives
type Engine interface {
	PressKey(key string) sequencer.PressResult
	ReleaseKey(key string) (string, bool)
	Flip(dir catalog.Direction) bool
}

// Router turns keyboard events into engine input. Notes become "midi:<n>"
// keys; the bellows controller pushes at values >= 64 and pulls below.
type Router struct {
	engine    Engine
	bellowsCC uint8
}

// NewRouter creates a router. bellowsCC 0 disables bellows control.
func NewRouter(engine Engine, bellowsCC uint8) *Router {
	return &Router{engine: engine, bellowsCC: bellowsCC}
}

// Handle applies one event
func (r *Router) Handle(ev Event) {
	switch ev.Type {
	case NoteOn:
		res := r.engine.PressKey(ev.Key())
		debug.Log("midi", "note on %d -> %s activated=%v", ev.Note, res.NoteID, res.Activated)
	case NoteOff:
		r.engine.ReleaseKey(ev.Key())
	case CC:
		if r.bellowsCC == 0 || ev.Note != r.bellowsCC {
			return
		}
		dir := catalog.Pull
		if ev.Velocity >= 64 {
			dir = catalog.Push
		}
		r.engine.Flip(dir)
	}
}

// Run consumes events until ctx is done or the channel closes
func (r *Router) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.Handle(ev)
		}
	}
}
