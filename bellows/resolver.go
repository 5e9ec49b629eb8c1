// Package bellows turns physical key events plus the bellows direction into
// sounding accordion buttons.
package bellows

import (
	"sort"
	"time"

	"go-acordeon/catalog"
	"go-acordeon/debug"
)

// State is the bellows state. Readers always get a copy.
type State struct {
	Direction  catalog.Direction `json:"direction"`
	LastFlipAt time.Time         `json:"lastFlipAt"`
}

// ActiveNote is a button currently sounding
type ActiveNote struct {
	ID          catalog.NoteID           `json:"-"`
	NoteID      string                   `json:"noteId"`
	Button      catalog.ButtonDefinition `json:"button"`
	Key         string                   `json:"key,omitempty"`
	ColorTag    string                   `json:"colorTag"`
	Direction   catalog.Direction        `json:"direction"`
	ActivatedAt time.Time                `json:"activatedAt"`
}

// Sink receives sound on/off notifications. Implementations must not block.
type Sink interface {
	OnNoteActivated(b catalog.ButtonDefinition)
	OnNoteDeactivated(id string)
}

// Sinks fans notifications out to several sinks
type Sinks []Sink

func (s Sinks) OnNoteActivated(b catalog.ButtonDefinition) {
	for _, sink := range s {
		sink.OnNoteActivated(b)
	}
}

func (s Sinks) OnNoteDeactivated(id string) {
	for _, sink := range s {
		sink.OnNoteDeactivated(id)
	}
}

// Resolver owns the bellows state and the set of active notes. It is the only
// writer of both; it is not safe for concurrent use on its own (the sequencer
// Manager serializes access).
type Resolver struct {
	catalog  *catalog.Catalog
	keymap   Keymap
	sink     Sink
	debounce time.Duration

	state     State
	pressed   map[string]string // physical key -> note id it activated
	mouseHeld bool
	active    map[string]*ActiveNote
}

// NewResolver creates a resolver starting in the Pull direction
func NewResolver(cat *catalog.Catalog, keymap Keymap, debounce time.Duration) *Resolver {
	return &Resolver{
		catalog:  cat,
		keymap:   keymap,
		debounce: debounce,
		state:    State{Direction: catalog.Pull},
		pressed:  make(map[string]string),
		active:   make(map[string]*ActiveNote),
	}
}

// SetSink sets where sound on/off notifications go (nil disables)
func (r *Resolver) SetSink(s Sink) {
	r.sink = s
}

// SetDebounce changes the post-flip rejection window
func (r *Resolver) SetDebounce(d time.Duration) {
	r.debounce = d
}

// Snapshot returns a copy of the bellows state
func (r *Resolver) Snapshot() State {
	return r.state
}

// Resolve builds the composite id for a physical key using the current direction
func (r *Resolver) Resolve(key string) (catalog.NoteID, bool) {
	return ResolveWith(r.state, r.keymap, key)
}

// ResolveWith is the pure form of Resolve
func ResolveWith(state State, keymap Keymap, key string) (catalog.NoteID, bool) {
	pos, ok := keymap[key]
	if !ok {
		return catalog.NoteID{}, false
	}
	return pos.ID(state.Direction), true
}

// Flip reverses the bellows. Sounding notes are retuned to the reed of the
// same button in the new direction; buttons without one are dropped. Pressed
// keys and the mouse-held flag do not survive a reversal.
func (r *Resolver) Flip(dir catalog.Direction, now time.Time) bool {
	if dir == r.state.Direction || !dir.Valid() {
		return false
	}

	r.state.LastFlipAt = now

	for _, id := range r.activeIDs() {
		old := r.active[id]
		r.remove(id)

		next := old.ID.WithDirection(dir)
		b, ok := r.catalog.LookupID(next)
		if !ok {
			debug.Log("bellows", "flip dropped %s: no %s reed", id, dir)
			continue
		}
		r.add(next, b, old.Key, now)
		debug.Log("bellows", "flip retuned %s -> %s", id, b.ID)
	}

	r.pressed = make(map[string]string)
	r.mouseHeld = false
	r.state.Direction = dir

	debug.Log("bellows", "direction=%s", dir)
	return true
}

// Toggle flips to the opposite direction
func (r *Resolver) Toggle(now time.Time) {
	r.Flip(r.state.Direction.Opposite(), now)
}

// Press resolves a physical key and activates the resulting note.
// It returns false when the key is unknown, the note is already active, the
// id is not cataloged or the press falls in the post-flip debounce window.
func (r *Resolver) Press(key string, now time.Time) (ActiveNote, bool) {
	id, ok := r.Resolve(key)
	if !ok {
		return ActiveNote{}, false
	}
	n, ok := r.activate(id, key, now)
	if ok {
		r.pressed[key] = n.NoteID
	}
	return n, ok
}

// Release deactivates the note a key produced. After a flip the key is no
// longer tracked, so the note is found by resolving the key again.
func (r *Resolver) Release(key string) (string, bool) {
	if id, ok := r.pressed[key]; ok {
		delete(r.pressed, key)
		return id, r.Deactivate(id)
	}
	id, ok := r.Resolve(key)
	if !ok {
		return "", false
	}
	s := id.String()
	return s, r.Deactivate(s)
}

// Activate turns on a note directly (no physical key)
func (r *Resolver) Activate(id catalog.NoteID, now time.Time) (ActiveNote, bool) {
	return r.activate(id, "", now)
}

func (r *Resolver) activate(id catalog.NoteID, key string, now time.Time) (ActiveNote, bool) {
	if r.inDebounce(now) {
		debug.Log("bellows", "debounced %s (%s after flip)", id, now.Sub(r.state.LastFlipAt))
		return ActiveNote{}, false
	}
	s := id.String()
	if _, dup := r.active[s]; dup {
		return ActiveNote{}, false
	}
	b, ok := r.catalog.Lookup(s)
	if !ok {
		debug.Log("bellows", "no button %s", s)
		return ActiveNote{}, false
	}
	return *r.add(id, b, key, now), true
}

func (r *Resolver) inDebounce(now time.Time) bool {
	if r.state.LastFlipAt.IsZero() {
		return false
	}
	return now.Sub(r.state.LastFlipAt) < r.debounce
}

// Deactivate turns a note off. Unknown ids are a no-op.
func (r *Resolver) Deactivate(id string) bool {
	if _, ok := r.active[id]; !ok {
		return false
	}
	r.remove(id)
	for k, v := range r.pressed {
		if v == id {
			delete(r.pressed, k)
		}
	}
	return true
}

func (r *Resolver) add(id catalog.NoteID, b catalog.ButtonDefinition, key string, now time.Time) *ActiveNote {
	n := &ActiveNote{
		ID:          id,
		NoteID:      b.ID,
		Button:      b,
		Key:         key,
		ColorTag:    id.Direction.ColorTag(),
		Direction:   id.Direction,
		ActivatedAt: now,
	}
	r.active[b.ID] = n
	if r.sink != nil {
		r.sink.OnNoteActivated(b)
	}
	return n
}

func (r *Resolver) remove(id string) {
	delete(r.active, id)
	if r.sink != nil {
		r.sink.OnNoteDeactivated(id)
	}
}

// SweepStuck force-deactivates notes active for longer than maxAge and
// returns their ids
func (r *Resolver) SweepStuck(now time.Time, maxAge time.Duration) []string {
	var swept []string
	for _, id := range r.activeIDs() {
		if now.Sub(r.active[id].ActivatedAt) > maxAge {
			r.Deactivate(id)
			swept = append(swept, id)
		}
	}
	if len(swept) > 0 {
		debug.Warn("bellows", "watchdog released stuck notes %v", swept)
	}
	return swept
}

// Reset deactivates everything and forgets pressed keys. Direction is kept.
func (r *Resolver) Reset() {
	for _, id := range r.activeIDs() {
		r.remove(id)
	}
	r.pressed = make(map[string]string)
	r.mouseHeld = false
}

// SetMouseHeld records whether a pointer button is down on a note
func (r *Resolver) SetMouseHeld(held bool) {
	r.mouseHeld = held
}

func (r *Resolver) MouseHeld() bool {
	return r.mouseHeld
}

// IsActive reports whether id is sounding
func (r *Resolver) IsActive(id string) bool {
	_, ok := r.active[id]
	return ok
}

// Active returns copies of the sounding notes, oldest first
func (r *Resolver) Active() []ActiveNote {
	out := make([]ActiveNote, 0, len(r.active))
	for _, id := range r.activeIDs() {
		out = append(out, *r.active[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ActivatedAt.Before(out[j].ActivatedAt)
	})
	return out
}

// PressedKeys returns the physical keys currently held
func (r *Resolver) PressedKeys() []string {
	keys := make([]string, 0, len(r.pressed))
	for k := range r.pressed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Resolver) activeIDs() []string {
	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
