package bellows

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-acordeon/catalog"
)

type recordingSink struct {
	on  []string
	off []string
}

func (s *recordingSink) OnNoteActivated(b catalog.ButtonDefinition) { s.on = append(s.on, b.ID) }
func (s *recordingSink) OnNoteDeactivated(id string)                 { s.off = append(s.off, id) }

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func newTestResolver() (*Resolver, *recordingSink) {
	cat := catalog.Default()
	r := NewResolver(cat, DefaultKeymap(cat), 100*time.Millisecond)
	sink := &recordingSink{}
	r.SetSink(sink)
	return r, sink
}

func activeIDs(r *Resolver) []string {
	var ids []string
	for _, n := range r.Active() {
		ids = append(ids, n.NoteID)
	}
	return ids
}

func TestResolveUsesCurrentDirection(t *testing.T) {
	r, _ := newTestResolver()

	id, ok := r.Resolve("3")
	require.True(t, ok)
	assert.Equal(t, "1-3-halar", id.String())

	r.Flip(catalog.Push, at(0))
	id, ok = r.Resolve("3")
	require.True(t, ok)
	assert.Equal(t, "1-3-empujar", id.String())

	id, ok = r.Resolve("x")
	require.True(t, ok)
	assert.Equal(t, "1-2-empujar-bajo", id.String())

	_, ok = r.Resolve("F12")
	assert.False(t, ok)
}

func TestResolveWithIsPure(t *testing.T) {
	km := DefaultKeymap(nil)
	state := State{Direction: catalog.Push}
	a, _ := ResolveWith(state, km, "w")
	b, _ := ResolveWith(state, km, "w")
	assert.Equal(t, a, b)
	assert.Equal(t, "2-2-empujar", a.String())
}

func TestActivationIsIdempotent(t *testing.T) {
	r, sink := newTestResolver()

	_, ok := r.Press("3", at(0))
	assert.True(t, ok)
	_, ok = r.Press("3", at(10))
	assert.False(t, ok)

	assert.Equal(t, []string{"1-3-halar"}, activeIDs(r))
	assert.Equal(t, []string{"1-3-halar"}, sink.on)

	assert.False(t, r.Deactivate("2-2-empujar"), "deactivating an inactive id is a no-op")
	assert.Empty(t, sink.off)
}

func TestFlipRetunesActiveNotes(t *testing.T) {
	r, sink := newTestResolver()
	_, ok := r.Press("3", at(0))
	require.True(t, ok)
	r.SetMouseHeld(true)

	assert.True(t, r.Flip(catalog.Push, at(500)))

	assert.Equal(t, []string{"1-3-empujar"}, activeIDs(r))
	assert.Equal(t, []string{"1-3-halar", "1-3-empujar"}, sink.on)
	assert.Equal(t, []string{"1-3-halar"}, sink.off)
	assert.Empty(t, r.PressedKeys())
	assert.False(t, r.MouseHeld())

	state := r.Snapshot()
	assert.Equal(t, catalog.Push, state.Direction)
	assert.Equal(t, at(500), state.LastFlipAt)
}

func TestFlipKeepsBassFlag(t *testing.T) {
	r, _ := newTestResolver()
	_, ok := r.Press("Z", at(0))
	require.True(t, ok)

	r.Flip(catalog.Push, at(300))
	assert.Equal(t, []string{"2-1-empujar-bajo"}, activeIDs(r))
}

func TestFlipDropsNotesWithoutCounterpart(t *testing.T) {
	pull := catalog.ButtonDefinition{ID: "1-1-halar", Row: 1, Column: 1, Direction: catalog.Pull, Frequencies: []float64{392}}
	cat := catalog.MustNew([]catalog.ButtonDefinition{pull})
	r := NewResolver(cat, DefaultKeymap(cat), 100*time.Millisecond)

	_, ok := r.Press("1", at(0))
	require.True(t, ok)
	r.Flip(catalog.Push, at(200))
	assert.Empty(t, r.Active())
}

func TestFlipWithNothingActiveOnlyChangesDirection(t *testing.T) {
	r, sink := newTestResolver()
	r.Flip(catalog.Push, at(0))

	assert.Empty(t, r.Active())
	assert.Empty(t, sink.on)
	assert.Empty(t, sink.off)
	assert.Equal(t, catalog.Push, r.Snapshot().Direction)
}

func TestFlipToSameDirectionIsNoop(t *testing.T) {
	r, _ := newTestResolver()
	assert.False(t, r.Flip(catalog.Pull, at(0)))
	assert.True(t, r.Snapshot().LastFlipAt.IsZero())

	_, ok := r.Press("1", at(1))
	assert.True(t, ok, "no debounce without a real flip")
}

func TestDebounceAfterFlip(t *testing.T) {
	cases := []struct {
		name  string
		after int
		want  bool
	}{
		{"50ms rejected", 50, false},
		{"99ms rejected", 99, false},
		{"100ms accepted", 100, true},
		{"150ms accepted", 150, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r, _ := newTestResolver()
			r.Flip(catalog.Push, at(1000))
			_, ok := r.Press("4", at(1000+c.after))
			assert.Equal(t, c.want, ok)
		})
	}
}

func TestDeactivationIsNotDebounced(t *testing.T) {
	r, _ := newTestResolver()
	_, ok := r.Press("4", at(0))
	require.True(t, ok)
	r.Flip(catalog.Push, at(500))

	id, ok := r.Release("4")
	assert.True(t, ok)
	assert.Equal(t, "1-4-empujar", id)
	assert.Empty(t, r.Active())
}

func TestReleaseTracksPressedKey(t *testing.T) {
	r, sink := newTestResolver()
	_, ok := r.Press("q", at(0))
	require.True(t, ok)

	id, ok := r.Release("q")
	assert.True(t, ok)
	assert.Equal(t, "2-1-halar", id)
	assert.Equal(t, []string{"2-1-halar"}, sink.off)

	_, ok = r.Release("q")
	assert.False(t, ok)
}

func TestSweepStuck(t *testing.T) {
	r, _ := newTestResolver()
	_, _ = r.Press("1", at(0))
	_, _ = r.Press("2", at(4000))

	swept := r.SweepStuck(at(5500), 5*time.Second)
	assert.Equal(t, []string{"1-1-halar"}, swept)
	assert.Equal(t, []string{"1-2-halar"}, activeIDs(r))
	assert.Equal(t, []string{"2"}, r.PressedKeys())
}

func TestReset(t *testing.T) {
	r, sink := newTestResolver()
	_, _ = r.Press("1", at(0))
	_, _ = r.Press("2", at(0))
	r.SetMouseHeld(true)

	r.Reset()
	assert.Empty(t, r.Active())
	assert.Empty(t, r.PressedKeys())
	assert.False(t, r.MouseHeld())
	assert.Len(t, sink.off, 2)
	assert.Equal(t, catalog.Pull, r.Snapshot().Direction)
}

func TestKeymapMIDIAndOverride(t *testing.T) {
	km := DefaultKeymap(catalog.Default())
	km.AddMIDI([3]uint8{60, 72, 84}, 36)

	assert.Equal(t, catalog.Position{Row: 1, Column: 1}, km[MIDIKey(60)])
	assert.Equal(t, catalog.Position{Row: 3, Column: 10}, km[MIDIKey(93)])
	assert.Equal(t, catalog.Position{Row: 2, Column: 1, Bass: true}, km[MIDIKey(42)])
	assert.Equal(t, catalog.Position{Row: 2, Column: 3}, km[HardwareKey(catalog.Position{Row: 2, Column: 3})])

	require.NoError(t, km.Override(map[string]string{"m": "1-5-bajo"}))
	assert.Equal(t, catalog.Position{Row: 1, Column: 5, Bass: true}, km["m"])
	assert.Error(t, km.Override(map[string]string{"m": "bogus"}))
}
