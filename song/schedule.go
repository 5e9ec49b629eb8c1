// Package song holds song schedules, song files and MIDI import.
package song

import (
	"fmt"
	"sort"

	"go-acordeon/catalog"
)

// ScheduledNote is one note the player is expected to play
type ScheduledNote struct {
	TimeMs     int64  `json:"time" yaml:"time"`
	NoteID     string `json:"note" yaml:"note"`
	DurationMs int64  `json:"duration,omitempty" yaml:"duration,omitempty"`
	Processed  bool   `json:"-" yaml:"-"`
}

// Song is a playable chart
type Song struct {
	ID     string          `json:"id" yaml:"id"`
	Title  string          `json:"title" yaml:"title"`
	Artist string          `json:"artist,omitempty" yaml:"artist,omitempty"`
	BPM    float64         `json:"bpm,omitempty" yaml:"bpm,omitempty"`
	Notes  []ScheduledNote `json:"notes" yaml:"notes"`
}

// DurationMs is when the last note ends
func (s *Song) DurationMs() int64 {
	var end int64
	for _, n := range s.Notes {
		if e := n.TimeMs + n.DurationMs; e > end {
			end = e
		}
	}
	return end
}

// ContentError is a malformed schedule entry. It always names the offending note.
type ContentError struct {
	Index  int
	NoteID string
	TimeMs int64
	Reason string
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("note %d (%q at %dms): %s", e.Index, e.NoteID, e.TimeMs, e.Reason)
}

type noteKey struct {
	timeMs int64
	noteID string
}

// Validate checks every note against the catalog and returns the first problem.
// The same note id twice at the same time is a content error: it could only be
// played once.
func Validate(notes []ScheduledNote, cat *catalog.Catalog) error {
	seen := make(map[noteKey]int, len(notes))
	for i, n := range notes {
		if n.TimeMs < 0 {
			return &ContentError{Index: i, NoteID: n.NoteID, TimeMs: n.TimeMs, Reason: "negative time"}
		}
		if n.DurationMs < 0 {
			return &ContentError{Index: i, NoteID: n.NoteID, TimeMs: n.TimeMs, Reason: "negative duration"}
		}
		if !cat.Has(n.NoteID) {
			return &ContentError{Index: i, NoteID: n.NoteID, TimeMs: n.TimeMs, Reason: "unknown note id"}
		}
		key := noteKey{timeMs: n.TimeMs, noteID: n.NoteID}
		if first, dup := seen[key]; dup {
			return &ContentError{Index: i, NoteID: n.NoteID, TimeMs: n.TimeMs, Reason: fmt.Sprintf("duplicate of note %d", first)}
		}
		seen[key] = i
	}
	return nil
}

// Schedule is the loaded, time-ordered list of notes plus a read cursor that
// only moves forward
type Schedule struct {
	notes  []ScheduledNote
	cursor int
}

func NewSchedule() *Schedule {
	return &Schedule{}
}

// Load replaces the schedule. Nothing is replaced when validation fails.
func (s *Schedule) Load(notes []ScheduledNote, cat *catalog.Catalog) error {
	if err := Validate(notes, cat); err != nil {
		return err
	}

	loaded := make([]ScheduledNote, len(notes))
	copy(loaded, notes)
	for i := range loaded {
		loaded[i].Processed = false
	}
	sort.SliceStable(loaded, func(i, j int) bool {
		return loaded[i].TimeMs < loaded[j].TimeMs
	})

	s.notes = loaded
	s.cursor = 0
	return nil
}

// Restart rewinds the cursor and marks every note unprocessed
func (s *Schedule) Restart() {
	for i := range s.notes {
		s.notes[i].Processed = false
	}
	s.cursor = 0
}

// Clear drops the schedule
func (s *Schedule) Clear() {
	s.notes = nil
	s.cursor = 0
}

func (s *Schedule) Len() int {
	return len(s.notes)
}

// Note returns the note at index i (nil when out of range)
func (s *Schedule) Note(i int) *ScheduledNote {
	if i < 0 || i >= len(s.notes) {
		return nil
	}
	return &s.notes[i]
}

func (s *Schedule) Cursor() int {
	return s.cursor
}

// Peek returns the note under the cursor
func (s *Schedule) Peek() (int, *ScheduledNote, bool) {
	if s.cursor >= len(s.notes) {
		return s.cursor, nil, false
	}
	return s.cursor, &s.notes[s.cursor], true
}

// Advance moves the cursor past the current note
func (s *Schedule) Advance() {
	if s.cursor < len(s.notes) {
		s.cursor++
	}
}

// MarkProcessed flips processed on note i. It returns false if the note was
// already processed, so each note resolves exactly once.
func (s *Schedule) MarkProcessed(i int) bool {
	n := s.Note(i)
	if n == nil || n.Processed {
		return false
	}
	n.Processed = true
	return true
}

// Window returns the index range [lo, hi) of notes with fromMs <= time <= toMs
func (s *Schedule) Window(fromMs, toMs int64) (lo, hi int) {
	lo = sort.Search(len(s.notes), func(i int) bool { return s.notes[i].TimeMs >= fromMs })
	hi = sort.Search(len(s.notes), func(i int) bool { return s.notes[i].TimeMs > toMs })
	return lo, hi
}

// Pending counts notes not yet processed
func (s *Schedule) Pending() int {
	n := 0
	for i := range s.notes {
		if !s.notes[i].Processed {
			n++
		}
	}
	return n
}

// Done reports whether every note has been resolved
func (s *Schedule) Done() bool {
	return s.cursor >= len(s.notes) && s.Pending() == 0
}

// Notes returns a copy of the schedule
func (s *Schedule) Notes() []ScheduledNote {
	out := make([]ScheduledNote, len(s.notes))
	copy(out, s.notes)
	return out
}
