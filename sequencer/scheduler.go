package sequencer

import (
	"go-acordeon/debug"
	"go-acordeon/song"
)

// FallingNote is a scheduled note that has entered the lanes and has not been
// resolved yet. Lane is -1 when no lane exists for the note.
type FallingNote struct {
	Index      int    `json:"index"`
	Lane       int    `json:"lane"`
	NoteID     string `json:"noteId"`
	TimeMs     int64  `json:"timeMs"`
	DurationMs int64  `json:"durationMs"`
}

type noteKey struct {
	timeMs int64
	noteID string
}

// Scheduler moves notes from the schedule into the lanes ahead of their hit
// time and retires the ones nobody played.
type Scheduler struct {
	schedule     *song.Schedule
	lanes        *Lanes
	leadMs       int64
	missWindowMs int64

	live []FallingNote
	seen map[noteKey]bool
}

func NewScheduler(schedule *song.Schedule, lanes *Lanes, leadMs, missWindowMs int64) *Scheduler {
	return &Scheduler{
		schedule:     schedule,
		lanes:        lanes,
		leadMs:       leadMs,
		missWindowMs: missWindowMs,
		seen:         make(map[noteKey]bool),
	}
}

// SetTiming changes the lead time and miss window
func (s *Scheduler) SetTiming(leadMs, missWindowMs int64) {
	s.leadMs = leadMs
	s.missWindowMs = missWindowMs
}

func (s *Scheduler) LeadMs() int64 {
	return s.leadMs
}

// Reset forgets every materialized note
func (s *Scheduler) Reset() {
	s.live = nil
	s.seen = make(map[noteKey]bool)
}

// Tick materializes notes due at clockMs, then sweeps expired ones. Swept
// notes are marked processed and returned; each one is a Miss.
func (s *Scheduler) Tick(clockMs int64) (spawned, missed []FallingNote) {
	spawned = s.materialize(clockMs)
	missed = s.sweep(clockMs)
	return spawned, missed
}

func (s *Scheduler) materialize(clockMs int64) []FallingNote {
	var spawned []FallingNote
	for {
		idx, n, ok := s.schedule.Peek()
		if !ok || clockMs+s.leadMs < n.TimeMs {
			break
		}
		s.schedule.Advance()

		key := noteKey{timeMs: n.TimeMs, noteID: n.NoteID}
		if s.seen[key] {
			// same note twice in the chart: it can only be played once
			debug.Warn("sched", "duplicate note %s at %dms (index %d) dropped", n.NoteID, n.TimeMs, idx)
			s.schedule.MarkProcessed(idx)
			continue
		}
		s.seen[key] = true

		if n.Processed {
			// already judged from an early press
			continue
		}

		lane, found := s.lanes.For(n.NoteID)
		if !found {
			debug.Warn("sched", "no lane for %s at %dms", n.NoteID, n.TimeMs)
		}
		fn := FallingNote{
			Index:      idx,
			Lane:       lane,
			NoteID:     n.NoteID,
			TimeMs:     n.TimeMs,
			DurationMs: n.DurationMs,
		}
		s.live = append(s.live, fn)
		spawned = append(spawned, fn)
	}
	return spawned
}

func (s *Scheduler) sweep(clockMs int64) []FallingNote {
	var missed []FallingNote
	kept := s.live[:0]
	for _, fn := range s.live {
		n := s.schedule.Note(fn.Index)
		if n == nil || n.Processed {
			continue
		}
		if fn.TimeMs+s.missWindowMs < clockMs {
			s.schedule.MarkProcessed(fn.Index)
			missed = append(missed, fn)
			continue
		}
		kept = append(kept, fn)
	}
	s.live = kept
	return missed
}

// Live returns a copy of the notes currently in the lanes
func (s *Scheduler) Live() []FallingNote {
	out := make([]FallingNote, 0, len(s.live))
	for _, fn := range s.live {
		if n := s.schedule.Note(fn.Index); n != nil && !n.Processed {
			out = append(out, fn)
		}
	}
	return out
}
