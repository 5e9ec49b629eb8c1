package sequencer

import (
	"time"

	"golang.org/x/exp/constraints"

	"go-acordeon/config"
	"go-acordeon/song"
)

// Tier is the timing grade of one outcome
type Tier int

const (
	TierPerfect Tier = iota
	TierGood
	TierOffbeat
	TierMiss
)

var tierNames = [...]string{"perfect", "good", "offbeat", "miss"}

func (t Tier) String() string {
	if t < 0 || int(t) >= len(tierNames) {
		return "unknown"
	}
	return tierNames[t]
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Points is the base score before the combo multiplier
func (t Tier) Points() int {
	switch t {
	case TierPerfect:
		return 300
	case TierGood:
		return 200
	case TierOffbeat:
		return 100
	}
	return 0
}

// Hit reports whether the tier keeps the combo going
func (t Tier) Hit() bool {
	return t == TierPerfect || t == TierGood
}

const (
	maxHealth       = 100
	missPenalty     = 10
	perfectBonus    = 2
	comboMultCap    = 50
	comboMultTenths = 1 // +0.1x per combo step
)

// Feedback is one scored outcome, for the presentation layer
type Feedback struct {
	Tier    Tier      `json:"tier"`
	Combo   int       `json:"combo"`
	At      time.Time `json:"at"`
	NoteID  string    `json:"noteId,omitempty"`
	DeltaMs int64     `json:"deltaMs"`
	Points  int       `json:"points"`
}

// GameState is the running score of a song
type GameState struct {
	Score        int       `json:"score"`
	Combo        int       `json:"combo"`
	ComboMax     int       `json:"comboMax"`
	Health       int       `json:"health"`
	NotesPlayed  int       `json:"notesPlayed"`
	NotesCorrect int       `json:"notesCorrect"`
	Perfect      int       `json:"perfect"`
	Good         int       `json:"good"`
	Offbeat      int       `json:"offbeat"`
	Miss         int       `json:"miss"`
	LastFeedback *Feedback `json:"lastFeedback,omitempty"`
}

// NewGameState returns a fresh state at full health
func NewGameState() GameState {
	return GameState{Health: maxHealth}
}

// Accuracy is the share of outcomes that kept the combo, 0..1
func (g GameState) Accuracy() float64 {
	if g.NotesPlayed == 0 {
		return 0
	}
	return float64(g.NotesCorrect) / float64(g.NotesPlayed)
}

// Classify grades a timing error. Everything past the offbeat window is a Miss.
func Classify(deltaMs int64, t config.TimingConfig) Tier {
	if deltaMs < 0 {
		deltaMs = -deltaMs
	}
	switch {
	case deltaMs <= t.PerfectMs:
		return TierPerfect
	case deltaMs <= t.GoodMs:
		return TierGood
	case deltaMs <= t.OffbeatMs:
		return TierOffbeat
	}
	return TierMiss
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Scorer judges presses against the schedule and keeps the GameState
type Scorer struct {
	schedule *song.Schedule
	timing   config.TimingConfig
	state    GameState
}

func NewScorer(schedule *song.Schedule, timing config.TimingConfig) *Scorer {
	return &Scorer{
		schedule: schedule,
		timing:   timing,
		state:    NewGameState(),
	}
}

func (s *Scorer) SetTiming(t config.TimingConfig) {
	s.timing = t
}

func (s *Scorer) Reset() {
	s.state = NewGameState()
}

// State returns a copy of the game state
func (s *Scorer) State() GameState {
	st := s.state
	if st.LastFeedback != nil {
		fb := *st.LastFeedback
		st.LastFeedback = &fb
	}
	return st
}

// Judge finds the nearest unprocessed note with this id within the search
// margin of playedAtMs and consumes it. Ties go to the earlier note.
// matched is false when nothing qualifies; the schedule is left untouched.
func (s *Scorer) Judge(noteID string, playedAtMs int64) (tier Tier, deltaMs int64, matched bool) {
	lo, hi := s.schedule.Window(playedAtMs-s.timing.SearchMarginMs, playedAtMs+s.timing.SearchMarginMs)

	best := -1
	var bestAbs int64
	for i := lo; i < hi; i++ {
		n := s.schedule.Note(i)
		if n.Processed || n.NoteID != noteID {
			continue
		}
		d := playedAtMs - n.TimeMs
		abs := d
		if abs < 0 {
			abs = -abs
		}
		if best < 0 || abs < bestAbs {
			best, bestAbs, deltaMs = i, abs, d
		}
	}
	if best < 0 {
		return TierMiss, 0, false
	}

	s.schedule.MarkProcessed(best)
	return Classify(deltaMs, s.timing), deltaMs, true
}

// Apply folds one outcome into the game state and returns its feedback
func (s *Scorer) Apply(tier Tier, noteID string, deltaMs int64, now time.Time) Feedback {
	st := &s.state
	comboBefore := st.Combo

	st.NotesPlayed++
	switch tier {
	case TierPerfect:
		st.Perfect++
	case TierGood:
		st.Good++
	case TierOffbeat:
		st.Offbeat++
	case TierMiss:
		st.Miss++
	}

	if tier.Hit() {
		st.Combo++
		st.NotesCorrect++
		if st.Combo > st.ComboMax {
			st.ComboMax = st.Combo
		}
	} else {
		st.Combo = 0
	}

	// integer math keeps the floor exact: base * (1 + 0.1*combo)
	mult := 10 + comboMultTenths*min(comboBefore, comboMultCap)
	points := tier.Points() * mult / 10
	st.Score += points

	switch tier {
	case TierMiss:
		st.Health = clamp(st.Health-missPenalty, 0, maxHealth)
	case TierPerfect:
		st.Health = clamp(st.Health+perfectBonus, 0, maxHealth)
	}

	fb := Feedback{
		Tier:    tier,
		Combo:   st.Combo,
		At:      now,
		NoteID:  noteID,
		DeltaMs: deltaMs,
		Points:  points,
	}
	st.LastFeedback = &fb
	return fb
}
