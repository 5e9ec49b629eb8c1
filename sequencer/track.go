package sequencer

import (
	"go-acordeon/catalog"
)

// Lane is the column a button's notes fall down. There is one lane per
// physical button; both reeds share it.
type Lane struct {
	Position catalog.Position `json:"position"`
	Name     string           `json:"name"`
}

// Lanes indexes lanes by button position
type Lanes struct {
	lanes []Lane
	index map[catalog.Position]int
}

// NewLanes creates one lane per position, in the given order
func NewLanes(positions []catalog.Position) *Lanes {
	l := &Lanes{
		lanes: make([]Lane, 0, len(positions)),
		index: make(map[catalog.Position]int, len(positions)),
	}
	for _, p := range positions {
		if _, dup := l.index[p]; dup {
			continue
		}
		l.index[p] = len(l.lanes)
		l.lanes = append(l.lanes, Lane{Position: p, Name: p.String()})
	}
	return l
}

func (l *Lanes) Len() int {
	return len(l.lanes)
}

// All returns a copy of the lanes
func (l *Lanes) All() []Lane {
	out := make([]Lane, len(l.lanes))
	copy(out, l.lanes)
	return out
}

// For returns the lane index for a composite note id
func (l *Lanes) For(noteID string) (int, bool) {
	id, err := catalog.ParseID(noteID)
	if err != nil {
		return -1, false
	}
	idx, ok := l.index[id.Position()]
	if !ok {
		return -1, false
	}
	return idx, true
}
