// Package catalog holds the static button definitions of the accordion and the
// structured identifiers used to address them.
package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Direction is the bellows direction a reed sounds in
type Direction string

const (
	Push Direction = "empujar"
	Pull Direction = "halar"
)

// BassToken marks bass-side buttons in composite ids
const BassToken = "bajo"

// Valid reports whether d is one of the two bellows directions
func (d Direction) Valid() bool {
	return d == Push || d == Pull
}

// Opposite returns the other bellows direction
func (d Direction) Opposite() Direction {
	if d == Push {
		return Pull
	}
	return Push
}

// ColorTag is the presentation color family for notes sounding in d
func (d Direction) ColorTag() string {
	if d == Push {
		return "blue"
	}
	return "red"
}

// Position is a physical button: the same finger spot in both directions
type Position struct {
	Row    int
	Column int
	Bass   bool
}

// ID builds the composite id for this position in direction d
func (p Position) ID(d Direction) NoteID {
	return NoteID{Row: p.Row, Column: p.Column, Direction: d, Bass: p.Bass}
}

func (p Position) String() string {
	s := strconv.Itoa(p.Row) + "-" + strconv.Itoa(p.Column)
	if p.Bass {
		s += "-" + BassToken
	}
	return s
}

// ParsePosition parses "row-col" or "row-col-bajo"
func ParsePosition(s string) (Position, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 && len(parts) != 3 {
		return Position{}, fmt.Errorf("invalid position %q", s)
	}
	row, err := strconv.Atoi(parts[0])
	if err != nil {
		return Position{}, fmt.Errorf("invalid row in position %q", s)
	}
	col, err := strconv.Atoi(parts[1])
	if err != nil {
		return Position{}, fmt.Errorf("invalid column in position %q", s)
	}
	p := Position{Row: row, Column: col}
	if len(parts) == 3 {
		if parts[2] != BassToken {
			return Position{}, fmt.Errorf("invalid bass marker in position %q", s)
		}
		p.Bass = true
	}
	return p, nil
}

// NoteID is the structured form of a composite note id.
// String ids only exist at the catalog boundary.
type NoteID struct {
	Row       int
	Column    int
	Direction Direction
	Bass      bool
}

// String renders "{row}-{column}-{direction}[-bajo]"
func (id NoteID) String() string {
	s := strconv.Itoa(id.Row) + "-" + strconv.Itoa(id.Column) + "-" + string(id.Direction)
	if id.Bass {
		s += "-" + BassToken
	}
	return s
}

// Position drops the direction
func (id NoteID) Position() Position {
	return Position{Row: id.Row, Column: id.Column, Bass: id.Bass}
}

// WithDirection returns the equivalent id sounding in d (bass flag kept)
func (id NoteID) WithDirection(d Direction) NoteID {
	id.Direction = d
	return id
}

// ParseID parses a composite id. No normalization: the string must be exact.
func ParseID(s string) (NoteID, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 && len(parts) != 4 {
		return NoteID{}, fmt.Errorf("invalid note id %q", s)
	}
	row, err := strconv.Atoi(parts[0])
	if err != nil {
		return NoteID{}, fmt.Errorf("invalid row in note id %q", s)
	}
	col, err := strconv.Atoi(parts[1])
	if err != nil {
		return NoteID{}, fmt.Errorf("invalid column in note id %q", s)
	}
	dir := Direction(parts[2])
	if !dir.Valid() {
		return NoteID{}, fmt.Errorf("invalid direction in note id %q", s)
	}
	id := NoteID{Row: row, Column: col, Direction: dir}
	if len(parts) == 4 {
		if parts[3] != BassToken {
			return NoteID{}, fmt.Errorf("invalid bass marker in note id %q", s)
		}
		id.Bass = true
	}
	return id, nil
}
