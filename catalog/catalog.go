package catalog

import (
	"fmt"
	"math"
	"sort"
)

// ButtonDefinition describes what one button sounds in one bellows direction
type ButtonDefinition struct {
	ID          string    `json:"id"`
	Frequencies []float64 `json:"frequencies"` // one reed, or two for dual-reed buttons
	Name        string    `json:"name"`
	Row         int       `json:"row"`
	Column      int       `json:"column"`
	Bass        bool      `json:"bass"`
	Direction   Direction `json:"direction"`
	Pitch       uint8     `json:"pitch"` // MIDI note of the main reed
}

// NoteID returns the structured id of the button
func (b ButtonDefinition) NoteID() NoteID {
	return NoteID{Row: b.Row, Column: b.Column, Direction: b.Direction, Bass: b.Bass}
}

// Catalog maps composite ids to button definitions. It is never mutated after
// New returns, so concurrent lookups are safe.
type Catalog struct {
	buttons map[string]ButtonDefinition
	order   []string
	byPitch map[uint8][]string
}

// New builds a catalog. Ids must be unique and match the button's fields.
func New(defs []ButtonDefinition) (*Catalog, error) {
	c := &Catalog{
		buttons: make(map[string]ButtonDefinition, len(defs)),
		byPitch: make(map[uint8][]string),
	}
	for _, d := range defs {
		if want := d.NoteID().String(); d.ID != want {
			return nil, fmt.Errorf("button id %q does not match its fields (%s)", d.ID, want)
		}
		if len(d.Frequencies) == 0 {
			return nil, fmt.Errorf("button %s has no frequencies", d.ID)
		}
		if _, dup := c.buttons[d.ID]; dup {
			return nil, fmt.Errorf("duplicate button id %s", d.ID)
		}
		c.buttons[d.ID] = d
		c.order = append(c.order, d.ID)
		c.byPitch[d.Pitch] = append(c.byPitch[d.Pitch], d.ID)
	}
	return c, nil
}

// MustNew is New that panics, for static tables
func MustNew(defs []ButtonDefinition) *Catalog {
	c, err := New(defs)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup finds a button by composite id
func (c *Catalog) Lookup(id string) (ButtonDefinition, bool) {
	b, ok := c.buttons[id]
	return b, ok
}

// LookupID finds a button by structured id
func (c *Catalog) LookupID(id NoteID) (ButtonDefinition, bool) {
	return c.Lookup(id.String())
}

// Has reports whether id is cataloged
func (c *Catalog) Has(id string) bool {
	_, ok := c.buttons[id]
	return ok
}

// Len returns the number of buttons
func (c *Catalog) Len() int {
	return len(c.order)
}

// Buttons returns all buttons in definition order
func (c *Catalog) Buttons() []ButtonDefinition {
	out := make([]ButtonDefinition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.buttons[id])
	}
	return out
}

// ByPitch returns every button whose main reed sounds pitch, treble first
func (c *Catalog) ByPitch(pitch uint8) []ButtonDefinition {
	var out []ButtonDefinition
	for _, id := range c.byPitch[pitch] {
		out = append(out, c.buttons[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return !out[i].Bass && out[j].Bass
	})
	return out
}

// Positions returns the distinct physical buttons, treble rows first
func (c *Catalog) Positions() []Position {
	seen := make(map[Position]bool)
	var out []Position
	for _, id := range c.order {
		p := c.buttons[id].NoteID().Position()
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Bass != b.Bass {
			return !a.Bass
		}
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Column < b.Column
	})
	return out
}

// PitchToFreq converts a MIDI note to Hz (A4 = 440)
func PitchToFreq(pitch uint8) float64 {
	return 440.0 * math.Pow(2, (float64(pitch)-69)/12)
}

var solfege = [12]string{"Do", "Do#", "Re", "Mib", "Mi", "Fa", "Fa#", "Sol", "Sol#", "La", "Sib", "Si"}

// PitchName renders a MIDI note in solfège, e.g. 60 -> "Do4"
func PitchName(pitch uint8) string {
	return fmt.Sprintf("%s%d", solfege[pitch%12], int(pitch)/12-1)
}
