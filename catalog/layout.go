package catalog

import "math"

// Treble row in C, lowest button first. Other rows are transposed copies.
var (
	cRowPush = [10]uint8{55, 60, 64, 67, 72, 76, 79, 84, 88, 91}
	cRowPull = [10]uint8{59, 62, 65, 69, 71, 74, 77, 81, 83, 86}
)

// GCF: row 1 in G, row 2 in C, row 3 in F
var rowTranspose = [3]int{-5, 0, 5}

// Bass side: row 1 single bass notes, row 2 chords (root + fifth)
var (
	bassPush = [6]uint8{43, 48, 41, 45, 40, 38}
	bassPull = [6]uint8{38, 43, 48, 40, 45, 41}
)

// detune of the second treble reed, in cents
const tremoloCents = 8

// DefaultButtons returns the stock three-row GCF layout with 12 bass buttons
func DefaultButtons() []ButtonDefinition {
	var defs []ButtonDefinition

	for r := 0; r < 3; r++ {
		for c := 0; c < 10; c++ {
			for _, dir := range []Direction{Push, Pull} {
				base := cRowPush[c]
				if dir == Pull {
					base = cRowPull[c]
				}
				pitch := uint8(int(base) + rowTranspose[r])
				f := PitchToFreq(pitch)
				id := NoteID{Row: r + 1, Column: c + 1, Direction: dir}
				defs = append(defs, ButtonDefinition{
					ID:          id.String(),
					Frequencies: []float64{f, f * math.Pow(2, tremoloCents/1200.0)},
					Name:        PitchName(pitch),
					Row:         id.Row,
					Column:      id.Column,
					Direction:   dir,
					Pitch:       pitch,
				})
			}
		}
	}

	for row := 1; row <= 2; row++ {
		for c := 0; c < 6; c++ {
			for _, dir := range []Direction{Push, Pull} {
				pitch := bassPush[c]
				if dir == Pull {
					pitch = bassPull[c]
				}
				f := PitchToFreq(pitch)
				freqs := []float64{f}
				name := PitchName(pitch)
				if row == 2 {
					freqs = append(freqs, f*math.Pow(2, 7.0/12))
					name = solfege[pitch%12] + "M"
				}
				id := NoteID{Row: row, Column: c + 1, Direction: dir, Bass: true}
				defs = append(defs, ButtonDefinition{
					ID:          id.String(),
					Frequencies: freqs,
					Name:        name,
					Row:         row,
					Column:      c + 1,
					Bass:        true,
					Direction:   dir,
					Pitch:       pitch,
				})
			}
		}
	}

	return defs
}

var defaultCatalog = MustNew(DefaultButtons())

// Default returns the shared stock catalog
func Default() *Catalog {
	return defaultCatalog
}
