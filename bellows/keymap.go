package bellows

import (
	"fmt"
	"strconv"

	"go-acordeon/catalog"
)

// Keymap maps physical key names to button positions. The bellows direction is
// never part of a key; it is added at resolve time.
type Keymap map[string]catalog.Position

var (
	trebleRows = [3]string{"1234567890", "qwertyuiop", "asdfghjkl;"}
	bassRows   = [2]string{"zxcvbn", "ZXCVBN"}
)

// DefaultKeymap maps the computer keyboard onto the default layout and adds
// hardware keys for every position of cat
func DefaultKeymap(cat *catalog.Catalog) Keymap {
	k := make(Keymap)
	for r, row := range trebleRows {
		for c, ch := range row {
			k[string(ch)] = catalog.Position{Row: r + 1, Column: c + 1}
		}
	}
	for r, row := range bassRows {
		for c, ch := range row {
			k[string(ch)] = catalog.Position{Row: r + 1, Column: c + 1, Bass: true}
		}
	}
	if cat != nil {
		k.AddHardware(cat.Positions())
	}
	return k
}

// MIDIKey names the physical key for a MIDI note number
func MIDIKey(note uint8) string {
	return "midi:" + strconv.Itoa(int(note))
}

// HardwareKey names the physical key for a serial controller button
func HardwareKey(p catalog.Position) string {
	return "hw:" + p.String()
}

// AddMIDI lays treble rows and bass rows out on consecutive MIDI notes
func (k Keymap) AddMIDI(rowBase [3]uint8, bassBase uint8) {
	for r, base := range rowBase {
		for c := 0; c < 10; c++ {
			k[MIDIKey(base+uint8(c))] = catalog.Position{Row: r + 1, Column: c + 1}
		}
	}
	for r := 0; r < 2; r++ {
		for c := 0; c < 6; c++ {
			k[MIDIKey(bassBase+uint8(r*6+c))] = catalog.Position{Row: r + 1, Column: c + 1, Bass: true}
		}
	}
}

// AddHardware registers a hardware key for each position
func (k Keymap) AddHardware(positions []catalog.Position) {
	for _, p := range positions {
		k[HardwareKey(p)] = p
	}
}

// Override applies "key" -> "row-col[-bajo]" entries, typically from config
func (k Keymap) Override(entries map[string]string) error {
	for key, pos := range entries {
		p, err := catalog.ParsePosition(pos)
		if err != nil {
			return fmt.Errorf("keymap entry %q: %w", key, err)
		}
		k[key] = p
	}
	return nil
}
