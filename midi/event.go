package midi

import (
	"go-acordeon/bellows"
)

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
	CC      uint8 = 0xB0
)

// Event is one message from a MIDI keyboard
type Event struct {
	Type     uint8 // NoteOn, NoteOff, CC
	Channel  uint8
	Note     uint8 // note number, or controller number for CC
	Velocity uint8 // velocity, or value for CC
}

// Key is the physical key name the bellows keymap uses for this note
func (e Event) Key() string {
	return bellows.MIDIKey(e.Note)
}
