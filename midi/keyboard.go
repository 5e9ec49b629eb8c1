package midi

import (
	"fmt"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// KeyboardController handles a standard MIDI keyboard (or an accordion with
// MIDI out)
type KeyboardController struct {
	id        string
	inPort    drivers.In
	stopFunc  func()
	closeOnce sync.Once

	events chan Event
}

// NewKeyboardController starts listening on inPort
func NewKeyboardController(id string, inPort drivers.In) (*KeyboardController, error) {
	kb := &KeyboardController{
		id:     id,
		inPort: inPort,
		events: make(chan Event, 64),
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, kb.handle)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		kb.stopFunc = stop
	}

	return kb, nil
}

func (kb *KeyboardController) handle(msg gomidi.Message, timestampms int32) {
	if ev, ok := decode(msg); ok {
		select {
		case kb.events <- ev:
		default:
		}
	}
}

// decode keeps note and controller messages. A note-on with velocity 0 is a
// note-off.
func decode(msg gomidi.Message) (Event, bool) {
	var channel, note, velocity uint8
	switch {
	case msg.GetNoteOn(&channel, &note, &velocity):
		if velocity == 0 {
			return Event{Type: NoteOff, Channel: channel, Note: note}, true
		}
		return Event{Type: NoteOn, Channel: channel, Note: note, Velocity: velocity}, true
	case msg.GetNoteOff(&channel, &note, &velocity):
		return Event{Type: NoteOff, Channel: channel, Note: note, Velocity: velocity}, true
	case msg.GetControlChange(&channel, &note, &velocity):
		return Event{Type: CC, Channel: channel, Note: note, Velocity: velocity}, true
	}
	return Event{}, false
}

func (kb *KeyboardController) ID() string {
	return kb.id
}

func (kb *KeyboardController) Events() <-chan Event {
	return kb.events
}

func (kb *KeyboardController) Close() error {
	kb.closeOnce.Do(func() {
		if kb.stopFunc != nil {
			kb.stopFunc()
		}
		close(kb.events)
	})
	return nil
}
