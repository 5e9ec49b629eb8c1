package midi

import (
	"fmt"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-acordeon/catalog"
	"go-acordeon/debug"
)

const outputVelocity = 100

// Output sounds buttons on an external MIDI synth. It is a bellows.Sink;
// send failures are logged, never returned.
type Output struct {
	mu      sync.Mutex
	send    func(gomidi.Message) error
	channel uint8
	pitches map[string]uint8 // active note id -> pitch sent
}

// OpenOutput opens the named output port
func OpenOutput(portName string, channel uint8) (*Output, error) {
	port, err := gomidi.FindOutPort(portName)
	if err != nil {
		return nil, fmt.Errorf("find output %q: %w", portName, err)
	}
	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("open output %q: %w", portName, err)
	}
	return NewOutput(send, channel), nil
}

// NewOutput wraps a send function (tests pass a recorder)
func NewOutput(send func(gomidi.Message) error, channel uint8) *Output {
	return &Output{
		send:    send,
		channel: channel & 0x0F,
		pitches: make(map[string]uint8),
	}
}

func (o *Output) OnNoteActivated(b catalog.ButtonDefinition) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pitches[b.ID] = b.Pitch
	if err := o.send(gomidi.NoteOn(o.channel, b.Pitch, outputVelocity)); err != nil {
		debug.Log("midi", "note on %s: %v", b.ID, err)
	}
}

func (o *Output) OnNoteDeactivated(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	pitch, ok := o.pitches[id]
	if !ok {
		return
	}
	delete(o.pitches, id)
	if err := o.send(gomidi.NoteOff(o.channel, pitch)); err != nil {
		debug.Log("midi", "note off %s: %v", id, err)
	}
}

// AllNotesOff releases everything still sounding
func (o *Output) AllNotesOff() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, pitch := range o.pitches {
		if err := o.send(gomidi.NoteOff(o.channel, pitch)); err != nil {
			debug.Log("midi", "note off %s: %v", id, err)
		}
	}
	o.pitches = make(map[string]uint8)
}
