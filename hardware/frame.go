// Package hardware reads a serial accordion controller: a board that scans
// the buttons and a bellows direction sensor and streams framed events.
package hardware

import (
	"fmt"

	"go-acordeon/catalog"
)

const (
	SOF0 = 0xAA
	SOF1 = 0x55

	CmdKey     = 0x20 // payload: row, column, flags
	CmdBellows = 0x21 // payload: direction (0 pull, 1 push)

	FlagBass = 1 << 0
	FlagDown = 1 << 1

	maxPayload = 32
)

// Frame is one message on the wire:
//
//	[SOF0][SOF1][LEN][CMD][payload...][CKS]
//
// LEN counts CMD plus payload; CKS is the XOR of LEN, CMD and the payload.
type Frame struct {
	Cmd     byte
	Payload []byte
}

func (f Frame) Encode() []byte {
	length := byte(len(f.Payload) + 1)
	cks := length ^ f.Cmd
	for _, b := range f.Payload {
		cks ^= b
	}

	out := []byte{SOF0, SOF1, length, f.Cmd}
	out = append(out, f.Payload...)
	out = append(out, cks)
	return out
}

// KeyFrame builds the frame a board sends for a button change
func KeyFrame(p catalog.Position, down bool) Frame {
	var flags byte
	if p.Bass {
		flags |= FlagBass
	}
	if down {
		flags |= FlagDown
	}
	return Frame{Cmd: CmdKey, Payload: []byte{byte(p.Row), byte(p.Column), flags}}
}

// BellowsFrame builds the frame a board sends when the bellows reverse
func BellowsFrame(d catalog.Direction) Frame {
	var v byte
	if d == catalog.Push {
		v = 1
	}
	return Frame{Cmd: CmdBellows, Payload: []byte{v}}
}

type EventKind int

const (
	KeyDown EventKind = iota
	KeyUp
	Bellows
)

// Event is a decoded controller message
type Event struct {
	Kind      EventKind
	Position  catalog.Position
	Direction catalog.Direction
}

// Parse interprets a frame
func Parse(f Frame) (Event, error) {
	switch f.Cmd {
	case CmdKey:
		if len(f.Payload) != 3 {
			return Event{}, fmt.Errorf("key frame: payload length %d", len(f.Payload))
		}
		ev := Event{
			Kind: KeyUp,
			Position: catalog.Position{
				Row:    int(f.Payload[0]),
				Column: int(f.Payload[1]),
				Bass:   f.Payload[2]&FlagBass != 0,
			},
		}
		if f.Payload[2]&FlagDown != 0 {
			ev.Kind = KeyDown
		}
		return ev, nil
	case CmdBellows:
		if len(f.Payload) != 1 {
			return Event{}, fmt.Errorf("bellows frame: payload length %d", len(f.Payload))
		}
		ev := Event{Kind: Bellows, Direction: catalog.Pull}
		if f.Payload[0] != 0 {
			ev.Direction = catalog.Push
		}
		return ev, nil
	}
	return Event{}, fmt.Errorf("unknown command 0x%02x", f.Cmd)
}

type decodeState int

const (
	waitSOF0 decodeState = iota
	waitSOF1
	waitLen
	waitBody
)

// Decoder reassembles frames from a byte stream. Bad checksums and garbage
// are skipped; the decoder resynchronizes on the next start marker.
type Decoder struct {
	state  decodeState
	length byte
	body   []byte // CMD + payload + CKS

	Dropped int
}

// Feed consumes bytes and returns every complete, valid frame
func (d *Decoder) Feed(data []byte) []Frame {
	var frames []Frame
	for _, b := range data {
		switch d.state {
		case waitSOF0:
			if b == SOF0 {
				d.state = waitSOF1
			}
		case waitSOF1:
			switch b {
			case SOF1:
				d.state = waitLen
			case SOF0:
				// stay: AA AA 55 is still a start
			default:
				d.state = waitSOF0
			}
		case waitLen:
			if b == 0 || b > maxPayload+1 {
				d.Dropped++
				d.state = waitSOF0
				continue
			}
			d.length = b
			d.body = d.body[:0]
			d.state = waitBody
		case waitBody:
			d.body = append(d.body, b)
			if len(d.body) < int(d.length)+1 {
				continue
			}
			d.state = waitSOF0
			if f, ok := d.check(); ok {
				frames = append(frames, f)
			} else {
				d.Dropped++
			}
		}
	}
	return frames
}

func (d *Decoder) check() (Frame, bool) {
	cks := d.length
	for _, b := range d.body[:len(d.body)-1] {
		cks ^= b
	}
	if cks != d.body[len(d.body)-1] {
		return Frame{}, false
	}
	payload := make([]byte, len(d.body)-2)
	copy(payload, d.body[1:len(d.body)-1])
	return Frame{Cmd: d.body[0], Payload: payload}, true
}
