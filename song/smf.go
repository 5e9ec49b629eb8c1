package song

import (
	"io"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2/smf"

	"go-acordeon/catalog"
)

// ImportOptions controls SMF conversion
type ImportOptions struct {
	ID        string
	Title     string
	Channel   int // -1 = all channels
	Transpose int // semitones added to every pitch before mapping
}

// ImportResult is the converted song plus the pitches no button could play
type ImportResult struct {
	Song     *Song
	Unmapped []uint8
}

type noteEvent struct {
	atMs  int64
	pitch uint8
	on    bool
}

// ImportSMF reads a Standard MIDI File and maps every note onto the first
// catalog button that sounds its pitch (treble rows before bass).
func ImportSMF(r io.Reader, cat *catalog.Catalog, opts ImportOptions) (*ImportResult, error) {
	mf, err := smf.ReadFrom(r)
	if err != nil {
		return nil, errors.Wrap(err, "read midi file")
	}

	var events []noteEvent
	for _, track := range mf.Tracks {
		var absTicks int64
		for _, ev := range track {
			absTicks += int64(ev.Delta)
			var ch, key, vel uint8
			switch {
			case ev.Message.GetNoteOn(&ch, &key, &vel):
				if !wantChannel(opts.Channel, ch) {
					continue
				}
				events = append(events, noteEvent{atMs: mf.TimeAt(absTicks) / 1000, pitch: key, on: vel > 0})
			case ev.Message.GetNoteOff(&ch, &key, &vel):
				if !wantChannel(opts.Channel, ch) {
					continue
				}
				events = append(events, noteEvent{atMs: mf.TimeAt(absTicks) / 1000, pitch: key})
			}
		}
	}

	// note-offs first at equal times so retriggers pair correctly
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].atMs != events[j].atMs {
			return events[i].atMs < events[j].atMs
		}
		return !events[i].on && events[j].on
	})

	var notes []ScheduledNote
	open := make(map[uint8][]int) // pitch -> indexes into notes awaiting note-off
	unmapped := make(map[uint8]bool)

	for _, ev := range events {
		pitch := int(ev.pitch) + opts.Transpose
		if pitch < 0 || pitch > 127 {
			unmapped[ev.pitch] = true
			continue
		}
		p := uint8(pitch)

		if !ev.on {
			if idx := open[p]; len(idx) > 0 {
				n := &notes[idx[0]]
				n.DurationMs = ev.atMs - n.TimeMs
				open[p] = idx[1:]
			}
			continue
		}

		buttons := cat.ByPitch(p)
		if len(buttons) == 0 {
			unmapped[ev.pitch] = true
			continue
		}
		notes = append(notes, ScheduledNote{TimeMs: ev.atMs, NoteID: buttons[0].ID})
		open[p] = append(open[p], len(notes)-1)
	}

	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	title := opts.Title
	if title == "" {
		title = id
	}

	res := &ImportResult{Song: &Song{ID: id, Title: title, Notes: notes}}
	if tc := mf.TempoChanges(); len(tc) > 0 {
		res.Song.BPM = tc[0].BPM
	}
	for p := range unmapped {
		res.Unmapped = append(res.Unmapped, p)
	}
	sort.Slice(res.Unmapped, func(i, j int) bool { return res.Unmapped[i] < res.Unmapped[j] })

	if len(notes) == 0 {
		return res, errors.New("midi file has no playable notes")
	}
	return res, nil
}

func wantChannel(want int, ch uint8) bool {
	return want < 0 || int(ch) == want
}
