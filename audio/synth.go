// Package audio renders accordion reeds in real time.
package audio

import (
	"math"
	"sync"

	"golang.org/x/exp/constraints"

	"go-acordeon/catalog"
	"go-acordeon/debug"
)

const (
	attackSec  = 0.015
	releaseSec = 0.08
	// leaves headroom for a chord plus bass
	voiceGain = 0.2
)

type voice struct {
	freqs   []float64
	phases  []float64
	level   float64
	release bool
}

// Synth is a polyphonic reed synthesizer. It is a bellows.Sink and, through
// its transport, the audio clock of the game.
type Synth struct {
	mu         sync.Mutex
	sampleRate int
	volume     float64
	voices     map[string]*voice

	transportOn bool
	paused      bool
	rendered    int64 // samples rendered since the transport started
}

func NewSynth(sampleRate int, volume float64) *Synth {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	return &Synth{
		sampleRate: sampleRate,
		volume:     clamp(volume, 0, 1),
		voices:     make(map[string]*voice),
	}
}

func (s *Synth) SampleRate() int {
	return s.sampleRate
}

func (s *Synth) SetVolume(v float64) {
	s.mu.Lock()
	s.volume = clamp(v, 0, 1)
	s.mu.Unlock()
}

// OnNoteActivated starts every reed of the button
func (s *Synth) OnNoteActivated(b catalog.ButtonDefinition) {
	if len(b.Frequencies) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voices[b.ID] = &voice{
		freqs:  append([]float64(nil), b.Frequencies...),
		phases: make([]float64, len(b.Frequencies)),
	}
}

// OnNoteDeactivated lets the note fade out. Unknown ids are ignored.
func (s *Synth) OnNoteDeactivated(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.voices[id]
	if !ok {
		debug.Log("audio", "release of silent note %s", id)
		return
	}
	v.release = true
}

// Sounding returns how many voices are still audible
func (s *Synth) Sounding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.voices)
}

// StartTransport resets the playhead to zero
func (s *Synth) StartTransport() {
	s.mu.Lock()
	s.transportOn = true
	s.paused = false
	s.rendered = 0
	s.mu.Unlock()
}

func (s *Synth) PauseTransport() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

func (s *Synth) ResumeTransport() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

func (s *Synth) StopTransport() {
	s.mu.Lock()
	s.transportOn = false
	s.paused = false
	s.rendered = 0
	s.mu.Unlock()
}

// IsAudioPlaying reports a running, unpaused transport
func (s *Synth) IsAudioPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transportOn && !s.paused
}

// AudioPositionMs is the transport playhead derived from rendered samples
func (s *Synth) AudioPositionMs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rendered * 1000 / int64(s.sampleRate)
}

// GenerateSamples mixes every voice into buf (mono, -1..1)
func (s *Synth) GenerateSamples(buf []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attackStep := 1 / (attackSec * float64(s.sampleRate))
	releaseStep := 1 / (releaseSec * float64(s.sampleRate))
	twoPi := 2 * math.Pi
	sr := float64(s.sampleRate)

	for i := range buf {
		var mix float64
		for _, v := range s.voices {
			if v.release {
				v.level -= releaseStep
			} else if v.level < 1 {
				v.level += attackStep
			}
			v.level = clamp(v.level, 0, 1)

			var sample float64
			for j, f := range v.freqs {
				// reed tone: fundamental plus a softer octave
				sample += math.Sin(v.phases[j]) + 0.3*math.Sin(2*v.phases[j])
				v.phases[j] += twoPi * f / sr
				if v.phases[j] > twoPi {
					v.phases[j] -= twoPi
				}
			}
			mix += sample / float64(len(v.freqs)) * v.level * voiceGain
		}
		buf[i] = clamp(mix*s.volume, -1, 1)
	}

	for id, v := range s.voices {
		if v.release && v.level <= 0 {
			delete(s.voices, id)
		}
	}

	if s.transportOn && !s.paused {
		s.rendered += int64(len(buf))
	}
}

func clamp[T constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
