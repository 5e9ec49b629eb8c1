package audio

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"
)

// Output plays a Synth through the system audio device
type Output struct {
	synth     *Synth
	otoCtx    *oto.Context
	otoPlayer *oto.Player
	buffer    []float64
	running   atomic.Bool
}

// NewOutput opens the audio device and starts pulling samples from synth
func NewOutput(synth *Synth) (*Output, error) {
	op := &oto.NewContextOptions{
		SampleRate:   synth.SampleRate(),
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	}

	otoCtx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	out := &Output{
		synth:  synth,
		otoCtx: otoCtx,
		buffer: make([]float64, 512),
	}
	out.running.Store(true)

	out.otoPlayer = otoCtx.NewPlayer(&stream{out: out})
	out.otoPlayer.SetBufferSize(synth.SampleRate() / 50 * 2) // 20ms, 16-bit
	out.otoPlayer.Play()

	return out, nil
}

// Close stops playback
func (o *Output) Close() error {
	o.running.Store(false)
	if o.otoPlayer != nil {
		return o.otoPlayer.Close()
	}
	return nil
}

// stream implements io.Reader for oto
type stream struct {
	out *Output
}

func (s *stream) Read(buf []byte) (int, error) {
	if !s.out.running.Load() {
		for i := range buf {
			buf[i] = 0
		}
		return len(buf), nil
	}

	samples := len(buf) / 2
	if samples > len(s.out.buffer) {
		s.out.buffer = make([]float64, samples)
	}
	s.out.synth.GenerateSamples(s.out.buffer[:samples])

	encodePCM16(buf, s.out.buffer[:samples])
	return samples * 2, nil
}

// encodePCM16 converts -1..1 samples to signed 16-bit little endian
func encodePCM16(dst []byte, samples []float64) {
	for i, sample := range samples {
		s16 := int16(clamp(sample, -1, 1) * 32767)
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(s16))
	}
}
