package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-acordeon/catalog"
)

func peak(buf []float64) float64 {
	var p float64
	for _, v := range buf {
		if v < 0 {
			v = -v
		}
		if v > p {
			p = v
		}
	}
	return p
}

func TestSynthSoundsAndReleases(t *testing.T) {
	s := NewSynth(44100, 1)
	b, ok := catalog.Default().Lookup("1-3-halar")
	require.True(t, ok)

	buf := make([]float64, 4410)
	s.GenerateSamples(buf)
	assert.Zero(t, peak(buf), "silent with no voices")

	s.OnNoteActivated(b)
	s.GenerateSamples(buf)
	assert.Greater(t, peak(buf), 0.05)
	assert.LessOrEqual(t, peak(buf), 1.0)
	assert.Equal(t, 1, s.Sounding())

	s.OnNoteDeactivated(b.ID)
	s.GenerateSamples(buf) // 100ms > release time
	assert.Equal(t, 0, s.Sounding())

	s.GenerateSamples(buf)
	assert.Zero(t, peak(buf))
}

func TestSynthIgnoresUnknownRelease(t *testing.T) {
	s := NewSynth(44100, 1)
	s.OnNoteDeactivated("1-1-halar")
	assert.Equal(t, 0, s.Sounding())
}

func TestTransportCountsRenderedSamples(t *testing.T) {
	s := NewSynth(1000, 1)
	buf := make([]float64, 250)

	s.GenerateSamples(buf)
	assert.False(t, s.IsAudioPlaying())
	assert.Equal(t, int64(0), s.AudioPositionMs())

	s.StartTransport()
	s.GenerateSamples(buf)
	s.GenerateSamples(buf)
	assert.True(t, s.IsAudioPlaying())
	assert.Equal(t, int64(500), s.AudioPositionMs())

	s.PauseTransport()
	s.GenerateSamples(buf)
	assert.False(t, s.IsAudioPlaying())
	assert.Equal(t, int64(500), s.AudioPositionMs())

	s.ResumeTransport()
	s.GenerateSamples(buf)
	assert.Equal(t, int64(750), s.AudioPositionMs())

	s.StopTransport()
	assert.Equal(t, int64(0), s.AudioPositionMs())
}

func TestEncodePCM16Clamps(t *testing.T) {
	dst := make([]byte, 6)
	encodePCM16(dst, []float64{2, -2, 0})
	assert.Equal(t, int16(32767), int16(binary.LittleEndian.Uint16(dst[0:])))
	assert.Equal(t, int16(-32767), int16(binary.LittleEndian.Uint16(dst[2:])))
	assert.Equal(t, int16(0), int16(binary.LittleEndian.Uint16(dst[4:])))
}
