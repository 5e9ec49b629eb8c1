package song

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"go-acordeon/catalog"
)

func TestLoadSortsAndResetsCursor(t *testing.T) {
	s := NewSchedule()
	err := s.Load([]ScheduledNote{
		{TimeMs: 2000, NoteID: "1-1-halar"},
		{TimeMs: 1000, NoteID: "1-4-empujar", DurationMs: 500, Processed: true},
		{TimeMs: 1000, NoteID: "2-2-empujar"},
	}, catalog.Default())
	require.NoError(t, err)

	assert := assert.New(t)
	assert.Equal(3, s.Len())
	assert.Equal(0, s.Cursor())
	assert.Equal("1-4-empujar", s.Note(0).NoteID, "stable for equal times")
	assert.Equal("2-2-empujar", s.Note(1).NoteID)
	assert.Equal(int64(2000), s.Note(2).TimeMs)
	assert.False(s.Note(0).Processed)
	assert.Equal(3, s.Pending())
}

func TestLoadRejectsUnknownNoteID(t *testing.T) {
	s := NewSchedule()
	require.NoError(t, s.Load([]ScheduledNote{{TimeMs: 10, NoteID: "1-1-halar"}}, catalog.Default()))

	err := s.Load([]ScheduledNote{
		{TimeMs: 0, NoteID: "1-1-halar"},
		{TimeMs: 500, NoteID: "9-9-halar"},
	}, catalog.Default())

	var ce *ContentError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, ce.Index)
	assert.Equal(t, "9-9-halar", ce.NoteID)
	assert.Contains(t, err.Error(), "9-9-halar")
	assert.Equal(t, 1, s.Len(), "failed load leaves the previous schedule")
}

func TestLoadRejectsNegativeTime(t *testing.T) {
	err := NewSchedule().Load([]ScheduledNote{{TimeMs: -1, NoteID: "1-1-halar"}}, catalog.Default())
	var ce *ContentError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "negative time", ce.Reason)
}

func TestLoadRejectsDuplicateNote(t *testing.T) {
	err := NewSchedule().Load([]ScheduledNote{
		{TimeMs: 1000, NoteID: "1-4-empujar"},
		{TimeMs: 1000, NoteID: "1-4-halar"},
		{TimeMs: 1000, NoteID: "1-4-empujar"},
	}, catalog.Default())

	var ce *ContentError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 2, ce.Index)
	assert.Equal(t, "1-4-empujar", ce.NoteID)
	assert.Equal(t, "duplicate of note 0", ce.Reason)
}

func TestMarkProcessedOnce(t *testing.T) {
	s := NewSchedule()
	require.NoError(t, s.Load([]ScheduledNote{{TimeMs: 0, NoteID: "1-1-halar"}}, catalog.Default()))

	assert.True(t, s.MarkProcessed(0))
	assert.False(t, s.MarkProcessed(0))
	assert.False(t, s.MarkProcessed(5))

	s.Advance()
	assert.True(t, s.Done())

	s.Restart()
	assert.False(t, s.Done())
	assert.Equal(t, 0, s.Cursor())
	assert.False(t, s.Note(0).Processed)
}

func TestWindow(t *testing.T) {
	s := NewSchedule()
	require.NoError(t, s.Load([]ScheduledNote{
		{TimeMs: 100, NoteID: "1-1-halar"},
		{TimeMs: 400, NoteID: "1-1-halar"},
		{TimeMs: 700, NoteID: "1-1-halar"},
	}, catalog.Default()))

	lo, hi := s.Window(100, 400)
	assert.Equal(t, 0, lo)
	assert.Equal(t, 2, hi)

	lo, hi = s.Window(401, 699)
	assert.Equal(t, lo, hi)
}

func TestStoreSaveLoadList(t *testing.T) {
	store := NewStore(t.TempDir(), catalog.Default())
	sng := &Song{ID: "la gota fria", Title: "La Gota Fría", Notes: []ScheduledNote{
		{TimeMs: 0, NoteID: "2-2-empujar", DurationMs: 250},
	}}
	require.NoError(t, store.Save(sng))

	loaded, err := store.Load("la gota fria")
	require.NoError(t, err)
	assert.Equal(t, sng.Notes, loaded.Notes)

	infos, err := store.List()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "La Gota Fría", infos[0].Title)
	assert.Equal(t, "json", infos[0].Format)
}

func TestStoreLoadYAML(t *testing.T) {
	dir := t.TempDir()
	yml := "title: Ejercicio\nnotes:\n  - time: 1000\n    note: 1-4-empujar\n    duration: 500\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ejercicio.yaml"), []byte(yml), 0644))

	sng, err := NewStore(dir, catalog.Default()).Load("ejercicio")
	require.NoError(t, err)
	assert.Equal(t, "ejercicio", sng.ID)
	assert.Equal(t, []ScheduledNote{{TimeMs: 1000, NoteID: "1-4-empujar", DurationMs: 500}}, sng.Notes)
}

func TestStoreLoadReportsContentError(t *testing.T) {
	dir := t.TempDir()
	data := `{"id":"bad","title":"Bad","notes":[{"time":0,"note":"1-1-halar"},{"time":10,"note":"1-1-pull"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(data), 0644))

	_, err := NewStore(dir, catalog.Default()).Load("bad")
	var ce *ContentError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "1-1-pull", ce.NoteID)
}

func TestStoreLoadMissing(t *testing.T) {
	_, err := NewStore(t.TempDir(), catalog.Default()).Load("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func buildSMF(t *testing.T) *bytes.Buffer {
	t.Helper()
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(960)

	var tempo smf.Track
	tempo.Add(0, smf.MetaTempo(120))
	tempo.Close(0)
	require.NoError(t, sm.Add(tempo))

	var tr smf.Track
	tr.Add(0, midi.NoteOn(0, 60, 100))
	tr.Add(960, midi.NoteOff(0, 60))
	tr.Add(0, midi.NoteOn(0, 62, 100))
	tr.Add(480, midi.NoteOff(0, 62))
	tr.Add(0, midi.NoteOn(0, 20, 100))
	tr.Add(480, midi.NoteOff(0, 20))
	tr.Close(0)
	require.NoError(t, sm.Add(tr))

	var buf bytes.Buffer
	_, err := sm.WriteTo(&buf)
	require.NoError(t, err)
	return &buf
}

func TestImportSMF(t *testing.T) {
	res, err := ImportSMF(buildSMF(t), catalog.Default(), ImportOptions{ID: "escala", Channel: -1})
	require.NoError(t, err)

	assert := assert.New(t)
	assert.Equal("escala", res.Song.ID)
	assert.InDelta(120, res.Song.BPM, 0.01)
	assert.Equal([]uint8{20}, res.Unmapped)
	require.Len(t, res.Song.Notes, 2)
	assert.Equal(ScheduledNote{TimeMs: 0, NoteID: "1-3-halar", DurationMs: 500}, res.Song.Notes[0])
	assert.Equal(ScheduledNote{TimeMs: 500, NoteID: "1-4-empujar", DurationMs: 250}, res.Song.Notes[1])
	assert.NoError(Validate(res.Song.Notes, catalog.Default()))
}

func TestImportSMFGeneratesID(t *testing.T) {
	res, err := ImportSMF(buildSMF(t), catalog.Default(), ImportOptions{Channel: -1})
	require.NoError(t, err)
	assert.Len(t, res.Song.ID, 36)
}
