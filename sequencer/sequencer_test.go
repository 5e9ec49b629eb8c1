package sequencer

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-acordeon/bellows"
	"go-acordeon/catalog"
	"go-acordeon/config"
	"go-acordeon/song"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

// Set moves the clock to t0 + ms
func (f *fakeClock) Set(ms int) {
	f.mu.Lock()
	f.t = t0.Add(time.Duration(ms) * time.Millisecond)
	f.mu.Unlock()
}

type recordingSink struct {
	mu  sync.Mutex
	on  []string
	off []string
}

func (s *recordingSink) OnNoteActivated(b catalog.ButtonDefinition) {
	s.mu.Lock()
	s.on = append(s.on, b.ID)
	s.mu.Unlock()
}

func (s *recordingSink) OnNoteDeactivated(id string) {
	s.mu.Lock()
	s.off = append(s.off, id)
	s.mu.Unlock()
}

func (s *recordingSink) offCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.off)
}

func newTestManager(t *testing.T, timing config.TimingConfig, opts ...Option) (*Manager, *fakeClock) {
	t.Helper()
	fc := &fakeClock{t: t0}
	cat := catalog.Default()
	opts = append([]Option{WithNow(fc.Now)}, opts...)
	return NewManager(timing, cat, bellows.DefaultKeymap(cat), opts...), fc
}

func playSong(t *testing.T, m *Manager, notes ...song.ScheduledNote) {
	t.Helper()
	require.NoError(t, m.LoadSong(&song.Song{ID: "test", Title: "Test", Notes: notes}))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, m.Play(ctx))
}

func drainFeedback(m *Manager) []Feedback {
	var out []Feedback
	for {
		select {
		case fb := <-m.Feedback():
			out = append(out, fb)
		default:
			return out
		}
	}
}

func TestFlipThenPressIsPerfect(t *testing.T) {
	m, fc := newTestManager(t, config.DefaultTiming())
	playSong(t, m, song.ScheduledNote{TimeMs: 1000, NoteID: "1-4-empujar", DurationMs: 500})

	assert.Equal(t, catalog.Pull, m.Snapshot().Bellows.Direction)

	fc.Set(950)
	require.True(t, m.Flip(catalog.Push))

	fc.Set(1005)
	res := m.PressKey("4")

	assert := assert.New(t)
	assert.Equal("1-4-empujar", res.NoteID)
	require.True(t, res.Judged)
	assert.Equal(TierPerfect, res.Feedback.Tier)
	assert.Equal(int64(5), res.Feedback.DeltaMs)

	snap := m.Snapshot()
	assert.Equal(300, snap.Game.Score)
	assert.Equal(1, snap.Game.Combo)
	assert.Equal(1, snap.Game.Perfect)
	assert.True(snap.Finished)
	assert.Equal(0, snap.Pending)
}

func TestNoInputSweepsOneMiss(t *testing.T) {
	m, fc := newTestManager(t, config.DefaultTiming())
	playSong(t, m, song.ScheduledNote{TimeMs: 1000, NoteID: "1-4-empujar", DurationMs: 500})

	fc.Set(1200)
	m.Tick()
	snap := m.Snapshot()
	assert.Equal(t, 0, snap.Game.Miss)
	require.Len(t, snap.Falling, 1)

	fc.Set(1201)
	m.Tick()
	m.Tick()

	snap = m.Snapshot()
	assert := assert.New(t)
	assert.Equal(1, snap.Game.Miss)
	assert.Equal(1, snap.Game.NotesPlayed)
	assert.Equal(0, snap.Game.Combo)
	assert.Equal(90, snap.Game.Health)
	assert.Empty(snap.Falling)
	assert.True(snap.Finished)

	fbs := drainFeedback(m)
	require.Len(t, fbs, 1)
	assert.Equal(TierMiss, fbs[0].Tier)
}

func TestMaterializeAtLeadTime(t *testing.T) {
	timing := config.DefaultTiming()
	m, fc := newTestManager(t, timing)
	playSong(t, m,
		song.ScheduledNote{TimeMs: 2000, NoteID: "1-1-halar"},
		song.ScheduledNote{TimeMs: 5000, NoteID: "1-2-halar"},
	)

	lead := int(timing.LeadTimeMs())
	require.Equal(t, 1250, lead)

	fc.Set(2000 - lead - 1)
	m.Tick()
	assert.Empty(t, m.Snapshot().Falling)

	fc.Set(2000 - lead)
	m.Tick()
	falling := m.Snapshot().Falling
	require.Len(t, falling, 1)
	assert.Equal(t, "1-1-halar", falling[0].NoteID)
	assert.GreaterOrEqual(t, falling[0].Lane, 0)
}

func TestClassifyBoundaries(t *testing.T) {
	timing := config.DefaultTiming()
	cases := []struct {
		delta int64
		want  Tier
	}{
		{0, TierPerfect},
		{50, TierPerfect},
		{-50, TierPerfect},
		{51, TierGood},
		{100, TierGood},
		{101, TierOffbeat},
		{150, TierOffbeat},
		{151, TierMiss},
		{300, TierMiss},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.delta, timing), "delta %d", c.delta)
	}
}

func TestJudgeOutsideMarginIsNoMatch(t *testing.T) {
	sched := song.NewSchedule()
	require.NoError(t, sched.Load([]song.ScheduledNote{{TimeMs: 1000, NoteID: "1-1-halar"}}, catalog.Default()))
	s := NewScorer(sched, config.DefaultTiming())

	_, _, matched := s.Judge("1-1-halar", 1301)
	assert.False(t, matched)
	_, _, matched = s.Judge("1-1-halar", 699)
	assert.False(t, matched)
	assert.Equal(t, 1, sched.Pending(), "no match leaves the schedule alone")

	tier, delta, matched := s.Judge("1-1-halar", 1300)
	assert.True(t, matched)
	assert.Equal(t, TierMiss, tier)
	assert.Equal(t, int64(300), delta)
}

func TestJudgePicksNearest(t *testing.T) {
	sched := song.NewSchedule()
	require.NoError(t, sched.Load([]song.ScheduledNote{
		{TimeMs: 1000, NoteID: "1-1-halar"},
		{TimeMs: 1200, NoteID: "1-1-halar"},
		{TimeMs: 1150, NoteID: "1-2-halar"},
	}, catalog.Default()))
	s := NewScorer(sched, config.DefaultTiming())

	tier, delta, matched := s.Judge("1-1-halar", 1130)
	require.True(t, matched)
	assert.Equal(t, TierGood, tier)
	assert.Equal(t, int64(-70), delta)
	assert.True(t, sched.Note(2).Processed, "the 1200 note")
	assert.False(t, sched.Note(0).Processed)
}

func TestScoreGrowsWithCombo(t *testing.T) {
	s := NewScorer(song.NewSchedule(), config.DefaultTiming())

	var gains []int
	prev := 0
	for i := 0; i < 60; i++ {
		s.Apply(TierPerfect, "1-1-halar", 0, t0)
		st := s.State()
		gains = append(gains, st.Score-prev)
		prev = st.Score
	}

	assert.Equal(t, 300, gains[0])
	assert.Equal(t, 330, gains[1])
	assert.Equal(t, 360, gains[2])
	for i := 1; i < len(gains); i++ {
		assert.GreaterOrEqual(t, gains[i], gains[i-1])
	}
	assert.Equal(t, 1800, gains[50], "multiplier caps at combo 50")
	assert.Equal(t, 1800, gains[59])
	assert.Equal(t, 60, s.State().ComboMax)
}

func TestApplyCombosAndHealth(t *testing.T) {
	s := NewScorer(song.NewSchedule(), config.DefaultTiming())

	s.Apply(TierPerfect, "", 0, t0)
	s.Apply(TierGood, "", 0, t0)
	st := s.State()
	assert.Equal(t, 2, st.Combo)
	assert.Equal(t, 2, st.NotesCorrect)
	assert.Equal(t, 100, st.Health, "capped at 100")

	s.Apply(TierOffbeat, "", 0, t0)
	st = s.State()
	assert.Equal(t, 0, st.Combo)
	assert.Equal(t, 2, st.ComboMax)
	assert.Equal(t, 2, st.NotesCorrect)

	for i := 0; i < 12; i++ {
		s.Apply(TierMiss, "", 0, t0)
	}
	st = s.State()
	assert.Equal(t, 0, st.Health, "floored at 0")
	assert.Equal(t, 15, st.NotesPlayed)
	assert.Equal(t, TierMiss, st.LastFeedback.Tier)
	assert.InDelta(t, 2.0/15.0, st.Accuracy(), 1e-9)
}

func TestDuplicatePressScoresOnce(t *testing.T) {
	m, fc := newTestManager(t, config.DefaultTiming())
	playSong(t, m,
		song.ScheduledNote{TimeMs: 1000, NoteID: "1-1-halar"},
		song.ScheduledNote{TimeMs: 1100, NoteID: "1-1-halar"},
	)

	fc.Set(1000)
	res := m.PressKey("1")
	require.True(t, res.Judged)

	fc.Set(1100)
	res = m.PressKey("1")
	assert.False(t, res.Activated)
	assert.False(t, res.Judged)

	snap := m.Snapshot()
	assert.Len(t, snap.Active, 1)
	assert.Equal(t, 1, snap.Game.NotesPlayed)
}

func TestDebouncedPressIsJudgedButSilent(t *testing.T) {
	sink := &recordingSink{}
	m, fc := newTestManager(t, config.DefaultTiming(), WithSink(sink))
	playSong(t, m, song.ScheduledNote{TimeMs: 1000, NoteID: "1-4-empujar"})

	fc.Set(950)
	m.Flip(catalog.Push)
	fc.Set(1005)
	res := m.PressKey("4")

	assert.False(t, res.Activated)
	assert.True(t, res.Judged)
	assert.Empty(t, sink.on)
}

func TestUnmatchedPressLenientAndStrict(t *testing.T) {
	m, fc := newTestManager(t, config.DefaultTiming())
	playSong(t, m, song.ScheduledNote{TimeMs: 1000, NoteID: "1-1-halar"})

	fc.Set(500)
	res := m.PressKey("2")
	assert.True(t, res.Activated)
	assert.False(t, res.Judged)
	assert.Equal(t, 0, m.Snapshot().Game.NotesPlayed)

	strict := config.DefaultTiming()
	strict.StrictMode = true
	m, fc = newTestManager(t, strict)
	playSong(t, m, song.ScheduledNote{TimeMs: 1000, NoteID: "1-1-halar"})

	fc.Set(500)
	res = m.PressKey("2")
	require.True(t, res.Judged)
	assert.Equal(t, TierMiss, res.Feedback.Tier)

	snap := m.Snapshot()
	assert.Equal(t, 1, snap.Game.Miss)
	assert.Equal(t, 1, snap.Pending, "no scheduled note consumed")
}

func TestEveryNoteResolvesOnce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cat := catalog.Default()
	buttons := cat.Buttons()
	keymap := bellows.DefaultKeymap(cat)
	var keys []string
	for k := range keymap {
		keys = append(keys, k)
	}

	for round := 0; round < 20; round++ {
		var notes []song.ScheduledNote
		for i := 0; i < 30; i++ {
			b := buttons[rng.Intn(len(buttons))]
			notes = append(notes, song.ScheduledNote{TimeMs: int64(i*137 + rng.Intn(100)), NoteID: b.ID})
		}

		m, fc := newTestManager(t, config.DefaultTiming())
		playSong(t, m, notes...)

		for ms := 0; ms < 6000; ms += 7 + rng.Intn(40) {
			fc.Set(ms)
			switch rng.Intn(5) {
			case 0:
				m.PressKey(keys[rng.Intn(len(keys))])
			case 1:
				m.ReleaseKey(keys[rng.Intn(len(keys))])
			case 2:
				m.ToggleBellows()
			default:
				m.Tick()
			}
		}
		fc.Set(10000)
		m.Tick()

		snap := m.Snapshot()
		g := snap.Game
		require.True(t, snap.Finished, "round %d", round)
		assert.Equal(t, 0, snap.Pending)
		assert.Equal(t, len(notes), g.Perfect+g.Good+g.Offbeat+g.Miss, "round %d", round)
		assert.Equal(t, len(notes), g.NotesPlayed, "round %d", round)
	}
}

func TestNoteWithoutLaneStillResolves(t *testing.T) {
	m, fc := newTestManager(t, config.DefaultTiming(), WithLanes([]catalog.Position{{Row: 1, Column: 1}}))
	playSong(t, m,
		song.ScheduledNote{TimeMs: 1000, NoteID: "1-1-halar"},
		song.ScheduledNote{TimeMs: 1000, NoteID: "2-5-halar"},
	)

	fc.Set(1000)
	m.Tick()
	falling := m.Snapshot().Falling
	require.Len(t, falling, 2)
	assert.Equal(t, 0, falling[0].Lane)
	assert.Equal(t, -1, falling[1].Lane)

	fc.Set(1300)
	m.Tick()
	snap := m.Snapshot()
	assert.Equal(t, 2, snap.Game.Miss)
	assert.True(t, snap.Finished)
}

func TestPauseFreezesGameClock(t *testing.T) {
	m, fc := newTestManager(t, config.DefaultTiming())
	playSong(t, m, song.ScheduledNote{TimeMs: 1000, NoteID: "1-1-halar"})

	fc.Set(900)
	m.Pause()
	fc.Set(5000)
	m.Tick()

	snap := m.Snapshot()
	assert.True(t, snap.Paused)
	assert.Equal(t, int64(900), snap.ClockMs)
	assert.Equal(t, 0, snap.Game.Miss)

	m.Resume()
	fc.Set(5100)
	assert.Equal(t, int64(1000), m.Snapshot().ClockMs)

	res := m.PressKey("1")
	require.True(t, res.Judged)
	assert.Equal(t, TierPerfect, res.Feedback.Tier)
}

func TestStopClearsState(t *testing.T) {
	sink := &recordingSink{}
	m, fc := newTestManager(t, config.DefaultTiming(), WithSink(sink))
	playSong(t, m,
		song.ScheduledNote{TimeMs: 1000, NoteID: "1-1-halar"},
		song.ScheduledNote{TimeMs: 2000, NoteID: "1-2-halar"},
	)

	fc.Set(1000)
	m.PressKey("1")
	m.PressKey("q")
	m.Stop()

	snap := m.Snapshot()
	assert := assert.New(t)
	assert.False(snap.Playing)
	assert.Empty(snap.Active)
	assert.Empty(snap.Falling)
	assert.Equal(2, snap.Pending)
	assert.Equal(2, sink.offCount())
	assert.False(m.Tick(), "no ticks after stop")
}

func TestLoadSongRejectsUnknownNote(t *testing.T) {
	m, _ := newTestManager(t, config.DefaultTiming())
	err := m.LoadSong(&song.Song{ID: "bad", Notes: []song.ScheduledNote{{TimeMs: 0, NoteID: "1-99-halar"}}})

	var ce *song.ContentError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, err.Error(), "1-99-halar")
	assert.Nil(t, m.Song())
	assert.ErrorIs(t, m.Play(context.Background()), ErrNoSong)
}

func TestLoadSongRejectsDuplicateNote(t *testing.T) {
	m, _ := newTestManager(t, config.DefaultTiming())
	err := m.LoadSong(&song.Song{ID: "dup", Notes: []song.ScheduledNote{
		{TimeMs: 1000, NoteID: "1-4-empujar"},
		{TimeMs: 1000, NoteID: "1-4-empujar"},
	}})

	var ce *song.ContentError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, ce.Index)
	assert.Nil(t, m.Song())
	assert.Equal(t, 0, m.Snapshot().Total)
}

func TestWatchdogOnlyInFreePlay(t *testing.T) {
	m, fc := newTestManager(t, config.DefaultTiming())
	m.PressKey("1")

	fc.Set(4000)
	m.PressKey("2")
	fc.Set(5500)
	assert.Equal(t, []string{"1-1-halar"}, m.Watchdog())
	assert.Len(t, m.Snapshot().Active, 1)

	m.SetMode(ModePlay)
	fc.Set(20000)
	assert.Nil(t, m.Watchdog())
}

type fakeAudio struct {
	mu      sync.Mutex
	playing bool
	pos     int64
	calls   []string
}

func (a *fakeAudio) IsAudioPlaying() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playing
}

func (a *fakeAudio) AudioPositionMs() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pos
}

func (a *fakeAudio) StartTransport()  { a.record("start") }
func (a *fakeAudio) PauseTransport()  { a.record("pause") }
func (a *fakeAudio) ResumeTransport() { a.record("resume") }
func (a *fakeAudio) StopTransport()   { a.record("stop") }

func (a *fakeAudio) record(call string) {
	a.mu.Lock()
	a.calls = append(a.calls, call)
	a.mu.Unlock()
}

func TestClockFollowsAudioWhenPlaying(t *testing.T) {
	fc := &fakeClock{t: t0}
	audio := &fakeAudio{}
	c := NewClock(fc.Now)
	c.SetAudio(audio)
	c.Start()

	fc.Set(400)
	assert.Equal(t, int64(400), c.NowMs())

	audio.mu.Lock()
	audio.playing, audio.pos = true, 1234
	audio.mu.Unlock()
	assert.Equal(t, int64(1234), c.NowMs())
}

func TestClockPauseHoldsAudioPlayhead(t *testing.T) {
	fc := &fakeClock{t: t0}
	audio := &fakeAudio{playing: true, pos: 960}
	c := NewClock(fc.Now)
	c.SetAudio(audio)
	c.Start()

	fc.Set(1000)
	assert.Equal(t, int64(960), c.NowMs())

	c.Pause()
	assert.Equal(t, int64(960), c.NowMs(), "pause freezes the playhead, not the wall clock")
	audio.mu.Lock()
	audio.playing = false
	audio.mu.Unlock()
	fc.Set(1500)
	assert.Equal(t, int64(960), c.NowMs())

	c.Resume()
	assert.Equal(t, int64(960), c.NowMs())

	// audio gone: the stopwatch carries on from the playhead
	fc.Set(1600)
	assert.Equal(t, int64(1060), c.NowMs())
}

func TestClockPauseCompensation(t *testing.T) {
	fc := &fakeClock{t: t0}
	c := NewClock(fc.Now)
	assert.Equal(t, int64(0), c.NowMs())

	c.Start()
	fc.Set(300)
	c.Pause()
	fc.Set(1300)
	assert.Equal(t, int64(300), c.NowMs())
	c.Resume()
	fc.Set(1450)
	assert.Equal(t, int64(450), c.NowMs())

	c.Pause()
	c.Pause()
	fc.Set(2000)
	c.Resume()
	fc.Set(2050)
	assert.Equal(t, int64(500), c.NowMs())
}

func TestManagerDrivesTransport(t *testing.T) {
	audio := &fakeAudio{}
	m, _ := newTestManager(t, config.DefaultTiming(), WithAudioClock(audio))
	playSong(t, m, song.ScheduledNote{TimeMs: 1000, NoteID: "1-1-halar"})
	m.Pause()
	m.Resume()
	m.Stop()

	audio.mu.Lock()
	defer audio.mu.Unlock()
	// LoadSong stops first
	assert.Equal(t, []string{"stop", "start", "pause", "resume", "stop"}, audio.calls)
}

func TestLanes(t *testing.T) {
	l := NewLanes(catalog.Default().Positions())
	idx, ok := l.For("2-3-empujar")
	require.True(t, ok)
	idx2, _ := l.For("2-3-halar")
	assert.Equal(t, idx, idx2, "both reeds share a lane")

	_, ok = l.For("garbage")
	assert.False(t, ok)
}
