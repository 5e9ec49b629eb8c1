package sequencer

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"go-acordeon/bellows"
	"go-acordeon/catalog"
	"go-acordeon/config"
	"go-acordeon/debug"
	"go-acordeon/song"
)

// ErrNoSong is returned by Play when nothing is loaded
var ErrNoSong = errors.New("no song loaded")

const feedbackBuffer = 64

// Snapshot is a read-only copy of the engine state for one frame
type Snapshot struct {
	Mode      Mode                 `json:"mode"`
	SongID    string               `json:"songId,omitempty"`
	SongTitle string               `json:"songTitle,omitempty"`
	ClockMs   int64                `json:"clockMs"`
	LeadMs    int64                `json:"leadMs"`
	Playing   bool                 `json:"playing"`
	Paused    bool                 `json:"paused"`
	Finished  bool                 `json:"finished"`
	Game      GameState            `json:"game"`
	Accuracy  float64              `json:"accuracy"`
	Bellows   bellows.State        `json:"bellows"`
	Active    []bellows.ActiveNote `json:"active"`
	Falling   []FallingNote        `json:"falling"`
	Lanes     []Lane               `json:"lanes"`
	Total     int                  `json:"total"`
	Pending   int                  `json:"pending"`
}

// PressResult describes what a key press did
type PressResult struct {
	NoteID    string             `json:"noteId,omitempty"` // empty for unmapped keys
	Note      bellows.ActiveNote `json:"note"`
	Activated bool               `json:"activated"` // false: unmapped, duplicate or debounced
	Judged    bool               `json:"judged"`
	Feedback  *Feedback          `json:"feedback,omitempty"`
}

// Option configures a Manager
type Option func(*Manager)

// WithNow replaces the wall clock (tests)
func WithNow(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithSink sets where sound on/off notifications go
func WithSink(s bellows.Sink) Option {
	return func(m *Manager) { m.sink = s }
}

// WithAudioClock makes the game clock follow an audio playhead
func WithAudioClock(a AudioClock) Option {
	return func(m *Manager) { m.audio = a }
}

// WithLanes overrides the lane set (default: one per catalog button)
func WithLanes(positions []catalog.Position) Option {
	return func(m *Manager) { m.lanes = NewLanes(positions) }
}

// Manager owns the bellows resolver, the song schedule, the scheduler, the
// scorer and the game clock. Every transition runs under one mutex.
type Manager struct {
	mu  sync.Mutex
	now func() time.Time

	timing   config.TimingConfig
	catalog  *catalog.Catalog
	resolver *bellows.Resolver
	sink     bellows.Sink
	audio    AudioClock

	schedule  *song.Schedule
	lanes     *Lanes
	scheduler *Scheduler
	scorer    *Scorer
	clock     *Clock

	mode     Mode
	song     *song.Song
	playing  bool
	finished bool
	endMs    int64

	songCancel context.CancelFunc
	feedback   chan Feedback

	// Notify UI of updates
	UpdateChan chan struct{}
}

// NewManager creates an engine in free-play mode with no song loaded
func NewManager(timing config.TimingConfig, cat *catalog.Catalog, keymap bellows.Keymap, opts ...Option) *Manager {
	m := &Manager{
		now:        time.Now,
		timing:     timing,
		catalog:    cat,
		schedule:   song.NewSchedule(),
		feedback:   make(chan Feedback, feedbackBuffer),
		UpdateChan: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.lanes == nil {
		m.lanes = NewLanes(cat.Positions())
	}
	m.resolver = bellows.NewResolver(cat, keymap, timing.Debounce())
	if m.sink != nil {
		m.resolver.SetSink(m.sink)
	}
	m.clock = NewClock(m.now)
	if m.audio != nil {
		m.clock.SetAudio(m.audio)
	}
	m.scheduler = NewScheduler(m.schedule, m.lanes, timing.LeadTimeMs(), timing.MissWindowMs)
	m.scorer = NewScorer(m.schedule, timing)
	return m
}

// SetSink replaces the sound sink
func (m *Manager) SetSink(s bellows.Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = s
	m.resolver.SetSink(s)
}

// SetTiming applies new timing values; the running song keeps going
func (m *Manager) SetTiming(t config.TimingConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timing = t
	m.resolver.SetDebounce(t.Debounce())
	m.scheduler.SetTiming(t.LeadTimeMs(), t.MissWindowMs)
	m.scorer.SetTiming(t)
}

func (m *Manager) Timing() config.TimingConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timing
}

func (m *Manager) Catalog() *catalog.Catalog {
	return m.catalog
}

// Feedback streams scored outcomes. Events are dropped when nobody reads.
func (m *Manager) Feedback() <-chan Feedback {
	return m.feedback
}

// Song returns the loaded song (nil in free play)
func (m *Manager) Song() *song.Song {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.song
}

func (m *Manager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// LoadSong validates and loads a song, stopping whatever was playing. The
// engine switches to play mode.
func (m *Manager) LoadSong(s *song.Song) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.schedule.Load(s.Notes, m.catalog); err != nil {
		return errors.Wrapf(err, "load song %s", s.ID)
	}

	m.stopLocked()
	m.schedule.Restart()
	m.song = s
	m.mode = ModePlay
	m.finished = false
	m.scorer.Reset()
	debug.Log("engine", "loaded %s (%d notes)", s.ID, m.schedule.Len())
	m.notify()
	return nil
}

// SetMode switches between free play and play. Leaving play stops the song.
func (m *Manager) SetMode(mode Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mode == m.mode {
		return
	}
	if mode == ModeFree {
		m.stopLocked()
	}
	m.mode = mode
	debug.Log("engine", "mode %s", mode)
	m.notify()
}

// Play starts the loaded song from zero and runs its frame loop until the
// song ends, Stop is called, or ctx is cancelled.
func (m *Manager) Play(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.song == nil {
		return ErrNoSong
	}
	if m.playing {
		return nil
	}

	m.mode = ModePlay
	m.resolver.Reset()
	m.schedule.Restart()
	m.scheduler.Reset()
	m.scorer.Reset()
	m.finished = false
	m.endMs = 0
	m.clock.Start()
	if t, ok := m.audio.(Transport); ok {
		t.StartTransport()
	}
	m.playing = true

	loopCtx, cancel := context.WithCancel(ctx)
	m.songCancel = cancel
	go m.songLoop(loopCtx, m.timing.FrameInterval())

	debug.Log("engine", "play %s", m.song.ID)
	m.notify()
	return nil
}

// songLoop ticks the scheduler at the frame rate
func (m *Manager) songLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.Tick() {
				return
			}
		}
	}
}

func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.playing || m.clock.Paused() {
		return
	}
	m.clock.Pause()
	if t, ok := m.audio.(Transport); ok {
		t.PauseTransport()
	}
	m.notify()
}

func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.playing || !m.clock.Paused() {
		return
	}
	m.clock.Resume()
	if t, ok := m.audio.(Transport); ok {
		t.ResumeTransport()
	}
	m.notify()
}

// Stop ends the song: the frame loop is cancelled, every sounding note is
// released and the schedule is rewound.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	m.notify()
}

func (m *Manager) stopLocked() {
	if m.songCancel != nil {
		m.songCancel()
		m.songCancel = nil
	}
	if m.playing {
		debug.Log("engine", "stop at %dms", m.clock.NowMs())
	}
	m.playing = false
	m.clock.Stop()
	if t, ok := m.audio.(Transport); ok {
		t.StopTransport()
	}
	m.resolver.Reset()
	m.schedule.Restart()
	m.scheduler.Reset()
}

// Restart stops and plays the loaded song again
func (m *Manager) Restart(ctx context.Context) error {
	m.Stop()
	return m.Play(ctx)
}

// Tick runs one scheduler step: materialize, then sweep. It returns false
// once the song is no longer playing.
func (m *Manager) Tick() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tickLocked()
}

func (m *Manager) tickLocked() bool {
	if !m.playing {
		return false
	}
	if m.clock.Paused() {
		return true
	}

	clockMs := m.clock.NowMs()
	spawned, missed := m.scheduler.Tick(clockMs)
	debug.LogEvery(300, "engine", "tick clock=%dms pending=%d", clockMs, m.schedule.Pending())
	for _, fn := range missed {
		fb := m.scorer.Apply(TierMiss, fn.NoteID, 0, m.now())
		debug.Log("score", "miss %s at %dms (clock %dms)", fn.NoteID, fn.TimeMs, clockMs)
		m.publish(fb)
	}

	if m.schedule.Done() {
		m.finishLocked(clockMs)
		m.notify()
		return false
	}
	if len(spawned) > 0 || len(missed) > 0 {
		m.notify()
	}
	return true
}

func (m *Manager) finishLocked(clockMs int64) {
	st := m.scorer.State()
	debug.Log("engine", "finished %s score=%d comboMax=%d", m.song.ID, st.Score, st.ComboMax)
	m.endMs = clockMs
	m.playing = false
	m.finished = true
	if m.songCancel != nil {
		m.songCancel()
		m.songCancel = nil
	}
	m.clock.Stop()
	if t, ok := m.audio.(Transport); ok {
		t.StopTransport()
	}
	m.resolver.Reset()
}

// PressKey activates the button under a physical key and, while a song is
// running, judges it. The post-flip debounce only gates the sound: a press
// that lands in it is still judged. Pressing an id that is already sounding
// does nothing.
func (m *Manager) PressKey(key string) PressResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.resolver.Resolve(key)
	if !ok {
		return PressResult{}
	}
	noteID := id.String()
	if m.resolver.IsActive(noteID) {
		return PressResult{NoteID: noteID}
	}

	now := m.now()
	n, activated := m.resolver.Press(key, now)
	res := PressResult{NoteID: noteID, Note: n, Activated: activated}

	if m.mode == ModePlay && m.playing && !m.clock.Paused() {
		// bring materialization up to date before judging
		if m.tickLocked() {
			res.Feedback = m.judgeLocked(noteID, now)
			res.Judged = res.Feedback != nil
		}
	}
	m.notify()
	return res
}

func (m *Manager) judgeLocked(noteID string, now time.Time) *Feedback {
	playedAt := m.clock.NowMs()
	tier, delta, matched := m.scorer.Judge(noteID, playedAt)
	if !matched {
		if !m.timing.StrictMode {
			debug.Log("score", "no match for %s at %dms", noteID, playedAt)
			return nil
		}
		tier = TierMiss
	}

	fb := m.scorer.Apply(tier, noteID, delta, now)
	debug.Log("score", "%s %s delta=%dms combo=%d", tier, noteID, delta, fb.Combo)
	m.publish(fb)

	if m.schedule.Done() {
		m.finishLocked(playedAt)
	}
	return &fb
}

// ReleaseKey deactivates whatever the key sounds
func (m *Manager) ReleaseKey(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.resolver.Release(key)
	if ok {
		m.notify()
	}
	return id, ok
}

// Flip sets the bellows direction, retuning sounding notes
func (m *Manager) Flip(dir catalog.Direction) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.resolver.Flip(dir, m.now()) {
		return false
	}
	debug.Log("bellows", "flip %s", dir)
	m.notify()
	return true
}

// ToggleBellows reverses the bellows and returns the new direction
func (m *Manager) ToggleBellows() catalog.Direction {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolver.Toggle(m.now())
	dir := m.resolver.Snapshot().Direction
	debug.Log("bellows", "toggle -> %s", dir)
	m.notify()
	return dir
}

func (m *Manager) SetMouseHeld(held bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolver.SetMouseHeld(held)
}

// Watchdog releases notes held longer than the stuck-note age. It only acts
// in free play.
func (m *Manager) Watchdog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode != ModeFree {
		return nil
	}
	swept := m.resolver.SweepStuck(m.now(), m.timing.StuckNoteAge())
	if len(swept) > 0 {
		debug.Log("watchdog", "released stuck notes %v", swept)
		m.notify()
	}
	return swept
}

// Run drives the stuck-note watchdog until ctx is cancelled. Song frames are
// driven by the loop Play starts.
func (m *Manager) Run(ctx context.Context) {
	interval := m.Timing().WatchdogInterval()
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return
		case <-ticker.C:
			m.Watchdog()
		}
	}
}

// Snapshot returns a copy of the current state
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	clockMs := m.clock.NowMs()
	if m.finished {
		clockMs = m.endMs
	}
	game := m.scorer.State()

	snap := Snapshot{
		Mode:     m.mode,
		ClockMs:  clockMs,
		LeadMs:   m.scheduler.LeadMs(),
		Playing:  m.playing,
		Paused:   m.playing && m.clock.Paused(),
		Finished: m.finished,
		Game:     game,
		Accuracy: game.Accuracy(),
		Bellows:  m.resolver.Snapshot(),
		Active:   m.resolver.Active(),
		Falling:  m.scheduler.Live(),
		Lanes:    m.lanes.All(),
		Total:    m.schedule.Len(),
		Pending:  m.schedule.Pending(),
	}
	if m.song != nil {
		snap.SongID = m.song.ID
		snap.SongTitle = m.song.Title
	}
	return snap
}

func (m *Manager) publish(fb Feedback) {
	select {
	case m.feedback <- fb:
	default:
	}
}

func (m *Manager) notify() {
	select {
	case m.UpdateChan <- struct{}{}:
	default:
	}
}
