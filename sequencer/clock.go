package sequencer

import (
	"sync"
	"time"
)

// AudioClock is a backing track that can report its playhead. When audio is
// playing its position wins over the stopwatch.
type AudioClock interface {
	IsAudioPlaying() bool
	AudioPositionMs() int64
}

// Clock is the game clock: milliseconds since the song started, minus time
// spent paused.
type Clock struct {
	mu  sync.Mutex
	now func() time.Time

	audio AudioClock

	startedAt   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration
	running     bool
	paused      bool
}

// NewClock creates a stopped clock. now may be nil (uses time.Now).
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// SetAudio sets the audio source (nil to use the stopwatch only)
func (c *Clock) SetAudio(a AudioClock) {
	c.mu.Lock()
	c.audio = a
	c.mu.Unlock()
}

// Start resets the clock to zero and starts it
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startedAt = c.now()
	c.pausedTotal = 0
	c.running = true
	c.paused = false
}

func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.paused {
		return
	}
	c.pausedAt = c.now()
	if c.audio != nil && c.audio.IsAudioPlaying() {
		// freeze at the playhead and continue from it on resume
		playhead := time.Duration(c.audio.AudioPositionMs()) * time.Millisecond
		c.pausedTotal = c.pausedAt.Sub(c.startedAt) - playhead
	}
	c.paused = true
}

// Resume continues counting from where Pause left off
func (c *Clock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || !c.paused {
		return
	}
	c.pausedTotal += c.now().Sub(c.pausedAt)
	c.paused = false
}

func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.paused = false
	c.pausedTotal = 0
}

func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Clock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// NowMs returns the game clock in milliseconds (0 when stopped). It never
// moves while paused.
func (c *Clock) NowMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused {
		return (c.pausedAt.Sub(c.startedAt) - c.pausedTotal).Milliseconds()
	}
	if c.audio != nil && c.audio.IsAudioPlaying() {
		return c.audio.AudioPositionMs()
	}
	if !c.running {
		return 0
	}
	return (c.now().Sub(c.startedAt) - c.pausedTotal).Milliseconds()
}
