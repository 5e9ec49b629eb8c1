package sequencer

// Mode is what the engine does with presses
type Mode int

const (
	// ModeFree sounds buttons with no chart; the stuck-note watchdog runs
	ModeFree Mode = iota
	// ModePlay judges presses against the loaded song
	ModePlay
)

func (m Mode) String() string {
	if m == ModePlay {
		return "play"
	}
	return "free"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Transport is an audio clock that follows the song transport. The Manager
// drives it when the configured audio clock implements it.
type Transport interface {
	AudioClock
	StartTransport()
	PauseTransport()
	ResumeTransport()
	StopTransport()
}
