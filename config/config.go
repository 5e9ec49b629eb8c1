package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TimingConfig holds every timing value the engine uses. All values are
// milliseconds unless noted.
type TimingConfig struct {
	DebounceMs         int64   `json:"debounceMs"`
	SearchMarginMs     int64   `json:"searchMarginMs"`
	PerfectMs          int64   `json:"perfectMs"`
	GoodMs             int64   `json:"goodMs"`
	OffbeatMs          int64   `json:"offbeatMs"`
	MissWindowMs       int64   `json:"missWindowMs"`
	LaneSpeed          float64 `json:"laneSpeed"`       // px per ms
	HitLineDistance    float64 `json:"hitLineDistance"` // px from spawn to hit line
	FrameRate          int     `json:"frameRate"`
	WatchdogIntervalMs int64   `json:"watchdogIntervalMs"`
	StuckNoteMs        int64   `json:"stuckNoteMs"`
	StrictMode         bool    `json:"strictMode"` // penalize presses that match no note
}

// LeadTimeMs is how far ahead of its hit time a note enters its lane
func (t TimingConfig) LeadTimeMs() int64 {
	if t.LaneSpeed <= 0 {
		return 0
	}
	return int64(t.HitLineDistance / t.LaneSpeed)
}

func (t TimingConfig) Debounce() time.Duration {
	return time.Duration(t.DebounceMs) * time.Millisecond
}

func (t TimingConfig) FrameInterval() time.Duration {
	if t.FrameRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(t.FrameRate)
}

func (t TimingConfig) WatchdogInterval() time.Duration {
	return time.Duration(t.WatchdogIntervalMs) * time.Millisecond
}

func (t TimingConfig) StuckNoteAge() time.Duration {
	return time.Duration(t.StuckNoteMs) * time.Millisecond
}

// ControllerConfig defines a saved MIDI keyboard
type ControllerConfig struct {
	PortName    string `json:"portName"`
	AutoConnect bool   `json:"autoConnect"`
	// BellowsCC is the controller number that drives the bellows (>= 64 pushes)
	BellowsCC uint8 `json:"bellowsCC,omitempty"`
}

// MIDIKeysConfig places treble rows on a MIDI keyboard
type MIDIKeysConfig struct {
	RowBase  [3]uint8 `json:"rowBase"`  // first MIDI note of each treble row
	BassBase uint8    `json:"bassBase"` // first MIDI note of the bass rows
}

// SynthOutputConfig defines the MIDI output used as a sound source
type SynthOutputConfig struct {
	PortName string `json:"portName,omitempty"`
	Channel  uint8  `json:"channel,omitempty"`
}

// SerialConfig defines the hardware accordion controller
type SerialConfig struct {
	Device string `json:"device,omitempty"`
	Baud   int    `json:"baud,omitempty"`
}

// AudioConfig configures the built-in reed synth
type AudioConfig struct {
	Enabled    bool    `json:"enabled"`
	SampleRate int     `json:"sampleRate"`
	Volume     float64 `json:"volume"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	LastSong string `json:"lastSong,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Timing      TimingConfig       `json:"timing"`
	Controllers []ControllerConfig `json:"controllers,omitempty"`
	MIDIKeys    MIDIKeysConfig     `json:"midiKeys"`
	SynthOutput SynthOutputConfig  `json:"synthOutput,omitempty"`
	Serial      SerialConfig       `json:"serial,omitempty"`
	Audio       AudioConfig        `json:"audio"`
	Keymap      map[string]string  `json:"keymap,omitempty"` // physical key -> "row-col[-bajo]"
	Server      ServerConfig       `json:"server"`
	UI          UIConfig           `json:"ui,omitempty"`

	path string
}

// DefaultTiming returns the stock timing windows
func DefaultTiming() TimingConfig {
	return TimingConfig{
		DebounceMs:         100,
		SearchMarginMs:     300,
		PerfectMs:          50,
		GoodMs:             100,
		OffbeatMs:          150,
		MissWindowMs:       200,
		LaneSpeed:          0.4,
		HitLineDistance:    500,
		FrameRate:          60,
		WatchdogIntervalMs: 1000,
		StuckNoteMs:        5000,
	}
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Timing: DefaultTiming(),
		MIDIKeys: MIDIKeysConfig{
			RowBase:  [3]uint8{60, 72, 84},
			BassBase: 36,
		},
		Serial: SerialConfig{Baud: 115200},
		Audio: AudioConfig{
			Enabled:    true,
			SampleRate: 44100,
			Volume:     0.6,
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Validate checks that the timing windows make sense together
func (c *Config) Validate() error {
	t := c.Timing
	if t.PerfectMs <= 0 || t.GoodMs < t.PerfectMs || t.OffbeatMs < t.GoodMs {
		return fmt.Errorf("timing tiers must be positive and ordered: perfect=%d good=%d offbeat=%d", t.PerfectMs, t.GoodMs, t.OffbeatMs)
	}
	if t.SearchMarginMs < t.OffbeatMs {
		return fmt.Errorf("search margin %dms is narrower than the offbeat window %dms", t.SearchMarginMs, t.OffbeatMs)
	}
	if t.MissWindowMs < t.OffbeatMs {
		// a shorter window sweeps notes before a late offbeat can land
		return fmt.Errorf("miss window %dms is narrower than the offbeat window %dms", t.MissWindowMs, t.OffbeatMs)
	}
	if t.DebounceMs < 0 {
		return fmt.Errorf("debounce must not be negative, got %d", t.DebounceMs)
	}
	if t.LaneSpeed <= 0 || t.HitLineDistance < 0 {
		return fmt.Errorf("lane speed must be positive and hit line distance non-negative")
	}
	return nil
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-acordeon"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from the default path
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the config at path, or returns defaults if not found.
// Fields missing from the file keep their default values.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the config back to where it was loaded from (or the default path)
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// FindController finds a controller config by port name
func (c *Config) FindController(portName string) *ControllerConfig {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == portName {
			return &c.Controllers[i]
		}
	}
	return nil
}

// AddController adds or updates a controller config
func (c *Config) AddController(ctrl ControllerConfig) {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == ctrl.PortName {
			c.Controllers[i] = ctrl
			return
		}
	}
	c.Controllers = append(c.Controllers, ctrl)
}

// AutoConnectControllers returns controllers with autoConnect enabled
func (c *Config) AutoConnectControllers() []ControllerConfig {
	var result []ControllerConfig
	for _, ctrl := range c.Controllers {
		if ctrl.AutoConnect {
			result = append(result, ctrl)
		}
	}
	return result
}
