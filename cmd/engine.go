package cmd

import (
	"context"
	"fmt"

	"go-acordeon/audio"
	"go-acordeon/bellows"
	"go-acordeon/catalog"
	"go-acordeon/debug"
	"go-acordeon/hardware"
	"go-acordeon/midi"
	"go-acordeon/sequencer"
	"go-acordeon/song"
)

// engine is a manager plus the sound and input devices wired to it
type engine struct {
	Manager *sequencer.Manager
	Store   *song.Store

	closers []func() error
}

// newEngine builds the manager from cfg. Sound sources that fail to open are
// logged and skipped so the game still runs silent.
func newEngine() (*engine, error) {
	cat := catalog.Default()

	keymap := bellows.DefaultKeymap(cat)
	keymap.AddMIDI(cfg.MIDIKeys.RowBase, cfg.MIDIKeys.BassBase)
	if err := keymap.Override(cfg.Keymap); err != nil {
		return nil, fmt.Errorf("keymap: %w", err)
	}

	store, err := song.DefaultStore(cat)
	if err != nil {
		return nil, err
	}

	e := &engine{Store: store}
	var sinks bellows.Sinks
	var opts []sequencer.Option

	if cfg.Audio.Enabled {
		synth := audio.NewSynth(cfg.Audio.SampleRate, cfg.Audio.Volume)
		out, err := audio.NewOutput(synth)
		if err != nil {
			debug.Warn("audio", "no audio output: %v", err)
		} else {
			e.closers = append(e.closers, out.Close)
			sinks = append(sinks, synth)
			opts = append(opts, sequencer.WithAudioClock(synth))
		}
	}

	if cfg.SynthOutput.PortName != "" {
		out, err := midi.OpenOutput(cfg.SynthOutput.PortName, cfg.SynthOutput.Channel)
		if err != nil {
			debug.Warn("midi", "synth output %q: %v", cfg.SynthOutput.PortName, err)
		} else {
			e.closers = append(e.closers, func() error {
				out.AllNotesOff()
				return nil
			})
			sinks = append(sinks, out)
		}
	}

	if len(sinks) > 0 {
		opts = append(opts, sequencer.WithSink(sinks))
	}
	e.Manager = sequencer.NewManager(cfg.Timing, cat, keymap, opts...)
	return e, nil
}

// startInputs starts the watchdog and the serial controller, if configured
func (e *engine) startInputs(ctx context.Context) error {
	go e.Manager.Run(ctx)

	if cfg.Serial.Device == "" {
		return nil
	}
	ctrl, err := hardware.Open(cfg.Serial.Device, cfg.Serial.Baud)
	if err != nil {
		return fmt.Errorf("serial controller: %w", err)
	}
	go func() {
		if err := ctrl.Run(ctx, e.Manager); err != nil {
			debug.Error("serial", err, "controller stopped")
		}
	}()
	return nil
}

// newDeviceManager watches for the configured MIDI keyboards, or any keyboard
// when none are configured
func newDeviceManager() *midi.DeviceManager {
	var names []string
	for _, c := range cfg.AutoConnectControllers() {
		names = append(names, c.PortName)
	}
	if len(names) == 0 {
		return midi.NewDeviceManager(nil)
	}
	return midi.NewDeviceManager(midi.MatchNames(names))
}

func (e *engine) Close() {
	e.Manager.Stop()
	for _, c := range e.closers {
		if err := c(); err != nil {
			debug.Log("engine", "close: %v", err)
		}
	}
}
