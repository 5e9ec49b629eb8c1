package cmd

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"go-acordeon/debug"
	"go-acordeon/midi"
	"go-acordeon/sequencer"
	"go-acordeon/theme"
	"go-acordeon/tui"
)

var (
	noMIDI  bool
	palette string
)

func init() {
	for _, c := range []*cobra.Command{playCmd, freeCmd} {
		c.Flags().BoolVar(&noMIDI, "no-midi", false, "don't listen for MIDI keyboards")
		c.Flags().StringVar(&palette, "palette", "", "GIMP .gpl palette for the UI")
	}
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(freeCmd)
}

var playCmd = &cobra.Command{
	Use:   "play [song]",
	Short: "Play a song (the last one played if omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := cfg.UI.LastSong
		if len(args) == 1 {
			id = args[0]
		}
		if id == "" {
			return errors.New("no song given; see `acordeon songs`")
		}
		return runTUI(id)
	},
}

var freeCmd = &cobra.Command{
	Use:   "free",
	Short: "Free play: just the accordion, no song",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI("")
	},
}

func runTUI(songID string) error {
	th := theme.Default()
	if palette != "" {
		p, err := theme.LoadGPL(palette)
		if err != nil {
			return err
		}
		th = theme.New(p)
	}

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if songID != "" {
		sng, err := e.Store.Load(songID)
		if err != nil {
			return err
		}
		if err := e.Manager.LoadSong(sng); err != nil {
			return err
		}
		cfg.UI.LastSong = sng.ID
		if err := cfg.Save(); err != nil {
			debug.Log("config", "save: %v", err)
		}
	} else {
		e.Manager.SetMode(sequencer.ModeFree)
	}

	if err := e.startInputs(ctx); err != nil {
		return err
	}

	var deviceMgr *midi.DeviceManager
	if !noMIDI {
		deviceMgr = newDeviceManager()
		go deviceMgr.Run(ctx)
	}

	m := tui.NewModel(ctx, e.Manager, deviceMgr, th, cfg)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err = p.Run()
	return err
}
