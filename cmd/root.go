// Package cmd is the acordeon command line.
package cmd

import (
	"github.com/spf13/cobra"

	"go-acordeon/config"
	"go-acordeon/debug"
)

var (
	configPath string
	debugLog   bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "acordeon",
	Short: "Button accordion rhythm trainer",
	Long: `acordeon teaches the three-row diatonic button accordion.
Songs scroll down lanes toward a hit line; press the right button with the
bellows going the right way, on time.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if debugLog {
			if err := debug.Enable(); err != nil {
				return err
			}
		}

		var err error
		if configPath != "" {
			cfg, err = config.LoadFile(configPath)
		} else {
			cfg, err = config.Load()
		}
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/go-acordeon/config.json)")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "write a debug log to ~/.config/go-acordeon/debug.log")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
