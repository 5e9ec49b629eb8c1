package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"go-acordeon/hardware"
	"go-acordeon/midi"
)

func init() {
	rootCmd.AddCommand(portsCmd)
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI and serial ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("=== MIDI Input Ports ===")
		ins, outs, ok := midi.Ports(3 * time.Second)
		if !ok {
			fmt.Println("TIMEOUT! The MIDI driver did not answer.")
			fmt.Println("Fix (macOS): sudo killall coreaudiod midiserver")
		} else {
			for i, p := range ins {
				fmt.Printf("  %d: %s\n", i, p)
			}
			fmt.Println("\n=== MIDI Output Ports ===")
			for i, p := range outs {
				fmt.Printf("  %d: %s\n", i, p)
			}
		}

		fmt.Println("\n=== Serial Ports ===")
		serials, err := hardware.Ports()
		if err != nil {
			return err
		}
		if len(serials) == 0 {
			fmt.Println("  (none)")
		}
		for _, p := range serials {
			fmt.Printf("  %s\n", p)
		}
		return nil
	},
}
