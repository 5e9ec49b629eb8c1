package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"go-acordeon/debug"
	"go-acordeon/midi"
	"go-acordeon/server"
)

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine behind an HTTP API",
	Long: `serve runs the engine headless. A web front end (or curl) drives it
through /api; MIDI keyboards and the serial controller still work.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !debugLog {
			// no terminal UI to disturb
			debug.EnableWriter(cmd.ErrOrStderr())
		}

		e, err := newEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := e.startInputs(ctx); err != nil {
			return err
		}

		deviceMgr := newDeviceManager()
		go deviceMgr.Run(ctx)
		go routeDevices(ctx, deviceMgr, e)

		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr
		}
		fmt.Printf("listening on %s\n", addr)
		return server.New(ctx, e.Manager, e.Store, cfg.Server.AllowedOrigins).ListenAndServe(ctx, addr)
	},
}

// routeDevices plays every keyboard that connects into the engine
func routeDevices(ctx context.Context, dm *midi.DeviceManager, e *engine) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-dm.Events():
			if !ok {
				return
			}
			if ev.Type != midi.DeviceConnected {
				continue
			}
			var cc uint8
			if c := cfg.FindController(ev.ID); c != nil {
				cc = c.BellowsCC
			}
			go midi.NewRouter(e.Manager, cc).Run(ctx, ev.Controller.Events())
		}
	}
}
