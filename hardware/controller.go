package hardware

import (
	"context"
	"fmt"
	"io"

	"go.bug.st/serial"

	"go-acordeon/bellows"
	"go-acordeon/catalog"
	"go-acordeon/debug"
	"go-acordeon/sequencer"
)

// Engine is what the controller drives
type Engine interface {
	PressKey(key string) sequencer.PressResult
	ReleaseKey(key string) (string, bool)
	Flip(dir catalog.Direction) bool
}

// Controller is an open serial accordion controller
type Controller struct {
	port    io.ReadWriteCloser
	decoder Decoder
}

// Open opens the serial device
func Open(device string, baud int) (*Controller, error) {
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}
	if err := p.ResetInputBuffer(); err != nil {
		debug.Log("serial", "reset input: %v", err)
	}
	debug.Log("serial", "opened %s at %d baud", device, baud)
	return &Controller{port: p}, nil
}

// NewController wraps an already open stream (tests use a pipe)
func NewController(port io.ReadWriteCloser) *Controller {
	return &Controller{port: port}
}

// Ports lists the serial devices present
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

// Dispatch applies one event to the engine
func Dispatch(engine Engine, ev Event) {
	switch ev.Kind {
	case KeyDown:
		engine.PressKey(bellows.HardwareKey(ev.Position))
	case KeyUp:
		engine.ReleaseKey(bellows.HardwareKey(ev.Position))
	case Bellows:
		engine.Flip(ev.Direction)
	}
}

// Run reads frames and drives the engine until ctx is done or the port fails
func (c *Controller) Run(ctx context.Context, engine Engine) error {
	go func() {
		<-ctx.Done()
		c.port.Close()
	}()

	buf := make([]byte, 256)
	for {
		n, err := c.port.Read(buf)
		if n > 0 {
			for _, f := range c.decoder.Feed(buf[:n]) {
				ev, perr := Parse(f)
				if perr != nil {
					debug.Log("serial", "bad frame: %v", perr)
					continue
				}
				Dispatch(engine, ev)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read serial: %w", err)
		}
	}
}

// Close closes the port
func (c *Controller) Close() error {
	return c.port.Close()
}
