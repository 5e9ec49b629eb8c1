package midi

// Controller is a MIDI input device
type Controller interface {
	ID() string
	Events() <-chan Event
	Close() error
}
