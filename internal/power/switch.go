// Package power drives the GPIO line that supplies the expander boards.
// The line is held high in normal operation and pulled low to power cycle
// the boards after repeated bus failures.
package power

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// ErrPinNotFound is returned by Open for an unknown GPIO name.
var ErrPinNotFound = errors.New("power: gpio pin not found")

// Line is an output GPIO line. gpio.PinOut satisfies it.
type Line interface {
	Out(l gpio.Level) error
}

// Switch is the supply switch.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Switch struct {
	mu   sync.Mutex
	line Line
	on   bool
}

// Open initializes the host drivers and takes over the named pin, for
// example "GPIO202".
func Open(pin string) (*Switch, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initializing host drivers: %w", err)
	}
	p := gpioreg.ByName(pin)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, pin)
	}
	return New(p)
}

// New switches line on and returns a Switch for it.
func New(line Line) (*Switch, error) {
	if err := line.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("switching supply on: %w", err)
	}
	return &Switch{line: line, on: true}, nil
}

// Switch sets the supply. Setting the current state again is a no-op.
func (s *Switch) Switch(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if on == s.on {
		return nil
	}
	if err := s.line.Out(gpio.Level(on)); err != nil {
		return fmt.Errorf("switching supply on=%v: %w", on, err)
	}
	s.on = on
	return nil
}

// On reports whether the supply is on.
func (s *Switch) On() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on
}

// Close switches the supply off.
func (s *Switch) Close() error {
	return s.Switch(false)
}
