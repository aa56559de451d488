// Package bustest provides an in-memory expander board for tests.
package bustest

import (
	"errors"
	"sync"

	"github.com/opensesame/core/internal/bus"
)

// ErrInjected is the cause of failures set up with FailReads/FailWrites.
var ErrInjected = errors.New("bustest: injected failure")

// Write is one recorded register write.
type Write struct {
	Cmd   byte
	Value byte
}

// Device emulates an expander board. Inputs holds the level of the input
// pins (a 0 bit is a pressed button); a read of GetPorts returns the input
// bits under the direction mask combined with the last output byte.
type Device struct {
	mu sync.Mutex

	addr    uint16
	Inputs  byte
	Tris    byte
	Pullups byte
	Ports   byte
	Relays  byte

	Writes []Write
	Reads  int

	failReads  int
	failWrites int
}

// NewDevice returns a board at addr with all inputs released (high).
func NewDevice(addr uint16) *Device {
	return &Device{addr: addr, Inputs: 0xff}
}

// Addr implements bus.Device.
func (d *Device) Addr() uint16 {
	return d.addr
}

// SetInputs changes the input pin levels.
func (d *Device) SetInputs(v byte) {
	d.mu.Lock()
	d.Inputs = v
	d.mu.Unlock()
}

// FailReads makes the next n reads fail. A negative n fails all reads
// until FailReads(0).
func (d *Device) FailReads(n int) {
	d.mu.Lock()
	d.failReads = n
	d.mu.Unlock()
}

// FailWrites makes the next n writes fail, like FailReads.
func (d *Device) FailWrites(n int) {
	d.mu.Lock()
	d.failWrites = n
	d.mu.Unlock()
}

// ReadByteData implements bus.Device.
func (d *Device) ReadByteData(cmd byte) (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Reads++
	if consume(&d.failReads) {
		return 0, &bus.IOError{Addr: d.addr, Op: "read", Cmd: cmd, Err: ErrInjected}
	}

	switch cmd {
	case bus.GetPorts:
		return (d.Inputs & d.Tris) | (d.Ports &^ d.Tris), nil
	default:
		return 0, &bus.IOError{Addr: d.addr, Op: "read", Cmd: cmd, Err: errors.New("unsupported command")}
	}
}

// WriteByteData implements bus.Device.
func (d *Device) WriteByteData(cmd, value byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if consume(&d.failWrites) {
		return &bus.IOError{Addr: d.addr, Op: "write", Cmd: cmd, Err: ErrInjected}
	}

	d.Writes = append(d.Writes, Write{Cmd: cmd, Value: value})
	switch cmd {
	case bus.SetTris:
		d.Tris = value
	case bus.SetPullups:
		d.Pullups = value
	case bus.SetPorts:
		d.Ports = value
	case bus.SetRelaysOn:
		d.Relays |= value
	case bus.SetRelaysOff:
		d.Relays &^= value
	}
	return nil
}

// RelayOn reports whether every relay in mask is energized.
func (d *Device) RelayOn(mask byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Relays&mask == mask
}

// PortBits returns the last output byte written.
func (d *Device) PortBits() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Ports
}

// WritesOf returns the recorded writes of one command.
func (d *Device) WritesOf(cmd byte) []Write {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Write
	for _, w := range d.Writes {
		if w.Cmd == cmd {
			out = append(out, w)
		}
	}
	return out
}

// ResetWrites clears the write log.
func (d *Device) ResetWrites() {
	d.mu.Lock()
	d.Writes = nil
	d.mu.Unlock()
}

func consume(n *int) bool {
	switch {
	case *n < 0:
		return true
	case *n > 0:
		*n--
		return true
	default:
		return false
	}
}
