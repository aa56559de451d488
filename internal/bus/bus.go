package bus

import (
	"fmt"
	"sync/atomic"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Expander board commands. These are fixed by the board firmware.
const (
	SetTris      byte = 0x01 // input/output direction mask
	SetPorts     byte = 0x02 // output byte
	GetPorts     byte = 0x03 // current input/output byte
	SetPullups   byte = 0x04 // pull-up mask
	SetRelaysOn  byte = 0x41 // energize relays in mask
	SetRelaysOff byte = 0x42 // de-energize relays in mask
)

// Device is one addressable expander board.
type Device interface {
	WriteByteData(cmd, value byte) error
	ReadByteData(cmd byte) (byte, error)
	Addr() uint16
}

// Bus owns an opened I2C bus and the devices on it.
type Bus struct {
	closer  i2c.BusCloser
	devices []Device
	closed  atomic.Bool
}

// Open initializes the periph.io host drivers, opens the named I2C bus
// (for example "/dev/i2c-2" or "2") and returns one Device per address.
func Open(name string, addrs ...uint16) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initializing host drivers: %w", err)
	}

	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening i2c bus %q: %w", name, err)
	}

	bus := &Bus{closer: b}
	for _, addr := range addrs {
		bus.devices = append(bus.devices, &i2cDevice{dev: &i2c.Dev{Bus: b, Addr: addr}, closed: &bus.closed})
	}
	return bus, nil
}

// Devices returns the devices in the order their addresses were given to Open.
func (b *Bus) Devices() []Device {
	return b.devices
}

// Close releases the bus. Devices fail with ErrClosed afterwards.
func (b *Bus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.closer.Close()
}

// NewDevice wraps a periph.io bus and address as a Device.
func NewDevice(b i2c.Bus, addr uint16) Device {
	return &i2cDevice{dev: &i2c.Dev{Bus: b, Addr: addr}, closed: new(atomic.Bool)}
}

type i2cDevice struct {
	dev    *i2c.Dev
	closed *atomic.Bool
}

func (d *i2cDevice) tx(op string, cmd byte, w, r []byte) error {
	err := ErrClosed
	if !d.closed.Load() {
		err = d.dev.Tx(w, r)
	}
	if err != nil {
		return &IOError{Addr: d.dev.Addr, Op: op, Cmd: cmd, Err: err}
	}
	return nil
}

func (d *i2cDevice) Addr() uint16 {
	return d.dev.Addr
}

// WriteByteData sends the command byte followed by the value.
func (d *i2cDevice) WriteByteData(cmd, value byte) error {
	return d.tx("write", cmd, []byte{cmd, value}, nil)
}

// ReadByteData sends the command byte and reads one byte back.
func (d *i2cDevice) ReadByteData(cmd byte) (byte, error) {
	var buf [1]byte
	if err := d.tx("read", cmd, []byte{cmd}, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}
