package bus

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by devices whose bus has been closed.
var ErrClosed = errors.New("bus: closed")

// IOError is a failed register access on one device.
type IOError struct {
	Addr uint16
	Op   string // "read" or "write"
	Cmd  byte
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("bus: %s register %#02x on device %#02x: %v", e.Op, e.Cmd, e.Addr, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
