package buttons

import (
	"errors"
	"fmt"
)

// ErrUnreachableInput is returned for a pressed input code that no handler
// knows about. The board wiring only produces the documented bits, so this
// means a hardware fault or a wiring change.
var ErrUnreachableInput = errors.New("buttons: unreachable input")

// BusError reports that a board kept failing and both boards were
// reinitialized. Recovered is false when the reinitialization failed too.
type BusError struct {
	Board     Board
	Addr      uint16
	Failures  int
	Recovered bool
	Err       error
	ReinitErr error
}

func (e *BusError) Error() string {
	msg := fmt.Sprintf("buttons: board %s (%#02x) failed %d times: %v", e.Board, e.Addr, e.Failures, e.Err)
	if e.ReinitErr != nil {
		msg += fmt.Sprintf("; reinitialization failed: %v", e.ReinitErr)
	}
	return msg
}

func (e *BusError) Unwrap() []error {
	if e.ReinitErr != nil {
		return []error{e.Err, e.ReinitErr}
	}
	return []error{e.Err}
}
