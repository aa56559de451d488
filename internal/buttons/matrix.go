package buttons

import (
	"errors"
	"fmt"

	"github.com/opensesame/core/internal/bus"
	"github.com/opensesame/core/internal/validator"
)

// Logger defines the logging interface for the matrix.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Matrix.
type Options struct {
	// LightTimeoutTicks is the base light duration in ticks.
	LightTimeoutTicks uint32
	// BellEnabled allows RingBell to ring.
	BellEnabled bool
	Logger      Logger
}

// Matrix owns the two expander boards and the keypad sequence. It performs
// all bus I/O around the pure State.
//
// Thread Safety:
//   - Not safe for concurrent use. Poll and the mutators belong to the
//     control loop goroutine.
type Matrix struct {
	boards [2]bus.Device
	logger Logger
	params Params

	state State
	seq   validator.Sequence

	// Relay commands that still have to reach the boards.
	pending []RelayCmd

	// Last port bytes written, and whether a rewrite is forced.
	written [2]byte
	dirty   bool

	failed int
}

// New initializes both boards and returns a Matrix in its power-on state.
func New(a, b bus.Device, opts Options) (*Matrix, error) {
	if a == nil || b == nil {
		return nil, errors.New("buttons: both boards are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	m := &Matrix{
		boards: [2]bus.Device{a, b},
		logger: logger,
		params: Params{LightTicks: opts.LightTimeoutTicks, BellEnabled: opts.BellEnabled},
	}
	m.reset()

	if err := m.initBoards(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Matrix) reset() {
	m.state = NewState(m.params)
	m.pending = nil
	m.written = [2]byte{initPortsA &^ AllButtons, initPortsB}
	m.dirty = false
}

// initBoards puts both boards into a known state: button pins as inputs
// with pull-ups, all relays off and all LEDs dark.
func (m *Matrix) initBoards() error {
	steps := []struct {
		cmd   byte
		value [2]byte
	}{
		{bus.SetTris, [2]byte{AllButtons, AllButtons}},
		{bus.SetPullups, [2]byte{AllButtons, AllButtons}},
		{bus.SetRelaysOff, [2]byte{allRelaysA, allRelaysB}},
		{bus.SetPorts, [2]byte{AllButtons, AllButtons}},
	}

	for _, step := range steps {
		for i, dev := range m.boards {
			if err := dev.WriteByteData(step.cmd, step.value[i]); err != nil {
				return fmt.Errorf("initializing board %s: %w", Board(i), err)
			}
		}
	}
	return nil
}

// State returns a copy of the current state.
func (m *Matrix) State() State {
	return m.state
}

// Sequence returns the keypad sequence of the current attempt. The
// validator clears it through this pointer.
func (m *Matrix) Sequence() *validator.Sequence {
	return &m.seq
}

// Poll runs one tick: it flushes outstanding relay commands, reads both
// boards, advances the state and writes relays and LEDs.
//
// A failed read leaves the state untouched and returns None. A tick also
// fails when a relay or port write does not reach its board, including
// retried relay commands. After FailureThreshold consecutive failed ticks
// both boards are reinitialized, the state is reset and None is returned
// with a *BusError.
func (m *Matrix) Poll() (StateChange, error) {
	flushed := m.flush()

	raw, board, err := m.read()
	if err != nil {
		m.state.MarkFailure(board)
		m.dirty = true
		return None, m.fail(board, err)
	}

	next, out, change := m.state.Next(raw[BoardA], raw[BoardB])
	m.state = next

	if out.CodeChanged {
		m.seq.Append(out.Code)
	}

	ok := m.apply(out.Relays) && flushed
	if !m.writePorts(out.PortA, out.PortB) {
		ok = false
	}

	if ok {
		m.failed = 0
		return change, nil
	}
	m.failed++
	if m.failed >= FailureThreshold {
		// The reset discards the state the change belongs to.
		return None, m.recover(BoardA, errors.New("repeated write failures"))
	}
	return change, nil
}

func (m *Matrix) read() ([2]byte, Board, error) {
	var raw [2]byte
	for i, dev := range m.boards {
		v, err := dev.ReadByteData(bus.GetPorts)
		if err != nil {
			return raw, Board(i), err
		}
		raw[i] = v
	}
	return raw, BoardA, nil
}

func (m *Matrix) fail(board Board, err error) error {
	m.failed++
	m.logger.Debug("board read failed", "board", board.String(), "failures", m.failed, "error", err)
	if m.failed < FailureThreshold {
		return nil
	}
	return m.recover(board, err)
}

// recover reinitializes both boards and resets the state.
func (m *Matrix) recover(board Board, cause error) error {
	busErr := &BusError{
		Board:    board,
		Addr:     m.boards[board].Addr(),
		Failures: m.failed,
		Err:      cause,
	}

	m.reset()
	m.seq.Clear()
	m.failed = 0

	if err := m.initBoards(); err != nil {
		busErr.ReinitErr = err
		m.logger.Error("board reinitialization failed", "board", board.String(), "error", err)
	} else {
		busErr.Recovered = true
		m.logger.Warn("boards reinitialized", "board", board.String(), "failures", busErr.Failures)
	}
	return busErr
}

// apply sends relay commands. Failed commands are queued for the next tick.
// A command that reaches the board supersedes queued ones for its relays.
func (m *Matrix) apply(cmds []RelayCmd) bool {
	ok := true
	for _, cmd := range cmds {
		if err := m.sendRelay(cmd); err != nil {
			m.logger.Warn("relay command failed", "board", cmd.Board.String(), "on", cmd.On, "mask", cmd.Mask, "error", err)
			m.enqueue(cmd)
			ok = false
			continue
		}
		m.supersede(cmd)
	}
	return ok
}

// flush retries the queued relay commands and reports whether all of
// them reached the boards.
func (m *Matrix) flush() bool {
	if len(m.pending) == 0 {
		return true
	}
	cmds := m.pending
	m.pending = nil
	return m.apply(cmds)
}

// enqueue queues cmd behind the commands it does not supersede.
func (m *Matrix) enqueue(cmds ...RelayCmd) {
	for _, cmd := range cmds {
		m.supersede(cmd)
		m.pending = append(m.pending, cmd)
	}
}

// supersede removes the relays of cmd from the queued commands, so an
// older command never overrides a newer one for the same relay.
func (m *Matrix) supersede(cmd RelayCmd) {
	kept := m.pending[:0]
	for _, p := range m.pending {
		if p.Board == cmd.Board {
			p.Mask &^= cmd.Mask
		}
		if p.Mask != 0 {
			kept = append(kept, p)
		}
	}
	m.pending = kept
}

func (m *Matrix) sendRelay(cmd RelayCmd) error {
	op := bus.SetRelaysOff
	if cmd.On {
		op = bus.SetRelaysOn
	}
	return m.boards[cmd.Board].WriteByteData(op, cmd.Mask)
}

// writePorts writes the LED bytes of boards whose output changed, with
// the input nibble cleared.
func (m *Matrix) writePorts(a, b byte) bool {
	ok := true
	for i, v := range [2]byte{a, b} {
		if v == m.written[i] && !m.dirty {
			continue
		}
		if err := m.boards[i].WriteByteData(bus.SetPorts, v&^AllButtons); err != nil {
			m.logger.Debug("port write failed", "board", Board(i).String(), "error", err)
			ok = false
			continue
		}
		m.written[i] = v
	}
	if ok {
		m.dirty = false
	}
	return ok
}

// OpenDoor opens the door. The relay switches on the next Poll.
func (m *Matrix) OpenDoor() {
	m.enqueue(m.state.OpenDoor()...)
}

// ShowWrongInput starts the wrong-input lockout.
func (m *Matrix) ShowWrongInput() {
	m.state.ShowWrongInput()
}

// RingBell rings the bell, see State.RingBell.
func (m *Matrix) RingBell(period, halfPeriods uint32) {
	m.enqueue(m.state.RingBell(period, halfPeriods)...)
}

// RingBellAlarm rings the bell until replaced.
func (m *Matrix) RingBellAlarm(period uint32) {
	m.enqueue(m.state.RingBellAlarm(period)...)
}

// SwitchLights applies a light switch, see State.SwitchLights.
func (m *Matrix) SwitchLights(inside, outside, permanent bool) LightOutcome {
	outcome, cmds := m.state.SwitchLights(inside, outside, permanent)
	m.enqueue(cmds...)
	return outcome
}

// Close switches all relays off and all LEDs dark. It does not close the
// underlying bus.
func (m *Matrix) Close() error {
	var errs []error
	relays := [2]byte{allRelaysA, allRelaysB}
	for i, dev := range m.boards {
		if err := dev.WriteByteData(bus.SetRelaysOff, relays[i]); err != nil {
			errs = append(errs, err)
		}
		if err := dev.WriteByteData(bus.SetPorts, AllButtons); err != nil {
			errs = append(errs, err)
		}
	}
	m.pending = nil
	return errors.Join(errs...)
}
