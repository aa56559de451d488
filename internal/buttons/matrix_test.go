package buttons

import (
	"errors"
	"testing"

	"github.com/opensesame/core/internal/bus"
	"github.com/opensesame/core/internal/bus/bustest"
	"github.com/opensesame/core/internal/validator"
)

func newTestMatrix(t *testing.T, bell bool) (*Matrix, *bustest.Device, *bustest.Device) {
	t.Helper()
	a := bustest.NewDevice(0x20)
	b := bustest.NewDevice(0x21)
	m, err := New(a, b, Options{LightTimeoutTicks: 300, BellEnabled: bell})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	// The first poll resyncs the remembered inputs.
	if _, err := m.Poll(); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	return m, a, b
}

func poll(t *testing.T, m *Matrix, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := m.Poll(); err != nil {
			t.Fatalf("Poll() %d error = %v", i, err)
		}
	}
}

func TestNew_InitializesBoards(t *testing.T) {
	a := bustest.NewDevice(0x20)
	b := bustest.NewDevice(0x21)
	if _, err := New(a, b, Options{LightTimeoutTicks: 300}); err != nil {
		t.Fatalf("New() error = %v", err)
	}

	want := []bustest.Write{
		{Cmd: bus.SetTris, Value: AllButtons},
		{Cmd: bus.SetPullups, Value: AllButtons},
		{Cmd: bus.SetRelaysOff, Value: RelayDoor | RelayLightOutside},
		{Cmd: bus.SetPorts, Value: AllButtons},
	}
	if len(a.Writes) != len(want) {
		t.Fatalf("board A writes = %+v, want %+v", a.Writes, want)
	}
	for i := range want {
		if a.Writes[i] != want[i] {
			t.Errorf("board A write %d = %+v, want %+v", i, a.Writes[i], want[i])
		}
	}
	if got := b.WritesOf(bus.SetRelaysOff); len(got) != 1 || got[0].Value != RelayBell|RelayLightInside {
		t.Errorf("board B relays off = %+v", got)
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(nil, bustest.NewDevice(0x21), Options{}); err == nil {
		t.Error("New() with missing board succeeded")
	}

	a := bustest.NewDevice(0x20)
	a.FailWrites(1)
	if _, err := New(a, bustest.NewDevice(0x21), Options{}); !errors.Is(err, bustest.ErrInjected) {
		t.Errorf("New() error = %v, want injected failure", err)
	}
}

func TestPoll_BellButton(t *testing.T) {
	m, _, b := newTestMatrix(t, true)

	b.SetInputs(0xff &^ ButtonBell)
	change, err := m.Poll()
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if change != pressed(ButtonBell) {
		t.Errorf("change = %v, want pressed(ButtonBell)", change)
	}
	if b.PortBits()&LedBell == 0 {
		t.Error("bell LED not lit while pressed")
	}

	b.SetInputs(0xff)
	if change, _ := m.Poll(); change != released(ButtonBell) {
		t.Errorf("change = %v, want released(ButtonBell)", change)
	}
	if b.PortBits()&LedBell != 0 {
		t.Error("bell LED still lit after release")
	}
}

func TestPoll_KeypadSequence(t *testing.T) {
	m, a, _ := newTestMatrix(t, true)

	a.SetInputs(0xfe)
	poll(t, m, 3)
	a.SetInputs(0xff)
	poll(t, m, 1)
	a.SetInputs(0xfd)
	poll(t, m, 1)

	want := validator.Sequence{0x0e, 0x0f, 0x0d}
	if got := *m.Sequence(); !got.Equal(want) {
		t.Errorf("Sequence() = %v, want %v", got, want)
	}
}

func TestMatrix_OpenDoor(t *testing.T) {
	m, a, _ := newTestMatrix(t, true)

	m.OpenDoor()
	if a.RelayOn(RelayDoor) {
		t.Fatal("door relay switched before the next poll")
	}
	poll(t, m, 1)
	if !a.RelayOn(RelayDoor) {
		t.Fatal("door relay not on")
	}

	poll(t, m, int(DoorTicks))
	if a.RelayOn(RelayDoor) {
		t.Error("door relay still on after DoorTicks")
	}
}

func TestMatrix_RelayRetry(t *testing.T) {
	m, a, _ := newTestMatrix(t, true)

	m.OpenDoor()
	a.FailWrites(1)
	poll(t, m, 1)
	if a.RelayOn(RelayDoor) {
		t.Fatal("relay on although the write failed")
	}

	poll(t, m, 1)
	if !a.RelayOn(RelayDoor) {
		t.Error("failed relay command not retried")
	}
}

func TestPoll_BusFailureRecovers(t *testing.T) {
	m, a, _ := newTestMatrix(t, true)
	m.OpenDoor()
	poll(t, m, 1)
	a.ResetWrites()

	a.FailReads(-1)
	for i := 1; i < FailureThreshold; i++ {
		change, err := m.Poll()
		if err != nil || change != None {
			t.Fatalf("poll %d: change = %v err = %v", i, change, err)
		}
	}

	_, err := m.Poll()
	var busErr *BusError
	if !errors.As(err, &busErr) {
		t.Fatalf("Poll() error = %v, want *BusError", err)
	}
	if !busErr.Recovered || busErr.Board != BoardA || busErr.Addr != 0x20 || busErr.Failures != FailureThreshold {
		t.Errorf("BusError = %+v", busErr)
	}
	if !errors.Is(err, bustest.ErrInjected) {
		t.Error("BusError does not wrap the read failure")
	}

	if got := a.WritesOf(bus.SetTris); len(got) != 1 {
		t.Errorf("board A reinit writes = %+v, want one SetTris", got)
	}
	if a.RelayOn(RelayDoor) {
		t.Error("door relay still on after reinitialization")
	}
	if m.State().Door != 0 {
		t.Errorf("state not reset: door = %d", m.State().Door)
	}

	a.FailReads(0)
	if _, err := m.Poll(); err != nil {
		t.Errorf("Poll() after recovery error = %v", err)
	}
}

func TestPoll_ReinitFailure(t *testing.T) {
	m, _, b := newTestMatrix(t, true)

	b.FailReads(-1)
	b.FailWrites(-1)
	var err error
	for i := 0; i < FailureThreshold; i++ {
		_, err = m.Poll()
	}

	var busErr *BusError
	if !errors.As(err, &busErr) {
		t.Fatalf("Poll() error = %v, want *BusError", err)
	}
	if busErr.Recovered || busErr.ReinitErr == nil || busErr.Board != BoardB {
		t.Errorf("BusError = %+v", busErr)
	}
}

func TestPoll_ShortFailureResets(t *testing.T) {
	m, a, _ := newTestMatrix(t, true)

	for round := 0; round < 3; round++ {
		a.FailReads(FailureThreshold - 1)
		poll(t, m, FailureThreshold-1)
		poll(t, m, 1)
	}
}

func TestMatrix_Close(t *testing.T) {
	m, a, b := newTestMatrix(t, true)
	m.OpenDoor()
	m.RingBell(2, 5)
	poll(t, m, 1)

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if a.RelayOn(RelayDoor) || b.RelayOn(RelayBell) {
		t.Error("relays still on after Close")
	}
	if a.PortBits() != AllButtons || b.PortBits() != AllButtons {
		t.Errorf("ports = %#02x %#02x after Close", a.PortBits(), b.PortBits())
	}

	b.FailWrites(-1)
	if err := m.Close(); !errors.Is(err, bustest.ErrInjected) {
		t.Errorf("Close() error = %v, want injected failure", err)
	}
}

// relayOnFailer fails SetRelaysOn writes while fail is non-zero. A negative
// fail fails all of them.
type relayOnFailer struct {
	*bustest.Device
	fail int
}

func (d *relayOnFailer) WriteByteData(cmd, value byte) error {
	if cmd == bus.SetRelaysOn && d.fail != 0 {
		if d.fail > 0 {
			d.fail--
		}
		return &bus.IOError{Addr: d.Addr(), Op: "write", Cmd: cmd, Err: bustest.ErrInjected}
	}
	return d.Device.WriteByteData(cmd, value)
}

func TestMatrix_FailingDoorRelayNeverStaysOn(t *testing.T) {
	a := &relayOnFailer{Device: bustest.NewDevice(0x20)}
	m, err := New(a, bustest.NewDevice(0x21), Options{LightTimeoutTicks: 300, BellEnabled: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	poll(t, m, 1)

	a.fail = -1
	m.OpenDoor()
	resets := 0
	for i := 0; i < int(DoorTicks)+5; i++ {
		change, err := m.Poll()
		var busErr *BusError
		if errors.As(err, &busErr) {
			resets++
			if change != None {
				t.Errorf("change = %v with bus reset, want None", change)
			}
		} else if err != nil {
			t.Fatalf("Poll() error = %v", err)
		}
	}
	if resets == 0 {
		t.Error("failing relay writes never reset the boards")
	}

	a.fail = 0
	poll(t, m, 1000)
	if a.RelayOn(RelayDoor) {
		t.Error("door relay energized without a running door timer")
	}
	if m.State().Door != 0 || len(m.pending) != 0 {
		t.Errorf("door = %d, pending = %+v", m.State().Door, m.pending)
	}
}

func TestMatrix_NewerRelayCommandSupersedesQueued(t *testing.T) {
	b := &relayOnFailer{Device: bustest.NewDevice(0x21), fail: 1}
	m, err := New(bustest.NewDevice(0x20), b, Options{LightTimeoutTicks: 300})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	poll(t, m, 1)

	m.RingBellAlarm(20)
	poll(t, m, 1)
	if len(m.pending) != 1 || !m.pending[0].On {
		t.Fatalf("pending = %+v, want the failed bell on", m.pending)
	}

	// Bell disabled: the ring only cancels the alarm.
	m.RingBell(1, 0)
	poll(t, m, 5)

	if got := b.WritesOf(bus.SetRelaysOn); len(got) != 0 {
		t.Errorf("bell relay switched on after the cancel: %+v", got)
	}
	if b.RelayOn(RelayBell) || len(m.pending) != 0 {
		t.Errorf("bell on = %v, pending = %+v", b.RelayOn(RelayBell), m.pending)
	}
}

func TestPoll_WritesPortsOnlyOnChange(t *testing.T) {
	m, a, b := newTestMatrix(t, true)
	a.ResetWrites()
	b.ResetWrites()

	poll(t, m, 50)
	if n := len(a.WritesOf(bus.SetPorts)) + len(b.WritesOf(bus.SetPorts)); n != 0 {
		t.Fatalf("idle polls wrote ports %d times", n)
	}

	b.SetInputs(0xff &^ ButtonBell)
	poll(t, m, 1)
	got := b.WritesOf(bus.SetPorts)
	if len(got) != 1 || got[0].Value != LedBell {
		t.Errorf("board B port writes = %+v, want one write of LedBell", got)
	}
	if n := len(a.WritesOf(bus.SetPorts)); n != 0 {
		t.Errorf("board A port writes = %d, want 0", n)
	}

	poll(t, m, 10)
	if n := len(b.WritesOf(bus.SetPorts)); n != 1 {
		t.Errorf("held button wrote board B ports %d times, want 1", n)
	}

	a.SetInputs(0xff &^ Button1)
	poll(t, m, 1)
	got = a.WritesOf(bus.SetPorts)
	if len(got) != 1 || got[0].Value != Led1 {
		t.Errorf("board A port writes = %+v, want one write of Led1", got)
	}
	if n := len(b.WritesOf(bus.SetPorts)); n != 1 {
		t.Errorf("board B port writes = %d after keypad press, want 1", n)
	}
}

func TestPoll_WriteFailureResetReportsNoChange(t *testing.T) {
	m, _, b := newTestMatrix(t, true)

	b.FailWrites(-1)
	b.SetInputs(0xff &^ ButtonBell)
	poll(t, m, FailureThreshold-1)

	b.SetInputs(0xff &^ ButtonBell &^ TasterInside)
	change, err := m.Poll()
	var busErr *BusError
	if !errors.As(err, &busErr) {
		t.Fatalf("Poll() error = %v, want *BusError", err)
	}
	if change != None {
		t.Errorf("change = %v, want None with the reset", change)
	}
}
