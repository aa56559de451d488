package bus

import (
	"bytes"
	"errors"
	"testing"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

type tx struct {
	addr uint16
	w    []byte
}

// recordingBus is an i2c.Bus that records writes and answers reads.
type recordingBus struct {
	txs   []tx
	reply byte
	err   error
}

func (b *recordingBus) String() string                  { return "recording" }
func (b *recordingBus) SetSpeed(physic.Frequency) error { return nil }

func (b *recordingBus) Tx(addr uint16, w, r []byte) error {
	b.txs = append(b.txs, tx{addr: addr, w: append([]byte(nil), w...)})
	if b.err != nil {
		return b.err
	}
	for i := range r {
		r[i] = b.reply
	}
	return nil
}

func TestDevice_WriteByteData(t *testing.T) {
	b := &recordingBus{}
	d := NewDevice(b, 0x21)

	if err := d.WriteByteData(SetRelaysOn, 0x03); err != nil {
		t.Fatalf("WriteByteData() error = %v", err)
	}

	if len(b.txs) != 1 {
		t.Fatalf("got %d transactions, want 1", len(b.txs))
	}
	if b.txs[0].addr != 0x21 || !bytes.Equal(b.txs[0].w, []byte{0x41, 0x03}) {
		t.Errorf("tx = %#v, want addr 0x21 w [0x41 0x03]", b.txs[0])
	}
	if d.Addr() != 0x21 {
		t.Errorf("Addr() = %#x", d.Addr())
	}
}

func TestDevice_ReadByteData(t *testing.T) {
	b := &recordingBus{reply: 0x6e}
	d := NewDevice(b, 0x20)

	v, err := d.ReadByteData(GetPorts)
	if err != nil {
		t.Fatalf("ReadByteData() error = %v", err)
	}
	if v != 0x6e {
		t.Errorf("ReadByteData() = %#x, want 0x6e", v)
	}
	if !bytes.Equal(b.txs[0].w, []byte{GetPorts}) {
		t.Errorf("write part = %v, want [GetPorts]", b.txs[0].w)
	}
}

func TestDevice_ErrorsAreTyped(t *testing.T) {
	cause := errors.New("nack")
	d := NewDevice(&recordingBus{err: cause}, 0x20)

	_, err := d.ReadByteData(GetPorts)
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("error %v is not *IOError", err)
	}
	if ioErr.Addr != 0x20 || ioErr.Op != "read" || ioErr.Cmd != GetPorts {
		t.Errorf("IOError = %+v", ioErr)
	}
	if !errors.Is(err, cause) {
		t.Error("IOError does not unwrap to the cause")
	}

	err = d.WriteByteData(SetPorts, 0)
	if !errors.As(err, &ioErr) || ioErr.Op != "write" {
		t.Errorf("write error = %v", err)
	}
}

type closingBus struct {
	recordingBus
	closes int
}

func (b *closingBus) Close() error {
	b.closes++
	return nil
}

func TestBus_CloseFailsDevices(t *testing.T) {
	cb := &closingBus{}
	b := &Bus{closer: cb}
	b.devices = []Device{&i2cDevice{dev: &i2c.Dev{Bus: cb, Addr: 0x20}, closed: &b.closed}}

	d := b.Devices()[0]
	if _, err := d.ReadByteData(GetPorts); err != nil {
		t.Fatalf("ReadByteData() before Close error = %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if cb.closes != 1 {
		t.Errorf("underlying bus closed %d times, want 1", cb.closes)
	}

	if err := d.WriteByteData(SetPorts, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("WriteByteData() after Close error = %v, want ErrClosed", err)
	}
	if len(cb.txs) != 1 {
		t.Errorf("got %d transactions, want 1", len(cb.txs))
	}
}
