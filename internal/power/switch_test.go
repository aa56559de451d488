package power

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/gpio"
)

type fakeLine struct {
	levels []gpio.Level
	err    error
}

func (l *fakeLine) Out(level gpio.Level) error {
	if l.err != nil {
		return l.err
	}
	l.levels = append(l.levels, level)
	return nil
}

func TestSwitch_Cycle(t *testing.T) {
	line := &fakeLine{}
	s, err := New(line)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !s.On() {
		t.Fatal("supply off after New")
	}

	steps := []bool{false, false, true, true}
	for _, on := range steps {
		if err := s.Switch(on); err != nil {
			t.Fatalf("Switch(%v) error = %v", on, err)
		}
	}

	want := []gpio.Level{gpio.High, gpio.Low, gpio.High}
	if len(line.levels) != len(want) {
		t.Fatalf("levels = %v, want %v", line.levels, want)
	}
	for i := range want {
		if line.levels[i] != want[i] {
			t.Errorf("level %d = %v, want %v", i, line.levels[i], want[i])
		}
	}

	if err := s.Close(); err != nil || s.On() {
		t.Errorf("Close() error = %v, on = %v", err, s.On())
	}
}

func TestSwitch_Errors(t *testing.T) {
	if _, err := New(&fakeLine{err: errors.New("busy")}); err == nil {
		t.Error("New() succeeded with a failing line")
	}

	line := &fakeLine{}
	s, _ := New(line)
	line.err = errors.New("busy")
	if err := s.Switch(false); err == nil {
		t.Fatal("Switch() succeeded with a failing line")
	}
	if !s.On() {
		t.Error("state changed although the write failed")
	}
}
