// Package garage watches the garage switches. The switches act like the
// entrance buttons: they queue light and door commands for the control
// loop, and the gate end position switch reports the gate state.
package garage

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/opensesame/core/internal/infrastructure/config"
	"github.com/opensesame/core/internal/infrastructure/mqtt"
	"github.com/opensesame/core/internal/orchestrator"
)

// PollInterval is how often the lines are read.
const PollInterval = 10 * time.Millisecond

// Input is an input GPIO line. gpio.PinIn satisfies it. Switches pull the
// line low when pressed.
type Input interface {
	Read() gpio.Level
}

// Lines are the five garage inputs.
type Lines struct {
	EntranceTop    Input
	EntranceBottom Input
	GateTop        Input
	GateBottom     Input
	EndPosition    Input
}

// Change is the result of one poll.
type Change int

const (
	NoChange Change = iota
	PressedEntranceTop
	PressedEntranceBottom
	PressedGateTop
	PressedGateBottom
	GateClosed
	GateOpened
)

// DoorPublisher publishes the retained gate state. It is satisfied by
// *mqtt.Client.
type DoorPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger defines the logging interface for the watcher.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// OpenLines initializes the host drivers and configures the pins named in
// cfg as floating inputs.
func OpenLines(cfg config.GarageConfig) (Lines, error) {
	if _, err := host.Init(); err != nil {
		return Lines{}, fmt.Errorf("initializing host drivers: %w", err)
	}

	open := func(name string) (Input, error) {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("garage: gpio pin %q not found", name)
		}
		if err := p.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("configuring %s as input: %w", name, err)
		}
		return p, nil
	}

	var lines Lines
	var err error
	for _, l := range []struct {
		name string
		dst  *Input
	}{
		{cfg.EntranceTop, &lines.EntranceTop},
		{cfg.EntranceBottom, &lines.EntranceBottom},
		{cfg.GateTop, &lines.GateTop},
		{cfg.GateBottom, &lines.GateBottom},
		{cfg.EndPosition, &lines.EndPosition},
	} {
		if *l.dst, err = open(l.name); err != nil {
			return Lines{}, err
		}
	}
	return lines, nil
}

// Watcher detects presses on the garage lines.
type Watcher struct {
	lines  Lines
	logger Logger
	door   DoorPublisher
	topics mqtt.Topics

	// Latched levels: true while the switch is held (line low).
	entranceTop, entranceBottom, gateTop, gateBottom bool
	endPosition                                      bool
}

// New creates a Watcher. door may be nil.
func New(lines Lines, door DoorPublisher, logger Logger) *Watcher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Watcher{lines: lines, door: door, logger: logger}
}

// Poll reads all lines and reports at most one change. The end position
// switch is checked first, then the buttons in wiring order; a change not
// reported now is reported by a later poll.
func (w *Watcher) Poll() Change {
	closed := w.lines.EndPosition.Read() == gpio.Low
	switch {
	case closed && !w.endPosition:
		w.endPosition = true
		return GateClosed
	case !closed && w.endPosition:
		w.endPosition = false
		return GateOpened
	}

	switch {
	case pressEdge(w.lines.EntranceTop, &w.entranceTop):
		return PressedEntranceTop
	case pressEdge(w.lines.EntranceBottom, &w.entranceBottom):
		return PressedEntranceBottom
	case pressEdge(w.lines.GateTop, &w.gateTop):
		return PressedGateTop
	case pressEdge(w.lines.GateBottom, &w.gateBottom):
		return PressedGateBottom
	}
	return NoChange
}

// pressEdge updates the latch of one switch and reports a new press.
func pressEdge(in Input, held *bool) bool {
	low := in.Read() == gpio.Low
	switch {
	case low && !*held:
		*held = true
		return true
	case !low:
		*held = false
	}
	return false
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, commands chan<- orchestrator.Command, notes chan<- orchestrator.Notification) error {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		if err := w.handle(ctx, w.Poll(), commands, notes); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Watcher) handle(ctx context.Context, c Change, commands chan<- orchestrator.Command, notes chan<- orchestrator.Notification) error {
	switch c {
	case PressedEntranceTop:
		return sendCommand(ctx, commands, orchestrator.SwitchLights{Inside: true, Note: "Pressed at entrance top switch. Switch lights in garage"})
	case PressedGateTop:
		return sendCommand(ctx, commands, orchestrator.SwitchLights{Inside: true, Outside: true, Note: "Pressed top switch at garage door. Switch lights in and out garage"})
	case PressedEntranceBottom, PressedGateBottom:
		return sendCommand(ctx, commands, orchestrator.OpenDoor{})
	case GateClosed:
		w.publishDoor("closed")
		return sendNote(ctx, notes, "Garage door closed.")
	case GateOpened:
		w.publishDoor("open")
		return sendNote(ctx, notes, "Garage door open.")
	}
	return nil
}

func (w *Watcher) publishDoor(state string) {
	w.logger.Info("garage gate", "state", state)
	if w.door == nil {
		return
	}
	if err := w.door.Publish(w.topics.Door("garage"), []byte(state), 1, true); err != nil {
		w.logger.Warn("publishing gate state failed", "error", err)
	}
}

func sendCommand(ctx context.Context, commands chan<- orchestrator.Command, cmd orchestrator.Command) error {
	select {
	case commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sendNote(ctx context.Context, notes chan<- orchestrator.Notification, text string) error {
	n := orchestrator.Notification{Category: orchestrator.Chat, Kind: orchestrator.KindGarage, Text: text, At: time.Now()}
	select {
	case notes <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
