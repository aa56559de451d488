package orchestrator

import (
	"encoding/json"
	"fmt"
)

// Command is a request from another task to act on the matrix. The
// concrete types are OpenDoor, RingBell, RingBellAlarm and SwitchLights.
type Command interface {
	command()
}

// OpenDoor energizes the door relay.
type OpenDoor struct{}

// RingBell rings HalfPeriods on/off pairs of Period × 200 ms.
type RingBell struct {
	Period      uint32
	HalfPeriods uint32
}

// RingBellAlarm rings until another ring replaces it.
type RingBellAlarm struct {
	Period uint32
}

// SwitchLights switches the light. Note is prepended to the light
// notification.
type SwitchLights struct {
	Inside    bool
	Outside   bool
	Permanent bool
	Note      string
}

func (OpenDoor) command()      {}
func (RingBell) command()      {}
func (RingBellAlarm) command() {}
func (SwitchLights) command()  {}

// Wire names of the commands.
const (
	CommandOpenDoor      = "open_door"
	CommandRingBell      = "ring_bell"
	CommandRingBellAlarm = "ring_bell_alarm"
	CommandSwitchLights  = "switch_lights"
)

// commandMessage is the JSON form of a Command.
type commandMessage struct {
	Command     string `json:"command"`
	Period      uint32 `json:"period,omitempty"`
	HalfPeriods uint32 `json:"half_periods,omitempty"`
	Inside      bool   `json:"inside,omitempty"`
	Outside     bool   `json:"outside,omitempty"`
	Permanent   bool   `json:"permanent,omitempty"`
	Note        string `json:"note,omitempty"`
}

// DecodeCommand parses a JSON command such as
//
//	{"command": "ring_bell", "period": 2, "half_periods": 5}
func DecodeCommand(payload []byte) (Command, error) {
	var msg commandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}

	switch msg.Command {
	case CommandOpenDoor:
		return OpenDoor{}, nil
	case CommandRingBell:
		if msg.Period == 0 {
			return nil, fmt.Errorf("%w: ring_bell needs a period", ErrInvalidCommand)
		}
		return RingBell{Period: msg.Period, HalfPeriods: msg.HalfPeriods}, nil
	case CommandRingBellAlarm:
		if msg.Period == 0 {
			return nil, fmt.Errorf("%w: ring_bell_alarm needs a period", ErrInvalidCommand)
		}
		return RingBellAlarm{Period: msg.Period}, nil
	case CommandSwitchLights:
		cmd := SwitchLights{Inside: msg.Inside, Outside: msg.Outside, Permanent: msg.Permanent, Note: msg.Note}
		if err := cmd.validate(); err != nil {
			return nil, err
		}
		return cmd, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, msg.Command)
	}
}

func (c SwitchLights) validate() error {
	if !c.Inside && !c.Outside {
		return fmt.Errorf("%w: switch_lights needs inside or outside", ErrInvalidCommand)
	}
	return nil
}
