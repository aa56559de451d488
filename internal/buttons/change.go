package buttons

import "fmt"

// ChangeKind tags a StateChange.
type ChangeKind uint8

const (
	NoChange ChangeKind = iota
	Pressed
	Released
	LightsOff
)

// StateChange is the event produced by one poll. Code holds the board B
// input bits that were pressed or released.
type StateChange struct {
	Kind ChangeKind
	Code byte
}

// None is the StateChange of a quiet tick.
var None = StateChange{}

func pressed(code byte) StateChange  { return StateChange{Kind: Pressed, Code: code} }
func released(code byte) StateChange { return StateChange{Kind: Released, Code: code} }

func (c StateChange) String() string {
	switch c.Kind {
	case NoChange:
		return "none"
	case Pressed:
		return fmt.Sprintf("pressed(%#02x)", c.Code)
	case Released:
		return fmt.Sprintf("released(%#02x)", c.Code)
	case LightsOff:
		return "lights_off"
	default:
		return fmt.Sprintf("change(%d)", c.Kind)
	}
}

// LightKind tags the branch SwitchLights took.
type LightKind uint8

const (
	TurnedOff LightKind = iota
	MadePermanent
	Extended
	TurnedOn
)

// LightOutcome describes what SwitchLights did.
type LightOutcome struct {
	Kind    LightKind
	Inside  bool
	Outside bool
}

func (o LightOutcome) side() string {
	switch {
	case o.Inside && o.Outside:
		return "inside and outside"
	case o.Inside:
		return "inside"
	default:
		return "outside"
	}
}

// String renders the outcome for notifications.
func (o LightOutcome) String() string {
	switch o.Kind {
	case TurnedOff:
		return "Light not permanent anymore"
	case MadePermanent:
		return fmt.Sprintf("Light %s now permanently on", o.side())
	case Extended:
		return fmt.Sprintf("Light %s time extended", o.side())
	default:
		return fmt.Sprintf("Light %s switched on", o.side())
	}
}

// RelayCmd energizes or de-energizes the relays in Mask on one board.
type RelayCmd struct {
	Board Board
	On    bool
	Mask  byte
}
