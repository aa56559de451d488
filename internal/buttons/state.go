package buttons

import "math"

// Leds holds the "keep on" flags. A LED is lit when its button is pressed
// or its flag is set.
type Leds struct {
	L1, L2, L3, L4 bool
	Light          bool
	Bell           bool
}

// Params are the configured matrix settings.
type Params struct {
	// LightTicks is the base light duration in ticks.
	LightTicks uint32
	// BellEnabled allows RingBell to start the bell.
	BellEnabled bool
}

// State is the complete matrix state between two polls. Its methods never
// touch the bus: Next and the mutators return the relay commands and output
// bytes the caller has to write.
type State struct {
	Params Params

	// Remembered input bits (low nibble) of the last successful read.
	InputA, InputB byte

	Leds Leds

	Door uint32

	Light          uint32
	LightPermanent bool

	BellCounter uint32
	BellTimeout uint32
	BellInit    uint32

	WrongInput uint32

	// Diag lights LED 1 plus LED 2 (board A) or LED 3 (board B) for a
	// while after a failed read.
	Diag     uint32
	DiagMask byte
}

// Output is what one tick asks the shell to do.
type Output struct {
	// PortA and PortB are the LED bytes to write with SetPorts.
	PortA, PortB byte
	Relays       []RelayCmd
	// Code is the new keypad byte to append to the sequence, valid when
	// CodeChanged is set.
	Code        byte
	CodeChanged bool
}

// NewState returns the power-on state.
func NewState(p Params) State {
	return State{
		Params: p,
		InputA: initPortsA & AllButtons,
		InputB: initPortsB & AllButtons,
	}
}

// Next advances the state by one tick given the raw bytes read from both
// boards. Pressed takes precedence over Released, which takes precedence
// over LightsOff; the light timer only advances on ticks without a switch
// event. Bell and door timers are frozen while the wrong-input lockout runs.
func (s State) Next(rawA, rawB byte) (State, Output, StateChange) {
	var out Output

	inA := rawA & AllButtons
	inB := rawB & AllButtons

	if inA != s.InputA {
		out.Code = inA
		out.CodeChanged = true
	}

	change := None
	if p := s.InputB &^ inB; p != 0 {
		change = pressed(p)
	} else if r := inB &^ s.InputB; r != 0 {
		change = released(r)
	} else if s.lightTick(&out) {
		change = StateChange{Kind: LightsOff}
	}

	if s.wrongInputTick() {
		s.bellTick(&out)
		s.doorTick(&out)
	}
	s.diagTick()

	s.InputA, s.InputB = inA, inB
	out.PortA, out.PortB = s.ports()

	return s, out, change
}

// ports computes the LED bytes from the current inputs and flags.
func (s *State) ports() (a, b byte) {
	leds := s.Leds
	if s.Diag > 0 {
		leds.L1 = leds.L1 || s.DiagMask&Led1 != 0
		leds.L2 = leds.L2 || s.DiagMask&Led2 != 0
		leds.L3 = leds.L3 || s.DiagMask&Led3 != 0
	}

	if s.InputA&Button1 == 0 || leds.L1 {
		a |= Led1
	}
	if s.InputA&Button2 == 0 || leds.L2 {
		a |= Led2
	}
	if s.InputA&Button3 == 0 || leds.L3 {
		a |= Led3
	}
	// LED 4 sits on board B.
	if s.InputA&Button4 == 0 || leds.L4 {
		b |= Led4
	}
	if s.InputB&ButtonLight == 0 || leds.Light {
		b |= LedLight
	}
	if s.InputB&ButtonBell == 0 || leds.Bell {
		b |= LedBell
	}
	return a, b
}

// lightTick advances the light phases and reports whether the light went
// off on this tick.
func (s *State) lightTick(out *Output) bool {
	switch {
	case s.LightPermanent || s.Light == 0:
		return false
	case s.Light == s.Params.LightTicks:
		out.Relays = append(out.Relays, RelayCmd{Board: BoardA, On: true, Mask: RelayLightOutside})
	case s.Light == lightOuterOffAt:
		out.Relays = append(out.Relays, RelayCmd{Board: BoardA, On: false, Mask: RelayLightOutside})
	case s.Light == 1:
		out.Relays = append(out.Relays, RelayCmd{Board: BoardB, On: false, Mask: RelayLightInside})
		s.Leds.Light = false
		s.LightPermanent = false
		s.Light = 0
		return true
	}
	s.Light--
	return false
}

// wrongInputTick runs the lockout and reports whether bell and door may
// advance on this tick.
func (s *State) wrongInputTick() bool {
	switch {
	case s.WrongInput == 1:
		s.Leds.Light = false
		s.Leds.L1, s.Leds.L2, s.Leds.L3, s.Leds.L4 = false, false, false, false
		s.WrongInput = 0
		return false
	case s.WrongInput > 1:
		s.WrongInput--
		return false
	}
	return true
}

// bellTick toggles the bell relay each time the period runs out. An odd
// counter switches the bell off, an even one on.
func (s *State) bellTick(out *Output) {
	if s.BellCounter == 0 {
		return
	}
	if s.BellTimeout == 0 {
		s.BellTimeout = s.BellInit
		if s.BellCounter%2 == 0 {
			out.Relays = append(out.Relays, RelayCmd{Board: BoardB, On: true, Mask: RelayBell})
		} else {
			out.Relays = append(out.Relays, RelayCmd{Board: BoardB, On: false, Mask: RelayBell})
			s.Leds.Bell = false
		}
		s.BellCounter--
	}
	if s.BellTimeout > 0 {
		s.BellTimeout--
	}
}

func (s *State) doorTick(out *Output) {
	switch {
	case s.Door == 1:
		out.Relays = append(out.Relays, RelayCmd{Board: BoardA, On: false, Mask: RelayDoor})
		s.Leds.Bell = false
		s.Door = 0
	case s.Door > 1:
		s.Door--
	}
}

func (s *State) diagTick() {
	if s.Diag > 0 {
		s.Diag--
	}
}

// MarkFailure latches the diagnostic LEDs for a failed read of board.
func (s *State) MarkFailure(board Board) {
	s.Diag = diagTicks
	if board == BoardA {
		s.DiagMask |= Led1 | Led2
	} else {
		s.DiagMask |= Led1 | Led3
	}
}

// OpenDoor energizes the door relay for DoorTicks. Calling it again while
// the door is open restarts the full duration.
func (s *State) OpenDoor() []RelayCmd {
	s.Door = DoorTicks
	s.Leds.Bell = true
	return []RelayCmd{{Board: BoardA, On: true, Mask: RelayDoor}}
}

// ShowWrongInput starts the lockout and lights all keypad LEDs and the
// light LED until it expires.
func (s *State) ShowWrongInput() {
	s.WrongInput = WrongInputTicks
	s.Leds.Light = true
	s.Leds.L1, s.Leds.L2, s.Leds.L3, s.Leds.L4 = true, true, true, true
}

// RingBellAlarm rings with the given period until another ring replaces it.
func (s *State) RingBellAlarm(period uint32) []RelayCmd {
	s.Leds.Light = true
	s.BellCounter = BellForever
	s.BellInit = bellPeriod(period)
	s.BellTimeout = s.BellInit
	return []RelayCmd{{Board: BoardB, On: true, Mask: RelayBell}}
}

// RingBell rings halfPeriods on/off pairs after an initial ring. When the
// bell is disabled it does not ring, but still stops a running alarm.
func (s *State) RingBell(period, halfPeriods uint32) []RelayCmd {
	if !s.Params.BellEnabled {
		if s.BellCounter == 0 {
			return nil
		}
		s.BellCounter = 0
		s.BellTimeout = 0
		s.Leds.Bell = false
		return []RelayCmd{{Board: BoardB, On: false, Mask: RelayBell}}
	}

	s.Leds.Bell = true
	if halfPeriods >= (BellForever-1)/2 {
		s.BellCounter = BellForever
	} else {
		s.BellCounter = halfPeriods*2 + 1
	}
	s.BellInit = bellPeriod(period)
	s.BellTimeout = s.BellInit
	return []RelayCmd{{Board: BoardB, On: true, Mask: RelayBell}}
}

func bellPeriod(period uint32) uint32 {
	if period > math.MaxUint32/BellPeriodUnit {
		return math.MaxUint32
	}
	return period * BellPeriodUnit
}

// SwitchLights applies a light switch press. A press while the light is
// permanent cancels it and lets the light go off shortly. A permanent
// request within lightFreshWindow ticks of the last (re)start makes the
// light permanent. Otherwise a running light is extended and a dark one
// switched on. The inside relay is energized for every branch but the
// cancel one when inside is set.
func (s *State) SwitchLights(inside, outside, permanent bool) (LightOutcome, []RelayCmd) {
	outcome := LightOutcome{Inside: inside, Outside: outside}

	start := int64(s.Params.LightTicks) + lightInsideOffset
	if outside {
		start = int64(s.Params.LightTicks) + lightOutsideExtra
	}
	if start < 0 {
		start = 0
	}

	switch {
	case s.LightPermanent:
		s.LightPermanent = false
		s.Light = lightCancelDelay
		outcome.Kind = TurnedOff
		return outcome, nil
	case permanent && int64(s.Light) > start-lightFreshWindow:
		s.LightPermanent = true
		outcome.Kind = MadePermanent
	case s.Light > 1:
		s.Light = uint32(start)
		outcome.Kind = Extended
	default:
		s.Light = uint32(start)
		s.Leds.Light = true
		outcome.Kind = TurnedOn
	}

	if inside {
		return outcome, []RelayCmd{{Board: BoardB, On: true, Mask: RelayLightInside}}
	}
	return outcome, nil
}
