package buttons

import "math"

// Board identifies one of the two expander boards.
type Board uint8

const (
	// BoardA carries the four keypad buttons, LEDs 1-3, the door relay and
	// the outside light relay.
	BoardA Board = iota
	// BoardB carries the light and bell switches, LED 4, the light and bell
	// LEDs, the bell relay and the inside light relay.
	BoardB
)

func (b Board) String() string {
	if b == BoardA {
		return "A"
	}
	return "B"
}

// Board A bits.
const (
	Button1    byte = 1 << 0
	Button2    byte = 1 << 1
	Button3    byte = 1 << 2
	Button4    byte = 1 << 3
	AllButtons      = Button1 | Button2 | Button3 | Button4

	Led1 byte = 1 << 4
	Led2 byte = 1 << 5
	Led3 byte = 1 << 6

	RelayDoor         byte = 0x01
	RelayLightOutside byte = 0x02
	allRelaysA             = RelayDoor | RelayLightOutside

	initPortsA byte = 15
)

// Board B bits. Inputs share the low nibble with board A's layout.
const (
	ButtonLight   byte = 0x01
	TasterOutside      = ButtonLight
	ButtonBell    byte = 0x02
	TasterInside  byte = 0x04
	TasterBell    byte = 0x08

	Led4     byte = 1 << 4
	LedLight byte = 1 << 5
	LedBell  byte = 1 << 6

	RelayBell         byte = 0x01
	RelayLightInside  byte = 0x02
	allRelaysB             = RelayBell | RelayLightInside

	initPortsB byte = 0b01100000
)

// Timing, in 10 ms ticks.
const (
	DoorTicks        uint32 = 150
	WrongInputTicks  uint32 = 150
	BellPeriodUnit   uint32 = 20
	FailureThreshold        = 20

	// BellForever keeps the bell toggling until another ring replaces it.
	BellForever uint32 = math.MaxUint32

	diagTicks uint32 = 150
)

// Light timer constants. A fresh outside switch starts the timer
// lightOutsideExtra ticks above the base so it passes the base value, which
// is when the outside relay switches on; an inside-only switch starts below
// the base and never lights the outside. The outside relay goes off once
// the timer reaches lightOuterOffAt, the inside relay at 1.
const (
	lightOutsideExtra = 10
	lightInsideOffset = -1
	lightOuterOffAt   = 10
	lightCancelDelay  = 30
	lightFreshWindow  = 200
)
