// Package buttons drives the button matrix of the entrance: a keypad, light
// and bell switches, LEDs and four relays spread over two I2C expander
// boards.
//
// The package is split in two layers:
//
//   - State is a plain value. State.Next advances it by one 10 ms tick from
//     the raw input bytes and returns the LED bytes and relay commands to
//     write, plus at most one StateChange. The mutators (OpenDoor, RingBell,
//     SwitchLights, ...) likewise return relay commands instead of writing.
//   - Matrix owns the two bus.Device boards. Poll reads, calls Next and
//     writes, retrying failed relay commands on the next tick and
//     reinitializing both boards after FailureThreshold failed ticks.
//
// Board A holds the keypad (buttons 1-4), LEDs 1-3, the door relay and the
// outside light relay. Board B holds the light and bell inputs, LED 4, the
// light and bell LEDs, the bell relay and the inside light relay. Inputs
// are active low.
package buttons
