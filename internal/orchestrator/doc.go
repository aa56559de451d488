// Package orchestrator runs the 10 ms control loop of the entrance.
//
// Each tick applies at most one queued Command, polls the button matrix,
// reacts to presses (bell, light switches) and feeds the keypad sequence to
// the validator. Outcomes leave the loop as Notification values on a
// channel consumed by the notification dispatcher, and as AudioEvent values
// for the audio player.
//
// The loop is the only owner of the matrix and the validator. Other tasks
// (MQTT command ingress, garage switches, caller ID, signal handlers) reach
// the hardware by sending commands.
package orchestrator
