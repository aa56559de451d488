// Package validator recognizes door codes typed on the keypad.
//
// The button matrix records every change of the keypad byte into a Sequence.
// Once per control-loop tick the Validator looks at that sequence and either
// leaves it alone, matches it against the user table, or discards it because
// it grew too long or went stale.
//
// This is a convenience PIN matcher, not an authentication system.
package validator
