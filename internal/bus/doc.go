// Package bus exposes byte-register access to the I/O-expander boards.
//
// Each board is an 8-bit device on a shared I2C bus that understands a small
// command set (see the Set*/Get* constants). Device is the abstraction the
// button matrix is written against; Open returns periph.io backed devices for
// real hardware and package bustest provides an in-memory fake.
//
// Devices on one bus must be accessed sequentially from a single goroutine.
package bus
