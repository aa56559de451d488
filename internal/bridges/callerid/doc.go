// Package callerid opens the door for calls from authorized numbers.
//
// A GSM modem on a serial line reports the calling number once caller
// identification is enabled with AT+CLIP=1. Each ring produces a line like
//
//	+CLIP: "+4366012345678",145,,,,0
//
// The listener compares the quoted number with the configured list, queues
// an OpenDoor command for a match and hangs up every identified call.
//
// The modem is opened with go.bug.st/serial. Listener works on any
// io.ReadWriter so it can be driven by a pipe in tests.
package callerid
