// Package process runs short-lived helper programs (the audio player) in
// their own process group.
//
// Run blocks until the program exits. Cancelling the context stops the
// whole group: SIGTERM first, SIGKILL once GracefulTimeout has passed.
// Output of the program is logged line by line at debug level.
//
// Example usage:
//
//	err := process.Run(ctx, process.Config{
//	    Name:   "bell",
//	    Binary: "ogg123",
//	    Args:   []string{"--quiet", "/usr/share/sounds/bell.ogg"},
//	}, logger)
package process
