package orchestrator

import "errors"

var (
	// ErrChannelClosed is returned by Run when the command channel is closed.
	ErrChannelClosed = errors.New("orchestrator: command channel closed")

	// ErrUnknownCommand is returned for a command name that is not supported.
	ErrUnknownCommand = errors.New("orchestrator: unknown command")

	// ErrInvalidCommand is returned for a malformed command.
	ErrInvalidCommand = errors.New("orchestrator: invalid command")
)
