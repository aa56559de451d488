package callerid

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/opensesame/core/internal/infrastructure/config"
	"github.com/opensesame/core/internal/orchestrator"
)

// ErrNoNumbers is returned when no authorized number is configured.
var ErrNoNumbers = errors.New("callerid: no authorized numbers configured")

const (
	enableCommand = "AT+CLIP=1\r"
	hangupCommand = "ATH\r"
	clipPrefix    = "+CLIP:"
)

// Logger defines the logging interface for the listener.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Listener reads modem output and reacts to identified calls.
type Listener struct {
	port    io.ReadWriter
	numbers map[string]bool
	logger  Logger
}

// Open opens the modem serial port described by cfg. The caller closes
// the returned port after the listener stopped.
func Open(cfg config.CallerIDConfig) (serial.Port, error) {
	mode := &serial.Mode{BaudRate: cfg.BaudRate}
	port, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("opening modem %s: %w", cfg.Device, err)
	}
	return port, nil
}

// New creates a Listener on port for the given numbers.
func New(port io.ReadWriter, numbers []string, logger Logger) (*Listener, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	set := make(map[string]bool, len(numbers))
	for _, n := range numbers {
		if n = normalize(n); n != "" {
			set[n] = true
		}
	}
	if len(set) == 0 {
		return nil, ErrNoNumbers
	}
	return &Listener{port: port, numbers: set, logger: logger}, nil
}

// Run enables caller identification and processes modem lines until the
// port fails or ctx is cancelled. Cancelling ctx does not interrupt a
// blocked read: close the port to stop a listener waiting for input.
func (l *Listener) Run(ctx context.Context, commands chan<- orchestrator.Command, notes chan<- orchestrator.Notification) error {
	if _, err := io.WriteString(l.port, enableCommand); err != nil {
		return fmt.Errorf("enabling caller id: %w", err)
	}
	l.logger.Info("caller id listener started", "numbers", len(l.numbers))

	reader := bufio.NewReader(l.port)
	for {
		line, err := reader.ReadString('\n')
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if line = strings.TrimSpace(line); line != "" {
			if herr := l.handle(ctx, line, commands, notes); herr != nil {
				return herr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("modem closed: %w", err)
			}
			return fmt.Errorf("reading modem: %w", err)
		}
	}
}

func (l *Listener) handle(ctx context.Context, line string, commands chan<- orchestrator.Command, notes chan<- orchestrator.Notification) error {
	number, ok := ParseCLIP(line)
	if !ok {
		return nil
	}

	if l.numbers[normalize(number)] {
		l.logger.Info("authorized caller", "number", number)
		select {
		case commands <- orchestrator.OpenDoor{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		n := orchestrator.Notification{
			Category: orchestrator.Chat,
			Kind:     orchestrator.KindRemoteCommand,
			User:     number,
			Text:     fmt.Sprintf("Opened for call from %s.", number),
			At:       time.Now(),
		}
		select {
		case notes <- n:
		case <-ctx.Done():
			return ctx.Err()
		}
	} else {
		l.logger.Warn("ignoring call", "number", number)
	}

	if _, err := io.WriteString(l.port, hangupCommand); err != nil {
		return fmt.Errorf("hanging up: %w", err)
	}
	return nil
}

// ParseCLIP extracts the calling number from a +CLIP line. It reports
// false for other lines and for calls without a number.
func ParseCLIP(line string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), clipPrefix)
	if !ok {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, `"`) {
		return "", false
	}
	number, _, ok := strings.Cut(rest[1:], `"`)
	if !ok || number == "" {
		return "", false
	}
	return number, true
}

// normalize drops spaces and dashes from a configured number.
func normalize(number string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, strings.TrimSpace(number))
}
