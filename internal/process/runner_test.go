package process

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Debug(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := 0; i+1 < len(args); i += 2 {
		if args[i] == "output" {
			l.lines = append(l.lines, fmt.Sprint(args[i+1]))
		}
	}
}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Warn(string, ...any)  {}
func (l *recordingLogger) Error(string, ...any) {}

func TestRun_Success(t *testing.T) {
	logger := &recordingLogger{}
	err := Run(context.Background(), Config{Name: "echo", Binary: "sh", Args: []string{"-c", "echo one; printf two"}}, logger)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.lines) != 2 || logger.lines[0] != "one" || logger.lines[1] != "two" {
		t.Errorf("logged output = %q, want [one two]", logger.lines)
	}
}

func TestRun_ExitError(t *testing.T) {
	err := Run(context.Background(), Config{Name: "false", Binary: "sh", Args: []string{"-c", "exit 3"}}, nil)
	if err == nil {
		t.Fatal("Run() succeeded for a failing program")
	}
}

func TestRun_MissingBinary(t *testing.T) {
	err := Run(context.Background(), Config{Name: "missing", Binary: "/nonexistent/player"}, nil)
	if err == nil {
		t.Fatal("Run() succeeded for a missing binary")
	}
}

func TestRun_CancelStopsGroup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		// The shell forks a child sleep; both must go.
		done <- Run(ctx, Config{Name: "sleep", Binary: "sh", Args: []string{"-c", "sleep 30; true"}, GracefulTimeout: time.Second}, nil)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestRun_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Run(ctx, Config{Name: "x", Binary: "true"}, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
