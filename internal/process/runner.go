package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// DefaultGracefulTimeout is how long a stopped program may take to exit
// after SIGTERM.
const DefaultGracefulTimeout = 2 * time.Second

// Config describes a program to run.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the executable, looked up in PATH if it has no slash.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format).
	// If nil, inherits from parent process.
	Env []string

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration
}

// Logger defines the logging interface for the runner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Run starts the program and waits for it to exit. If ctx is cancelled
// first, the process group is stopped and ctx.Err() is returned.
func Run(ctx context.Context, cfg Config, logger Logger) error {
	if logger == nil {
		logger = noopLogger{}
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = DefaultGracefulTimeout
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cmd := exec.Command(cfg.Binary, cfg.Args...) //nolint:gosec // binary comes from the config file

	// Own process group so players that fork are stopped as a whole.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if cfg.Env != nil {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}
	out := &lineLogger{logger: logger, name: cfg.Name}
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = cfg.GracefulTimeout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", cfg.Name, err)
	}
	pid := cmd.Process.Pid
	logger.Debug("process started", "name", cfg.Name, "pid", pid)

	exitCh := make(chan error, 1)
	go func() {
		exitCh <- cmd.Wait()
	}()

	select {
	case err := <-exitCh:
		out.flush()
		if err != nil {
			return fmt.Errorf("%s exited: %w", cfg.Name, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Debug("stopping process", "name", cfg.Name, "pid", pid)
	signalGroup(logger, cfg.Name, pid, syscall.SIGTERM)

	select {
	case <-exitCh:
	case <-time.After(cfg.GracefulTimeout):
		logger.Warn("graceful stop timeout, sending SIGKILL", "name", cfg.Name, "timeout", cfg.GracefulTimeout)
		signalGroup(logger, cfg.Name, pid, syscall.SIGKILL)
		<-exitCh
	}
	out.flush()
	return ctx.Err()
}

// signalGroup signals the process group led by pid.
func signalGroup(logger Logger, name string, pid int, sig syscall.Signal) {
	if err := syscall.Kill(-pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		logger.Warn("signalling process group failed", "name", name, "signal", sig.String(), "error", err)
	}
}

// lineLogger logs program output one line at a time.
type lineLogger struct {
	mu     sync.Mutex
	logger Logger
	name   string
	buf    bytes.Buffer
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf.Write(p)
	for {
		line, err := l.buf.ReadString('\n')
		if err != nil {
			// Incomplete line, keep it for the next write.
			l.buf.Reset()
			l.buf.WriteString(line)
			return len(p), nil
		}
		l.log(line[:len(line)-1])
	}
}

func (l *lineLogger) flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.buf.Len() > 0 {
		l.log(l.buf.String())
		l.buf.Reset()
	}
}

func (l *lineLogger) log(line string) {
	if line == "" {
		return
	}
	l.logger.Debug("process output", "name", l.name, "output", line)
}
