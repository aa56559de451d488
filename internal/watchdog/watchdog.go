// Package watchdog keeps the hardware watchdog from rebooting the system
// while the controller is alive.
package watchdog

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// keepalive is the byte written on every interval. Any byte other than
// the magic close character 'V' works.
var keepalive = []byte("a")

// Open opens the watchdog device for writing.
func Open(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("opening watchdog: %w", err)
	}
	return f, nil
}

// Feed writes to w every interval until ctx is cancelled or a write fails.
// The device stays armed on return.
func Feed(ctx context.Context, w io.Writer, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("watchdog: interval must be positive, got %v", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.Write(keepalive); err != nil {
			return fmt.Errorf("writing watchdog: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
