// Package audio plays the bell and fire alarm clips. A new event cancels
// the clip that is still playing.
package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opensesame/core/internal/orchestrator"
	"github.com/opensesame/core/internal/process"
)

// silent is the clip path that disables a cue.
const silent = "/dev/null"

// Signaller runs a command on the peer controller. It is satisfied by
// *remote.Client.
type Signaller interface {
	Run(ctx context.Context, command string) error
}

// Logger defines the logging interface for the player.
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

// RunFunc runs a program until it exits or ctx is cancelled.
type RunFunc func(ctx context.Context, cfg process.Config, logger process.Logger) error

// Options configures a Player.
type Options struct {
	// Binary is the player program, e.g. "ogg123".
	Binary string
	Bell   string
	Alarm  string

	// Remote, if set, is signalled with AlarmCommand on a fire alarm.
	Remote       Signaller
	AlarmCommand string

	Logger Logger
	// Runner defaults to process.Run.
	Runner RunFunc
}

// Player consumes audio events.
type Player struct {
	opts   Options
	logger Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a Player.
func New(opts Options) *Player {
	if opts.Binary == "" {
		opts.Binary = "ogg123"
	}
	if opts.Runner == nil {
		opts.Runner = process.Run
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Player{opts: opts, logger: logger}
}

// Run plays one clip per event until ctx is cancelled or events is closed.
// It waits for the last clip to stop before returning.
func (p *Player) Run(ctx context.Context, events <-chan orchestrator.AudioEvent, notes chan<- orchestrator.Notification) error {
	defer p.wg.Wait()
	defer p.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if err := p.handle(ctx, e, notes); err != nil {
				return err
			}
		}
	}
}

func (p *Player) handle(ctx context.Context, e orchestrator.AudioEvent, notes chan<- orchestrator.Notification) error {
	p.stop()

	clipCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	switch e {
	case orchestrator.AudioFireAlarm:
		if err := send(ctx, notes, orchestrator.Chat, orchestrator.KindAlarm, "Audio fire alarm!"); err != nil {
			return err
		}
		p.play(clipCtx, "fire alarm", p.opts.Alarm, true)
		if p.opts.Remote != nil && p.opts.AlarmCommand != "" {
			p.signalPeer(ctx, notes)
		}
	default:
		if err := send(ctx, notes, orchestrator.Chat, orchestrator.KindBell, "Ringing the audio bell."); err != nil {
			return err
		}
		p.play(clipCtx, "bell", p.opts.Bell, false)
	}
	return nil
}

// stop cancels the running clip, if any.
func (p *Player) stop() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Player) play(ctx context.Context, name, file string, repeat bool) {
	if file == "" || file == silent {
		p.logger.Debug("audio clip disabled", "clip", name)
		return
	}

	args := []string{"--quiet"}
	if repeat {
		args = append(args, "--repeat")
	}
	args = append(args, file)

	cfg := process.Config{Name: name, Binary: p.opts.Binary, Args: args}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		err := p.opts.Runner(ctx, cfg, p.logger)
		if err != nil && ctx.Err() == nil {
			p.logger.Warn("playing audio clip failed", "clip", name, "file", file, "error", err)
		}
	}()
}

func (p *Player) signalPeer(ctx context.Context, notes chan<- orchestrator.Notification) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.opts.Remote.Run(ctx, p.opts.AlarmCommand); err != nil {
			p.logger.Error("signalling peer controller failed", "error", err)
			_ = send(ctx, notes, orchestrator.Ping, orchestrator.KindError,
				fmt.Sprintf("Couldn't signal the other controller: %v", err))
		}
	}()
}

func send(ctx context.Context, notes chan<- orchestrator.Notification, c orchestrator.Category, kind, text string) error {
	n := orchestrator.Notification{Category: c, Kind: kind, Text: text, At: time.Now()}
	select {
	case notes <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
