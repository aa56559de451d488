package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/opensesame/core/internal/orchestrator"
)

// errQueueFull is returned when a remote command finds the queue full.
var errQueueFull = errors.New("command queue full")

// ingress feeds commands from outside the process into the control loop:
// MQTT command messages and the bell and alarm signals.
type ingress struct {
	commands chan<- orchestrator.Command
	notes    chan<- orchestrator.Notification
	audio    chan<- orchestrator.AudioEvent
	loc      *time.Location
	started  time.Time
	logger   ingressLogger
}

type ingressLogger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// handleMQTT decodes a message from the command topic and queues it. It
// runs on the MQTT client's goroutine and must not block.
func (in *ingress) handleMQTT(_ string, payload []byte) error {
	cmd, err := orchestrator.DecodeCommand(payload)
	if err != nil {
		return err
	}

	select {
	case in.commands <- cmd:
	default:
		return fmt.Errorf("%w: dropping %T", errQueueFull, cmd)
	}
	in.logger.Info("remote command queued", "command", fmt.Sprintf("%T", cmd))

	n := orchestrator.Notification{
		Category: orchestrator.Chat,
		Kind:     orchestrator.KindRemoteCommand,
		Text:     fmt.Sprintf("Remote command %s.", commandName(cmd)),
		At:       in.now(),
	}
	select {
	case in.notes <- n:
	default:
		in.logger.Warn("notification queue full, dropping remote command notice")
	}
	return nil
}

// signals handles the bell, alarm and status signals until ctx is done.
func (in *ingress) signals(ctx context.Context, sigs <-chan os.Signal) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-sigs:
			if err := in.signal(ctx, sig); err != nil {
				return err
			}
		}
	}
}

func (in *ingress) signal(ctx context.Context, sig os.Signal) error {
	in.logger.Info("signal received", "signal", sig.String())

	switch sig {
	case syscall.SIGUSR2:
		if err := in.queue(ctx, orchestrator.RingBell{Period: 20}); err != nil {
			return err
		}
		in.playAudio(orchestrator.AudioBell)
		return in.notify(ctx, orchestrator.Chat, orchestrator.KindBell, "Ring bell by signal.")
	case syscall.SIGALRM:
		if err := in.queue(ctx, orchestrator.RingBellAlarm{Period: 20}); err != nil {
			return err
		}
		in.playAudio(orchestrator.AudioFireAlarm)
		return in.notify(ctx, orchestrator.Chat, orchestrator.KindAlarm, "Fire alarm!")
	case syscall.SIGUSR1:
		return in.notify(ctx, orchestrator.Ping, orchestrator.KindStatus,
			fmt.Sprintf("Running %s (%s), up since %s.", version, commit, in.started.In(in.location()).Format(time.DateTime)))
	}
	return nil
}

func (in *ingress) queue(ctx context.Context, cmd orchestrator.Command) error {
	select {
	case in.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (in *ingress) playAudio(e orchestrator.AudioEvent) {
	if in.audio == nil {
		return
	}
	select {
	case in.audio <- e:
	default:
		in.logger.Warn("audio queue full, dropping event", "event", e.String())
	}
}

func (in *ingress) notify(ctx context.Context, c orchestrator.Category, kind, text string) error {
	n := orchestrator.Notification{Category: c, Kind: kind, Text: text, At: in.now()}
	select {
	case in.notes <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (in *ingress) location() *time.Location {
	if in.loc == nil {
		return time.Local
	}
	return in.loc
}

func (in *ingress) now() time.Time {
	return time.Now().In(in.location())
}

// commandName is the wire name of a command.
func commandName(cmd orchestrator.Command) string {
	switch cmd.(type) {
	case orchestrator.OpenDoor:
		return orchestrator.CommandOpenDoor
	case orchestrator.RingBell:
		return orchestrator.CommandRingBell
	case orchestrator.RingBellAlarm:
		return orchestrator.CommandRingBellAlarm
	case orchestrator.SwitchLights:
		return orchestrator.CommandSwitchLights
	}
	return fmt.Sprintf("%T", cmd)
}
