package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opensesame/core/internal/buttons"
	"github.com/opensesame/core/internal/validator"
)

// DefaultTick is the control loop period.
const DefaultTick = 10 * time.Millisecond

// benignTimeout is the sequence a stray reading of an idle keypad leaves
// behind. Its timeout is not a wrong attempt.
var benignTimeout = validator.Sequence{0, 15}

// Matrix is the part of buttons.Matrix the loop drives.
type Matrix interface {
	Poll() (buttons.StateChange, error)
	Sequence() *validator.Sequence
	OpenDoor()
	ShowWrongInput()
	RingBell(period, halfPeriods uint32)
	RingBellAlarm(period uint32)
	SwitchLights(inside, outside, permanent bool) buttons.LightOutcome
}

// PowerSwitch controls the supply of the expander boards.
type PowerSwitch interface {
	Switch(on bool) error
}

// Logger defines the logging interface for the orchestrator.
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

// Options configures the loop.
type Options struct {
	// BellStartHour and BellEndHour bound the hours, inclusive, in which
	// the bell buttons ring.
	BellStartHour int
	BellEndHour   int

	// AudioBell also plays the bell clip for the bell button.
	AudioBell bool

	// StrictInput makes an unmapped input code stop the loop.
	StrictInput bool

	Latitude  float64
	Longitude float64
	Location  *time.Location
	// TimeFormat is the layout of times in notifications.
	TimeFormat string

	Tick time.Duration
	// SafeTimeout is how long the board supply stays off, and settles
	// afterwards, when the boards are power cycled.
	SafeTimeout time.Duration

	// Power is optional. Without it a bus reset only reinitializes the boards.
	Power PowerSwitch

	Now    func() time.Time
	Sun    SunFunc
	Logger Logger
}

// Orchestrator is the control loop. It owns the matrix and the validator:
// nothing else may touch them while Run is active.
type Orchestrator struct {
	matrix    Matrix
	validator *validator.Validator
	commands  <-chan Command
	notes     chan<- Notification
	audio     chan<- AudioEvent
	opts      Options
	logger    Logger
}

// New creates the control loop. The audio channel may be nil.
func New(m Matrix, v *validator.Validator, commands <-chan Command, notes chan<- Notification, audio chan<- AudioEvent, opts Options) *Orchestrator {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = "15:04"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sun == nil {
		opts.Sun = Sun
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Orchestrator{
		matrix:    m,
		validator: v,
		commands:  commands,
		notes:     notes,
		audio:     audio,
		opts:      opts,
		logger:    logger,
	}
}

// Run executes one Step per tick until an error occurs. It never returns
// nil: a cancelled context yields ctx.Err().
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.opts.Tick)
	defer ticker.Stop()

	o.logger.Info("control loop started", "tick", o.opts.Tick, "users", o.validator.Users())

	for {
		if err := o.Step(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Step runs a single tick: at most one queued command, one poll and one
// validation, in that order.
func (o *Orchestrator) Step(ctx context.Context) error {
	if err := o.drainCommand(ctx); err != nil {
		return err
	}
	if err := o.poll(ctx); err != nil {
		return err
	}
	return o.validate(ctx)
}

func (o *Orchestrator) drainCommand(ctx context.Context) error {
	var cmd Command
	select {
	case c, ok := <-o.commands:
		if !ok {
			return ErrChannelClosed
		}
		cmd = c
	default:
		return nil
	}

	o.logger.Debug("applying command", "command", fmt.Sprintf("%T", cmd))

	switch c := cmd.(type) {
	case OpenDoor:
		o.matrix.OpenDoor()
	case RingBell:
		o.matrix.RingBell(c.Period, c.HalfPeriods)
	case RingBellAlarm:
		o.matrix.RingBellAlarm(c.Period)
	case SwitchLights:
		if err := c.validate(); err != nil {
			o.logger.Warn("ignoring command", "error", err)
			return nil
		}
		outcome := o.matrix.SwitchLights(c.Inside, c.Outside, c.Permanent)
		text := outcome.String() + "."
		if c.Note != "" {
			text = c.Note + ". " + text
		}
		return o.notify(ctx, Light, KindLight, "", text)
	default:
		o.logger.Warn("ignoring unknown command", "command", fmt.Sprintf("%T", cmd))
	}
	return nil
}

func (o *Orchestrator) poll(ctx context.Context) error {
	change, err := o.matrix.Poll()
	if err != nil {
		var busErr *buttons.BusError
		if !errors.As(err, &busErr) {
			return fmt.Errorf("polling matrix: %w", err)
		}
		// A change reported with the reset still happened.
		if derr := o.dispatch(ctx, change); derr != nil {
			return derr
		}
		return o.busReset(ctx, busErr)
	}
	return o.dispatch(ctx, change)
}

func (o *Orchestrator) dispatch(ctx context.Context, change buttons.StateChange) error {
	switch change.Kind {
	case buttons.Pressed:
		return o.pressed(ctx, change.Code)
	case buttons.LightsOff:
		return o.notify(ctx, Light, KindLight, "", "Light was turned off.")
	}
	return nil
}

// pressed dispatches every bit of a press code. Several inputs pressed
// within one tick are handled in bit order.
func (o *Orchestrator) pressed(ctx context.Context, code byte) error {
	for i := 0; i < 8; i++ {
		bit := byte(1) << i
		if code&bit == 0 {
			continue
		}

		var err error
		switch bit {
		case buttons.ButtonBell:
			err = o.bell(ctx, "button", 2, 5, o.opts.AudioBell)
		case buttons.TasterBell:
			err = o.bell(ctx, "switch", 5, 5, false)
		case buttons.TasterInside:
			outcome := o.matrix.SwitchLights(true, true, true)
			err = o.notify(ctx, Light, KindLight, "", fmt.Sprintf("Pressed switch inside. %s.", outcome))
		case buttons.TasterOutside:
			outcome := o.matrix.SwitchLights(false, true, false)
			err = o.notify(ctx, Light, KindLight, "", fmt.Sprintf("Pressed switch outside or light button. %s.", outcome))
		default:
			err = o.unreachable(bit)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) unreachable(code byte) error {
	if o.opts.StrictInput {
		return fmt.Errorf("%w: code %#02x", buttons.ErrUnreachableInput, code)
	}
	o.logger.Error("pressed input without action", "code", code)
	return nil
}

// bell rings if the local hour is inside the bell hours. Otherwise it
// shows the wrong-input pattern so the visitor sees the press was noticed.
func (o *Orchestrator) bell(ctx context.Context, source string, period, halfPeriods uint32, withAudio bool) error {
	now := o.now()
	if h := now.Hour(); h < o.opts.BellStartHour || h > o.opts.BellEndHour {
		o.matrix.ShowWrongInput()
		return o.notify(ctx, Chat, KindBellOffHours, "",
			fmt.Sprintf("Did not ring bell (%s pressed) because the time is %s.", source, now.Format(o.opts.TimeFormat)))
	}

	o.matrix.RingBell(period, halfPeriods)
	if withAudio {
		o.playAudio(AudioBell)
	}
	return o.notify(ctx, Chat, KindBell, "", fmt.Sprintf("Pressed bell %s.", source))
}

func (o *Orchestrator) validate(ctx context.Context) error {
	seq := o.matrix.Sequence()
	attempt := seq.String()
	stale := seq.Equal(benignTimeout)

	result := o.validator.Validate(seq)
	switch result.Kind {
	case validator.Validated:
		return o.opened(ctx, result.User)
	case validator.Timeout:
		if stale {
			o.logger.Debug("discarding idle reading", "sequence", attempt)
			return nil
		}
		return o.wrongAttempt(ctx, fmt.Sprintf("Timeout with sequence %s.", attempt))
	case validator.SequenceTooLong:
		return o.wrongAttempt(ctx, fmt.Sprintf("Sequence %s too long.", attempt))
	}
	return nil
}

func (o *Orchestrator) opened(ctx context.Context, user string) error {
	o.matrix.OpenDoor()
	o.logger.Info("door opened", "user", user)
	if err := o.notify(ctx, Chat, KindDoorOpened, user, fmt.Sprintf("Opened for %s.", user)); err != nil {
		return err
	}

	now := o.now()
	rise, set := o.opts.Sun(o.opts.Latitude, o.opts.Longitude, now)
	if isDark(now, rise, set) {
		outcome := o.matrix.SwitchLights(true, true, false)
		return o.notify(ctx, Light, KindLight, "", fmt.Sprintf("Switch lights in and out. %s.", outcome))
	}

	format := o.opts.TimeFormat
	return o.notify(ctx, Light, KindLight, "", fmt.Sprintf(
		"Don't switch lights as it's daytime. Now: %s Sunrise: %s Sunset: %s",
		now.Format(format), rise.In(o.opts.Location).Format(format), set.In(o.opts.Location).Format(format)))
}

// wrongAttempt penalizes a rejected sequence with the lockout and a short
// ring. The text carries the raw sequence and only goes to the chat.
func (o *Orchestrator) wrongAttempt(ctx context.Context, text string) error {
	o.matrix.ShowWrongInput()
	o.matrix.RingBell(20, 0)
	return o.notify(ctx, Chat, KindWrongAttempt, "", text)
}

// busReset reports a reinitialization of the boards and power cycles them
// when a power switch is configured. The loop is blocked meanwhile.
func (o *Orchestrator) busReset(ctx context.Context, busErr *buttons.BusError) error {
	o.logger.Warn("bus reset", "board", busErr.Board.String(), "failures", busErr.Failures, "recovered", busErr.Recovered, "error", busErr)

	text := fmt.Sprintf("Error reading buttons of board %s (%#02x) %d times, boards reinitialized.", busErr.Board, busErr.Addr, busErr.Failures)
	if !busErr.Recovered {
		text = fmt.Sprintf("Error reading buttons of board %s (%#02x) %d times, reinitialization failed: %v", busErr.Board, busErr.Addr, busErr.Failures, busErr.ReinitErr)
	}
	n := o.notification(Ping, KindBusReset, "", text)
	n.Board = busErr.Addr
	n.Recovered = busErr.Recovered
	if err := o.send(ctx, n); err != nil {
		return err
	}

	if o.opts.Power == nil {
		return nil
	}
	return o.powerCycle(ctx)
}

func (o *Orchestrator) powerCycle(ctx context.Context) error {
	steps := []struct {
		on   bool
		text string
	}{
		{false, "Turned board power off."},
		{true, "Turned board power on."},
	}

	for _, step := range steps {
		if err := o.opts.Power.Switch(step.on); err != nil {
			o.logger.Error("switching board power failed", "on", step.on, "error", err)
			return o.notify(ctx, Ping, KindPower, "", fmt.Sprintf("Switching board power failed: %v", err))
		}
		if err := o.notify(ctx, Ping, KindPower, "", step.text); err != nil {
			return err
		}
		if err := sleep(ctx, o.opts.SafeTimeout); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) playAudio(e AudioEvent) {
	if o.audio == nil {
		return
	}
	select {
	case o.audio <- e:
	default:
		o.logger.Warn("audio queue full, dropping event", "event", e.String())
	}
}

func (o *Orchestrator) now() time.Time {
	return o.opts.Now().In(o.opts.Location)
}

func (o *Orchestrator) notification(c Category, kind, user, text string) Notification {
	return Notification{Category: c, Kind: kind, User: user, Text: text, At: o.now()}
}

func (o *Orchestrator) notify(ctx context.Context, c Category, kind, user, text string) error {
	return o.send(ctx, o.notification(c, kind, user, text))
}

// send blocks until the dispatcher takes the notification, so the order
// decided within a tick is kept.
func (o *Orchestrator) send(ctx context.Context, n Notification) error {
	select {
	case o.notes <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
