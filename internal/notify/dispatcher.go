package notify

import (
	"context"
	"time"

	"github.com/opensesame/core/internal/audit"
	"github.com/opensesame/core/internal/infrastructure/mqtt"
	"github.com/opensesame/core/internal/orchestrator"
)

// Publisher publishes chat messages. It is satisfied by *mqtt.Client.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// Telemetry records time series points. It is satisfied by *influxdb.Client.
type Telemetry interface {
	WriteAccessEvent(kind, category, user string, at time.Time)
	WriteBusReset(board uint16, recovered bool, at time.Time)
}

// Journal stores access journal entries. It is satisfied by audit.Repository.
type Journal interface {
	Create(ctx context.Context, e *audit.Entry) error
}

// Logger defines the logging interface for the dispatcher.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// journalTimeout bounds a single journal write.
const journalTimeout = 2 * time.Second

// Options configures a Dispatcher. Nil sinks are skipped.
type Options struct {
	Publisher Publisher
	Telemetry Telemetry
	Journal   Journal
	// Source is recorded as the journal entry source, e.g. the site ID.
	Source string
	Logger Logger
}

// Dispatcher fans notifications out to the configured sinks.
type Dispatcher struct {
	opts   Options
	topics mqtt.Topics
	logger Logger
}

// Message is the JSON chat message.
type Message struct {
	Category string    `json:"category"`
	Kind     string    `json:"kind"`
	User     string    `json:"user,omitempty"`
	Text     string    `json:"text"`
	Time     time.Time `json:"time"`
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{opts: opts, logger: logger}
}

// Run handles notifications until ctx is cancelled or notes is closed.
func (d *Dispatcher) Run(ctx context.Context, notes <-chan orchestrator.Notification) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-notes:
			if !ok {
				return nil
			}
			d.Handle(ctx, n)
		}
	}
}

// Handle delivers one notification to every sink.
func (d *Dispatcher) Handle(ctx context.Context, n orchestrator.Notification) {
	category := n.Category.String()
	d.logger.Info("notification", "category", category, "kind", n.Kind, "text", n.Text)

	if d.opts.Publisher != nil {
		msg := Message{Category: category, Kind: n.Kind, User: n.User, Text: n.Text, Time: n.At}
		if err := d.opts.Publisher.PublishJSON(d.topics.Chat(category), msg); err != nil {
			d.logger.Warn("publishing notification failed", "kind", n.Kind, "error", err)
		}
	}

	if d.opts.Telemetry != nil {
		if n.Kind == orchestrator.KindBusReset {
			d.opts.Telemetry.WriteBusReset(n.Board, n.Recovered, n.At)
		} else {
			d.opts.Telemetry.WriteAccessEvent(n.Kind, category, n.User, n.At)
		}
	}

	if d.opts.Journal != nil {
		if entry, ok := d.journalEntry(n); ok {
			jctx, cancel := context.WithTimeout(ctx, journalTimeout)
			err := d.opts.Journal.Create(jctx, entry)
			cancel()
			if err != nil {
				d.logger.Warn("journaling notification failed", "kind", n.Kind, "error", err)
			}
		}
	}
}

// journalEntry maps a notification to a journal entry. Only access related
// kinds are journaled, and never with the text of a wrong attempt since it
// contains the entered sequence.
func (d *Dispatcher) journalEntry(n orchestrator.Notification) (*audit.Entry, bool) {
	e := &audit.Entry{Source: d.opts.Source, User: n.User, CreatedAt: n.At}

	switch n.Kind {
	case orchestrator.KindDoorOpened:
		e.Kind = audit.KindDoorOpened
	case orchestrator.KindWrongAttempt:
		e.Kind = audit.KindWrongAttempt
		return e, true
	case orchestrator.KindBusReset:
		e.Kind = audit.KindBusReset
	case orchestrator.KindBellOffHours:
		e.Kind = audit.KindBellOffHours
	case orchestrator.KindRemoteCommand:
		e.Kind = audit.KindRemoteCommand
	default:
		return nil, false
	}
	e.Detail = n.Text
	return e, true
}
