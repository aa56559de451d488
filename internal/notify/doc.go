// Package notify delivers the controller's notifications.
//
// A Dispatcher consumes orchestrator.Notification values and, for each one,
// publishes a JSON chat message on opensesame/chat/{category}, records an
// InfluxDB point and journals door openings, rejected attempts and bus
// resets through the audit repository. Every sink is optional. A failing
// sink is logged and never stops the dispatcher.
//
// The chat message of a rejected attempt carries the entered sequence; the
// journal entry does not.
package notify
