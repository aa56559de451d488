// Package influxdb records entrance telemetry in InfluxDB.
//
// Every notification the controller emits becomes an access_events point
// (door openings, wrong attempts, bell rings, light changes) and every bus
// reset becomes a bus_resets point, so a dashboard can show how often the
// expander boards glitch and when the door is used.
//
// Writes are non-blocking and batched by the underlying client; errors are
// delivered through the callback set with SetOnError.
package influxdb
