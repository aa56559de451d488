package influxdb

import (
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementAccess   = "access_events"
	MeasurementBusReset = "bus_resets"
)

// WriteAccessEvent records one controller event. The user tag is only set
// for door openings so the series cardinality stays bounded.
func (c *Client) WriteAccessEvent(kind, category, user string, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(accessPoint(kind, category, user, at))
}

// WriteBusReset records an expander re-initialization.
func (c *Client) WriteBusReset(board uint16, recovered bool, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(busResetPoint(board, recovered, at))
}

func accessPoint(kind, category, user string, at time.Time) *write.Point {
	tags := map[string]string{
		"kind":     kind,
		"category": category,
	}
	if user != "" {
		tags["user"] = user
	}
	return write.NewPoint(MeasurementAccess, tags, map[string]interface{}{"count": 1}, at)
}

func busResetPoint(board uint16, recovered bool, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementBusReset,
		map[string]string{"board": boardTag(board)},
		map[string]interface{}{"recovered": recovered},
		at,
	)
}

func boardTag(addr uint16) string {
	return fmt.Sprintf("0x%02x", addr)
}
