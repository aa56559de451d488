package orchestrator

import "time"

// Category selects the chat a notification goes to.
type Category int

const (
	Chat Category = iota
	Ping
	Light
)

// String returns the topic segment of the category.
func (c Category) String() string {
	switch c {
	case Ping:
		return "ping"
	case Light:
		return "light"
	default:
		return "default"
	}
}

// Notification kinds. Kinds that are journaled share their names with the
// audit entry kinds.
const (
	KindDoorOpened    = "door_opened"
	KindWrongAttempt  = "wrong_attempt"
	KindBusReset      = "bus_reset"
	KindBellOffHours  = "bell_off_hours"
	KindRemoteCommand = "remote_command"
	KindBell          = "bell"
	KindLight         = "light"
	KindPower         = "power"
	KindAlarm         = "alarm"
	KindGarage        = "garage"
	KindStatus        = "status"
	KindError         = "error"
)

// Notification is a human readable message for the notification
// dispatcher. Board and Recovered are only set for KindBusReset.
type Notification struct {
	Category  Category
	Kind      string
	User      string
	Text      string
	At        time.Time
	Board     uint16
	Recovered bool
}

// AudioEvent asks the audio player for a clip.
type AudioEvent int

const (
	AudioBell AudioEvent = iota
	AudioFireAlarm
)

func (e AudioEvent) String() string {
	if e == AudioFireAlarm {
		return "fire_alarm"
	}
	return "bell"
}
