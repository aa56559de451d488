// Package mqtt connects the entrance controller to an MQTT broker.
//
// The broker is the controller's link to the outside world:
//   - chat notifications are published on opensesame/chat/{category}
//   - remote commands arrive on opensesame/command
//   - the retained opensesame/status topic reports online/offline, with a
//     Last Will so a crash shows up as offline
//
// Subscriptions are tracked and restored after a reconnect. Message handlers
// run on paho's goroutines and are wrapped with panic recovery.
package mqtt
