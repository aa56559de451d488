package mqtt

import "fmt"

// TopicPrefix is the root of every topic the controller uses.
const TopicPrefix = "opensesame"

// Topics provides builders for the controller's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Chat("ping") // "opensesame/chat/ping"
type Topics struct{}

// Status is the retained online/offline topic.
func (Topics) Status() string {
	return TopicPrefix + "/status"
}

// Command is the topic remote commands are received on.
func (Topics) Command() string {
	return TopicPrefix + "/command"
}

// Chat returns the notification topic for a category.
func (Topics) Chat(category string) string {
	return fmt.Sprintf("%s/chat/%s", TopicPrefix, category)
}

// Door is the retained door state topic, e.g. the garage gate position.
func (Topics) Door(name string) string {
	return fmt.Sprintf("%s/door/%s", TopicPrefix, name)
}
