package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the bridge's own housekeeping topics.
// Device topics are free-form and come from the device list.
const (
	// TopicPrefix is the base for all bridge-owned topics.
	TopicPrefix = "noolite"

	// TopicPrefixSystem is the base for process-level status topics.
	TopicPrefixSystem = "noolite/system"
)

// maxTopicLength is the MQTT limit for a UTF-8 encoded topic name.
const maxTopicLength = 65535

// Topics provides builders for the bridge's own MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.BridgeHealth() // "noolite/bridge/health"
type Topics struct{}

// SystemStatus returns the topic carrying online/offline status and the LWT.
//
// Example: noolite/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// BridgeHealth returns the topic for periodic bridge health reports.
//
// Example: noolite/bridge/health
func (Topics) BridgeHealth() string {
	return TopicPrefix + "/bridge/health"
}

// ValidatePublishTopic reports whether topic can be published to.
// Publish topics must be non-empty, must not contain wildcards and must
// not contain NUL characters.
func ValidatePublishTopic(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidTopic, maxTopicLength)
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: %q contains a wildcard", ErrInvalidTopic, topic)
	}
	if strings.ContainsRune(topic, 0) {
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidTopic, topic)
	}
	return nil
}
