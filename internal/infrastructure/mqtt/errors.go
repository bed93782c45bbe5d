package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a disconnected client.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed is returned when an unsubscribe operation fails.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrAlreadySubscribed is returned when a command set is already registered.
	ErrAlreadySubscribed = errors.New("mqtt: command topics already subscribed")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned when an empty or malformed topic is provided.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")
)
