package mqtt

import (
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20

// Publish sends a message to the specified MQTT topic.
//
// Parameters:
//   - topic: The topic to publish to (no wildcards)
//   - payload: The message payload (max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// The call blocks until the broker acknowledges or defaultPublishTimeout
// elapses. Callers on latency-sensitive paths must buffer in front of it.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := ValidatePublishTopic(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
