package mqtt

import (
	"fmt"
)

// maxPayloadSize caps a single message at 1MB. Playlists are small JSON
// documents; media lives elsewhere and is referenced by URL.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic.
//
// Retained publishes replace the stored document for that topic; a
// retained publish with an empty payload deletes it.
//
// Parameters:
//   - topic: Concrete topic (no wildcards)
//   - payload: Message body, at most 1MB
//   - qos: 0, 1 or 2
//   - retained: Store as the topic's current document
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected or ErrPublishFailed
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
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
	if !token.WaitTimeout(defaultOperationTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultOperationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishRetained publishes a retained document with the configured QoS.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, c.QoS(), true)
}

// ClearRetained deletes the retained document stored on topic.
func (c *Client) ClearRetained(topic string) error {
	return c.Publish(topic, []byte{}, c.QoS(), true)
}
