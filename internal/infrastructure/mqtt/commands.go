package mqtt

import (
	"fmt"
	"slices"
)

// commandSet is the topic filter set registered by SubscribeCommands.
type commandSet struct {
	filters map[string]byte
	handler MessageHandler
}

func (s commandSet) active() bool {
	return s.handler != nil
}

// SubscribeCommands subscribes to every topic in one SUBSCRIBE packet and
// routes their messages to handler.
//
// Command topics are exact device topics, so wildcards are rejected the
// same way Publish rejects them. Duplicates collapse. The set is replayed
// after each reconnect and stays registered until UnsubscribeCommands.
// Calling SubscribeCommands twice without unsubscribing returns
// ErrAlreadySubscribed.
//
// An empty topic list records an empty set and sends nothing.
func (c *Client) SubscribeCommands(topics []string, qos byte, handler MessageHandler) error {
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	filters := make(map[string]byte, len(topics))
	for _, topic := range topics {
		if err := ValidatePublishTopic(topic); err != nil {
			return err
		}
		filters[topic] = qos
	}

	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if c.commands.active() {
		return ErrAlreadySubscribed
	}
	if len(filters) == 0 {
		c.commands = commandSet{filters: filters, handler: handler}
		return nil
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := c.subscribeMultiple(filters, handler); err != nil {
		return err
	}
	c.commands = commandSet{filters: filters, handler: handler}
	return nil
}

// UnsubscribeCommands drops the command topic set. Messages already in
// flight may still be delivered. It is a no-op when nothing is subscribed.
func (c *Client) UnsubscribeCommands() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if !c.commands.active() {
		return nil
	}
	topics := sortedKeys(c.commands.filters)
	c.commands = commandSet{}
	if len(topics) == 0 {
		return nil
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Unsubscribe(topics...)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrUnsubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}
	return nil
}

// CommandTopics returns the subscribed command topics, sorted.
func (c *Client) CommandTopics() []string {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	return sortedKeys(c.commands.filters)
}

func (c *Client) subscribeMultiple(filters map[string]byte, handler MessageHandler) error {
	token := c.client.SubscribeMultiple(filters, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// restoreCommands replays the command set after a reconnect.
// The router subscribes once at startup and relies on this.
func (c *Client) restoreCommands() {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if len(c.commands.filters) == 0 {
		return
	}
	if err := c.subscribeMultiple(c.commands.filters, c.commands.handler); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT command resubscribe failed",
				"topics", len(c.commands.filters),
				"error", err,
			)
		}
	}
}

// sortedKeys returns the keys of m in ascending order, or nil when m is empty.
func sortedKeys(m map[string]byte) []string {
	var keys []string
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
