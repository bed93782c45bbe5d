package noolite

import (
	"fmt"

	"github.com/nerrad567/noolite-bridge/internal/device"
)

// Sink receives bridge publications without blocking. *Publisher implements it.
type Sink interface {
	Publish(topic, payload string) bool
}

// Subscriber is the part of the MQTT client the router needs.
type Subscriber interface {
	SubscribeCommands(topics []string, qos byte, handler func(topic string, payload []byte)) error
	UnsubscribeCommands() error
}

// Router turns command topic messages into queued radio actions and
// retained status echoes.
//
// HandleMessage is safe to call concurrently from the MQTT client's
// callback goroutines.
type Router struct {
	registry *device.Registry
	tx       Transmitter
	queue    Enqueuer
	sink     Sink

	optionalLogger
}

// NewRouter creates a router.
func NewRouter(registry *device.Registry, tx Transmitter, queue Enqueuer, sink Sink, logger Logger) *Router {
	r := &Router{
		registry: registry,
		tx:       tx,
		queue:    queue,
		sink:     sink,
	}
	r.set(logger)
	return r
}

// Subscribe hands every distinct switch topic to client as one command
// set at qos.
func (r *Router) Subscribe(client Subscriber, qos byte) error {
	topics := r.registry.CommandTopics()
	if err := client.SubscribeCommands(topics, qos, r.HandleMessage); err != nil {
		return fmt.Errorf("subscribe to %d command topics: %w", len(topics), err)
	}
	r.logInfo("subscribed to command topics", "topics", topics, "qos", qos)
	return nil
}

// Unsubscribe drops the command set registered by Subscribe.
func (r *Router) Unsubscribe(client Subscriber) error {
	if err := client.UnsubscribeCommands(); err != nil {
		return fmt.Errorf("unsubscribe command topics: %w", err)
	}
	return nil
}

// HandleMessage processes one command topic message.
func (r *Router) HandleMessage(topic string, payload []byte) {
	cmd, err := ParseCommand(payload)
	if err != nil {
		r.logError("unrecognized command", "topic", topic, "payload", string(payload), "error", err)
		return
	}
	r.logDebug("command received", "topic", topic, "command", cmd.String())

	switches := r.registry.SwitchesForTopic(topic)
	if len(switches) == 0 {
		r.logError("no switch for command topic", "topic", topic)
		return
	}
	for _, sw := range switches {
		r.dispatch(sw, cmd)
	}
}

// dispatch enqueues the radio action for one switch and echoes the command.
func (r *Router) dispatch(sw *device.Device, cmd SwitchCommand) {
	r.queue.Enqueue(r.switchAction(sw, cmd))

	if sw.StatusReportTopic == "" {
		r.logError("switch has no status report topic, echo skipped",
			"switch", sw.Name(),
			"channel", sw.Channel)
		return
	}
	r.sink.Publish(sw.StatusReportTopic, cmd.Payload())
	r.logInfo("switch command echoed",
		"topic", sw.StatusReportTopic,
		"command", cmd.String(),
		"channel", sw.Channel)
}

// switchAction builds the queued steps for cmd. Dimmable switches get their
// configured brightness before the on/off transmission.
func (r *Router) switchAction(sw *device.Device, cmd SwitchCommand) Action {
	ch := sw.Channel
	action := Action{Name: cmd.String(), Channel: ch}

	if sw.Dimmable() {
		level := sw.ZeroPowerValue
		if cmd == CommandOn {
			level = sw.FullPowerValue
		}
		action.Steps = append(action.Steps, func() error { return r.tx.SetBrightness(ch, level) })
	}

	if cmd == CommandOn {
		action.Steps = append(action.Steps, func() error { return r.tx.On(ch) })
	} else {
		action.Steps = append(action.Steps, func() error { return r.tx.Off(ch) })
	}
	return action
}

// ReadStateAction builds a state poll for a switch's TX channel.
func ReadStateAction(tx Transmitter, channel uint8) Action {
	return Action{
		Name:    "read_state",
		Channel: channel,
		Steps:   []func() error{func() error { return tx.ReadState(channel) }},
	}
}
