package noolite

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/noolite-bridge/internal/device"
	"github.com/nerrad567/noolite-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/noolite-bridge/internal/journal"
	"github.com/nerrad567/noolite-bridge/internal/mtrf"
)

// Bridge orchestrates translation between the MQTT bus and the MTRF-64.
// It handles:
//   - Command topic messages, turned into queued radio actions
//   - Radio receptions, classified into bus publications
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	id          string
	version     string
	txMode      mtrf.Mode
	commandQoS  byte
	pollOnStart bool

	registry   *device.Registry
	mqtt       MQTTClient
	adapter    Adapter
	queue      *Queue
	router     *Router
	classifier *Classifier
	publisher  *Publisher
	health     *HealthReporter
	telemetry  Telemetry // optional
	journal    Journal   // optional

	fatal        chan error
	adapterUp    atomic.Bool
	unclassified atomic.Uint64

	// Shutdown coordination
	started   atomic.Bool
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context    // Bridge-level context, cancelled on Stop()
	ctxCancel context.CancelFunc // Cancel function for ctx

	optionalLogger
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// SubscribeCommands registers the command topic set with one handler.
	SubscribeCommands(topics []string, qos byte, handler func(topic string, payload []byte)) error

	// UnsubscribeCommands drops the set registered by SubscribeCommands.
	UnsubscribeCommands() error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Adapter is the adapter-driver capability set the bridge consumes.
// *mtrf.Adapter and *mtrf.MockAdapter implement it.
type Adapter interface {
	Opener
	Transmitter
	Receptions() <-chan mtrf.Reception
	Lifecycle() <-chan mtrf.LifecycleEvent
	Stats() mtrf.Stats
}

// Telemetry receives sensor readings and switch states.
// It is optional; the InfluxDB client is adapted to it in main.
type Telemetry interface {
	Observe(obs Observation)
}

// Journal records each reception and its outcome without blocking.
// *journal.Writer implements it.
type Journal interface {
	Record(rec mtrf.Reception, outcome journal.Outcome, detail string)
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// BridgeID identifies this bridge in health reports.
	BridgeID string

	// Version is the software version reported in health messages.
	Version string

	// Registry is the device registry. Required.
	Registry *device.Registry

	// MQTTClient is the MQTT client implementation. Required.
	MQTTClient MQTTClient

	// Adapter is the MTRF-64 driver. Required.
	Adapter Adapter

	// TxMode is mtrf.ModeTXF or mtrf.ModeTX (the zero value).
	TxMode mtrf.Mode

	// CommandQoS is the subscription QoS for switch command topics (0-2).
	CommandQoS byte

	// PollOnStart sends ReadState to every switch with a status topic when
	// the bridge starts in ModeTXF. Off by default: a device that does not
	// answer produces a TXF ReadState NoResponse reception, which no
	// classification row accepts, so it arrives on Fatal.
	PollOnStart bool

	// QueueDelay is the pause after every radio transmission. Must not be
	// negative.
	QueueDelay time.Duration

	// PublishBuffer is the capacity of the publication buffer (default 256).
	PublishBuffer int

	// HealthInterval is how often health is published (default 30s).
	HealthInterval time.Duration

	// LegacyAutomation enables the heating and ventilation rules.
	LegacyAutomation bool

	// Telemetry is optional.
	Telemetry Telemetry

	// Journal is optional.
	Journal Journal

	// Logger is optional structured logger.
	Logger Logger
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("adapter is required")
	}
	if opts.QueueDelay < 0 {
		return nil, fmt.Errorf("queue delay must not be negative, got %s", opts.QueueDelay)
	}
	if opts.CommandQoS > 2 {
		return nil, fmt.Errorf("command QoS must be 0, 1 or 2, got %d", opts.CommandQoS)
	}
	if opts.TxMode != mtrf.ModeTX && opts.TxMode != mtrf.ModeTXF {
		return nil, fmt.Errorf("%w: %s", mtrf.ErrUnknownTxMode, opts.TxMode)
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		id:          opts.BridgeID,
		version:     opts.Version,
		txMode:      opts.TxMode,
		commandQoS:  opts.CommandQoS,
		pollOnStart: opts.PollOnStart,
		registry:    opts.Registry,
		mqtt:        opts.MQTTClient,
		adapter:     opts.Adapter,
		telemetry:   opts.Telemetry, // May be nil (optional)
		journal:     opts.Journal,   // May be nil (optional)
		fatal:       make(chan error, 1),
		done:        make(chan struct{}),
		ctx:         ctx,
		ctxCancel:   ctxCancel,
	}

	b.queue = NewQueue(opts.Adapter, opts.QueueDelay, nil)
	b.publisher = NewPublisher(opts.MQTTClient, opts.PublishBuffer, nil)
	b.router = NewRouter(opts.Registry, opts.Adapter, b.queue, b.publisher, nil)
	b.classifier = NewClassifier(opts.Registry, opts.LegacyAutomation, nil)
	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.BridgeID,
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Snapshot:  b.snapshot,
	})
	b.SetLogger(opts.Logger)

	return b, nil
}

// Start brings the bridge up: it opens the adapter through the queue,
// starts publishing and reception handling, subscribes command topics,
// starts health reporting and, when PollOnStart is set in TXF mode, polls
// every reporting switch.
func (b *Bridge) Start(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", "error", err)
	}

	if err := b.queue.Activate(b.ctx); err != nil {
		return err
	}
	b.adapterUp.Store(true)

	b.publisher.Start()

	b.wg.Add(2)
	go b.receptionLoop()
	go b.lifecycleLoop()

	if err := b.router.Subscribe(b.mqtt, b.commandQoS); err != nil {
		return err
	}

	b.health.Start(ctx)

	polled := b.pollSwitchStates()

	stats := b.registry.Stats()
	b.logInfo("bridge started",
		"bridge_id", b.id,
		"switches", stats.Switches,
		"sensors", stats.Sensors,
		"tx_mode", b.txMode.String(),
		"state_polls", polled)
	return nil
}

// Stop gracefully shuts down the bridge. The queue worker finishes its
// in-flight action and discards the rest; reception handling ends before
// the caller closes the adapter.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.health.Stop()

		if b.started.Load() {
			if err := b.router.Unsubscribe(b.mqtt); err != nil {
				b.logWarn("failed to unsubscribe command topics", "error", err)
			}
		}

		close(b.done)
		b.ctxCancel()

		b.queue.Wait()
		b.wg.Wait()
		b.publisher.Stop()

		b.logInfo("bridge stopped")
	})
}

// Fatal delivers ErrUnclassifiedEvent when a reception matches no
// classification row. Reception handling continues; the supervisor decides
// whether to shut down.
func (b *Bridge) Fatal() <-chan error {
	return b.fatal
}

// Enqueue submits a radio action to the command queue.
func (b *Bridge) Enqueue(action Action) {
	b.queue.Enqueue(action)
}

// SetLogger sets the logger for the bridge and its components.
func (b *Bridge) SetLogger(logger Logger) {
	b.set(logger)
	b.queue.set(logger)
	b.publisher.set(logger)
	b.router.set(logger)
	b.classifier.set(logger)
	b.health.set(logger)
}

// pollSwitchStates asks every switch with a status topic for its state so
// retained topics are refreshed after a restart. Only nooLite-F devices
// answer, so legacy TX mode skips the poll.
func (b *Bridge) pollSwitchStates() int {
	if !b.pollOnStart || b.txMode != mtrf.ModeTXF {
		return 0
	}
	n := 0
	for _, sw := range b.registry.AllSwitches() {
		if sw.StatusReportTopic == "" {
			continue
		}
		b.queue.Enqueue(ReadStateAction(b.adapter, sw.Channel))
		n++
	}
	return n
}

// receptionLoop drains the adapter's reception stream into the classifier.
func (b *Bridge) receptionLoop() {
	defer b.wg.Done()

	receptions := b.adapter.Receptions()
	for {
		select {
		case <-b.done:
			return
		case rec, ok := <-receptions:
			if !ok {
				return
			}
			b.handleReception(rec)
		}
	}
}

// handleReception classifies one reception and fans the result out to the
// publisher, telemetry and journal.
func (b *Bridge) handleReception(rec mtrf.Reception) {
	b.logDebug("reception",
		"mode", rec.Mode.String(),
		"command", rec.Command.String(),
		"result", rec.Result.String(),
		"channel", rec.Channel,
		"data", rec.Data[:])

	result, err := b.classifier.Classify(rec)

	for _, pub := range result.Publications {
		b.publisher.Publish(pub.Topic, pub.Payload)
	}
	if b.telemetry != nil {
		for _, obs := range result.Observations {
			b.telemetry.Observe(obs)
		}
	}
	if b.journal != nil {
		b.journal.Record(rec, result.Outcome, result.Detail())
	}

	if err != nil {
		b.unclassified.Add(1)
		b.logError("unclassified reception", "error", err)
		select {
		case b.fatal <- err:
		default:
		}
	}
}

// lifecycleLoop logs adapter connection changes.
func (b *Bridge) lifecycleLoop() {
	defer b.wg.Done()

	events := b.adapter.Lifecycle()
	for {
		select {
		case <-b.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			b.handleLifecycle(ev)
		}
	}
}

func (b *Bridge) handleLifecycle(ev mtrf.LifecycleEvent) {
	switch ev.Kind {
	case mtrf.LifecycleConnected:
		b.adapterUp.Store(true)
		b.logInfo("adapter connected")
	case mtrf.LifecycleDisconnected:
		b.adapterUp.Store(false)
		b.logWarn("adapter disconnected")
	case mtrf.LifecycleError:
		b.logError("adapter error", "error", ev.Err)
	}
}

// connectionStatuser is implemented by MQTT clients that track reconnects.
type connectionStatuser interface {
	Status() mqtt.Status
}

// snapshot gathers the live state for health reports.
func (b *Bridge) snapshot() HealthSnapshot {
	var reconnecting bool
	var reconnects uint64
	if cs, ok := b.mqtt.(connectionStatuser); ok {
		st := cs.Status()
		reconnecting = st.State == mqtt.StateReconnecting
		reconnects = st.Reconnects
	}

	return HealthSnapshot{
		MQTTConnected:    b.mqtt.IsConnected(),
		MQTTReconnecting: reconnecting,
		MQTTReconnects:   reconnects,
		AdapterConnected: b.adapterUp.Load(),
		TxMode:           b.txMode,
		Adapter:          b.adapter.Stats(),
		Statistics: BridgeStatistics{
			Devices:      b.registry.Stats(),
			Queue:        b.queue.Stats(),
			Publisher:    b.publisher.Stats(),
			Unclassified: b.unclassified.Load(),
		},
	}
}
