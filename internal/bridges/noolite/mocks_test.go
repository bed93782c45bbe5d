package noolite

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/noolite-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/noolite-bridge/internal/journal"
	"github.com/nerrad567/noolite-bridge/internal/mtrf"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []mockSubscription
	unsubscribed  []string
	commands      []string
	connected     bool
	status        mqtt.Status
	publishErr    error
	block         chan struct{}
	handlers      map[string]func(topic string, payload []byte)
}

type mockPublish struct {
	Topic    string
	Payload  string
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]func(topic string, payload []byte)),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	block := m.block
	m.mu.Unlock()
	if block != nil {
		<-block
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  string(payload),
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) SubscribeCommands(topics []string, qos byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, topic := range topics {
		m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
		m.handlers[topic] = handler
	}
	m.commands = append(m.commands, topics...)
	return nil
}

func (m *MockMQTTClient) UnsubscribeCommands() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, topic := range m.commands {
		m.unsubscribed = append(m.unsubscribed, topic)
		delete(m.handlers, topic)
	}
	m.commands = nil
	return nil
}

// Status reports the connection state set by SetStatus.
func (m *MockMQTTClient) Status() mqtt.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *MockMQTTClient) SetStatus(st mqtt.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = st
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

// PublishedTo returns the payloads published to topic, in order.
func (m *MockMQTTClient) PublishedTo(topic string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var payloads []string
	for _, p := range m.published {
		if p.Topic == topic {
			payloads = append(payloads, p.Payload)
		}
	}
	return payloads
}

func (m *MockMQTTClient) GetSubscriptions() []mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockSubscription(nil), m.subscriptions...)
}

// SimulateMessage simulates receiving an MQTT message on a topic.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	handler, ok := m.handlers[topic]
	m.mu.Unlock()
	if ok {
		handler(topic, payload)
	}
}

// MockAdapter implements Adapter for testing.
type MockAdapter struct {
	mu        sync.Mutex
	opens     int
	openErr   error
	txErr     error
	calls     []string
	callTimes []time.Time

	receptions chan mtrf.Reception
	lifecycle  chan mtrf.LifecycleEvent
}

func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		receptions: make(chan mtrf.Reception, 16),
		lifecycle:  make(chan mtrf.LifecycleEvent, 16),
	}
}

func (m *MockAdapter) Open(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return m.openErr
	}
	m.opens++
	return nil
}

func (m *MockAdapter) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	m.callTimes = append(m.callTimes, time.Now())
	return m.txErr
}

func (m *MockAdapter) On(ch uint8) error        { return m.record(fmt.Sprintf("on %d", ch)) }
func (m *MockAdapter) Off(ch uint8) error       { return m.record(fmt.Sprintf("off %d", ch)) }
func (m *MockAdapter) ReadState(ch uint8) error { return m.record(fmt.Sprintf("read_state %d", ch)) }
func (m *MockAdapter) SetBrightness(ch, level uint8) error {
	return m.record(fmt.Sprintf("brightness %d %d", ch, level))
}

func (m *MockAdapter) Receptions() <-chan mtrf.Reception     { return m.receptions }
func (m *MockAdapter) Lifecycle() <-chan mtrf.LifecycleEvent { return m.lifecycle }

func (m *MockAdapter) Stats() mtrf.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return mtrf.Stats{FramesSent: uint64(len(m.calls))}
}

func (m *MockAdapter) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockAdapter) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// recordingLogger counts log calls per level.
type recordingLogger struct {
	mu    sync.Mutex
	lines []logLine
}

type logLine struct {
	Level string
	Msg   string
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, logLine{Level: level, Msg: msg})
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.add("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.add("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.add("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.add("error", msg) }

func (l *recordingLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.lines {
		if line.Level == level {
			n++
		}
	}
	return n
}

// recordingSink implements Sink.
type recordingSink struct {
	mu   sync.Mutex
	pubs []Publication
}

func (s *recordingSink) Publish(topic, payload string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pubs = append(s.pubs, Publication{Topic: topic, Payload: payload})
	return true
}

func (s *recordingSink) Publications() []Publication {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Publication(nil), s.pubs...)
}

// recordingQueue implements Enqueuer without running anything.
type recordingQueue struct {
	mu      sync.Mutex
	actions []Action
}

func (q *recordingQueue) Enqueue(a Action) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.actions = append(q.actions, a)
}

func (q *recordingQueue) Actions() []Action {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Action(nil), q.actions...)
}

// recordingJournal implements Journal.
type recordingJournal struct {
	mu       sync.Mutex
	outcomes []journal.Outcome
	details  []string
}

func (j *recordingJournal) Record(_ mtrf.Reception, outcome journal.Outcome, detail string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.outcomes = append(j.outcomes, outcome)
	j.details = append(j.details, detail)
}

func (j *recordingJournal) Outcomes() []journal.Outcome {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]journal.Outcome(nil), j.outcomes...)
}

// recordingTelemetry implements Telemetry.
type recordingTelemetry struct {
	mu  sync.Mutex
	obs []Observation
}

func (r *recordingTelemetry) Observe(obs Observation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, obs)
}

func (r *recordingTelemetry) Observations() []Observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Observation(nil), r.obs...)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}
