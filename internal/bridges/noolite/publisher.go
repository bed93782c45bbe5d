package noolite

import (
	"sync"
	"sync/atomic"
)

// defaultPublishBuffer is used when no buffer size is configured.
const defaultPublishBuffer = 256

// MessagePublisher is the publish half of the MQTT client.
type MessagePublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// PublisherStats is a snapshot of publisher counters.
type PublisherStats struct {
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
	Pending   int    `json:"pending"`
}

// Publisher decouples bridge publications from the MQTT client. Publish
// never blocks; one goroutine performs the retained QoS 1 publishes in order.
type Publisher struct {
	client MessagePublisher
	queue  chan Publication

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup

	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64

	optionalLogger
}

// NewPublisher creates a publisher with room for buffer pending messages.
func NewPublisher(client MessagePublisher, buffer int, logger Logger) *Publisher {
	if buffer <= 0 {
		buffer = defaultPublishBuffer
	}
	p := &Publisher{
		client: client,
		queue:  make(chan Publication, buffer),
	}
	p.set(logger)
	return p
}

// Start launches the publishing goroutine. Calling it again has no effect.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	p.wg.Add(1)
	go p.run()
}

// Publish queues a retained message. It returns false if the message was
// dropped because the buffer is full or the publisher is stopped.
func (p *Publisher) Publish(topic, payload string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.dropped.Add(1)
		return false
	}

	select {
	case p.queue <- Publication{Topic: topic, Payload: payload}:
		return true
	default:
		p.dropped.Add(1)
		p.logError("publish buffer full, dropping message", "topic", topic)
		return false
	}
}

// Stop refuses new messages, publishes what is already queued and waits.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// Stats returns a snapshot of the publisher counters.
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		Published: p.published.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
		Pending:   len(p.queue),
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()

	for pub := range p.queue {
		if err := p.client.Publish(pub.Topic, []byte(pub.Payload), publishQoS, publishRetained); err != nil {
			p.failed.Add(1)
			p.logError("publish failed", "topic", pub.Topic, "error", err)
			continue
		}
		p.published.Add(1)
	}
}
