package noolite

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// defaultHealthInterval is used when no interval is configured.
const defaultHealthInterval = 30 * time.Second

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	// Publish sends a message to a topic with the specified QoS and retention.
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// HealthReporter manages periodic health status reporting.
// It publishes health messages to MQTT at regular intervals.
type HealthReporter struct {
	bridgeID  string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	snapshot  func() HealthSnapshot

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	optionalLogger
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// BridgeID is the bridge identifier for health messages.
	BridgeID string

	// Version is the bridge software version.
	Version string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages.
	Publisher HealthPublisher

	// Snapshot returns the live bridge state for each report.
	Snapshot func() HealthSnapshot
}

// NewHealthReporter creates a new health reporter.
// Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}

	return &HealthReporter{
		bridgeID:  cfg.BridgeID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		snapshot:  cfg.Snapshot,
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting until ctx is cancelled or Stop is
// called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop gracefully stops health reporting.
// Publishes a final "stopping" status before returning.
// Safe to call multiple times (uses sync.Once).
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		if err := h.publishStatus(HealthStopping, ""); err != nil {
			h.logDebug("failed to publish stopping status", "error", err)
		}
	})
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus(h.collect())
	return h.publishStatus(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", "error", err)
			}
		}
	}
}

func (h *HealthReporter) collect() HealthSnapshot {
	if h.snapshot == nil {
		return HealthSnapshot{}
	}
	return h.snapshot()
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus(snap HealthSnapshot) (HealthStatus, string) {
	if !snap.MQTTConnected {
		if snap.MQTTReconnecting {
			return HealthDegraded, fmt.Sprintf("MQTT reconnecting (attempt %d)", snap.MQTTReconnects)
		}
		return HealthDegraded, "MQTT disconnected"
	}
	if !snap.AdapterConnected {
		return HealthDegraded, "adapter disconnected"
	}
	return HealthHealthy, ""
}

// publishStatus publishes a health status message.
func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	msg := NewHealthMessage(h.bridgeID, h.version, status, h.collect(), h.startTime)
	msg.Reason = reason

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.publisher.Publish(HealthTopic(), payload, publishQoS, true)
}
