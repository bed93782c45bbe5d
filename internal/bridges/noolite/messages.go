package noolite

import (
	"fmt"
	"strconv"
	"time"

	"github.com/nerrad567/noolite-bridge/internal/device"
	"github.com/nerrad567/noolite-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/noolite-bridge/internal/mtrf"
)

// Bus payloads for command and state topics.
const (
	PayloadOff = "0"
	PayloadOn  = "1"
)

// Publication QoS and retention. Every bridge publication is retained so late
// subscribers see the last known state.
const (
	publishQoS      byte = 1
	publishRetained      = true
)

// SwitchCommand is a recognised command topic payload.
type SwitchCommand bool

// Switch commands.
const (
	CommandOff SwitchCommand = false
	CommandOn  SwitchCommand = true
)

// ParseCommand interprets a command topic payload. Only "0" and "1" are
// recognised; anything else returns ErrUnrecognizedCommand.
func ParseCommand(payload []byte) (SwitchCommand, error) {
	switch string(payload) {
	case PayloadOff:
		return CommandOff, nil
	case PayloadOn:
		return CommandOn, nil
	default:
		return CommandOff, fmt.Errorf("%w: %q", ErrUnrecognizedCommand, payload)
	}
}

// Payload returns the state payload echoing c.
func (c SwitchCommand) Payload() string {
	return statePayload(bool(c))
}

func (c SwitchCommand) String() string {
	if c {
		return "on"
	}
	return "off"
}

func statePayload(on bool) string {
	if on {
		return PayloadOn
	}
	return PayloadOff
}

// formatTemperature renders °C with one fractional digit.
func formatTemperature(celsius float64) string {
	return strconv.FormatFloat(celsius, 'f', 1, 64)
}

// formatHumidity renders a relative humidity percentage as an integer.
func formatHumidity(pct int) string {
	return strconv.Itoa(pct)
}

// Publication is one bus message produced by the bridge.
type Publication struct {
	Topic   string
	Payload string
}

func (p Publication) String() string {
	return p.Topic + "=" + p.Payload
}

// Observation is one telemetry sample derived from a reception.
// Exactly one of Temperature, Humidity or On is set.
type Observation struct {
	Channel     uint8
	Kind        device.Kind
	Topic       string
	Temperature *float64
	Humidity    *int
	On          *bool
	Time        time.Time
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bus and the adapter are both connected.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bus or the adapter is disconnected.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is the retained health report.
// Topic: noolite/bridge/health
// QoS: 1, Retained: Yes
type HealthMessage struct {
	// Bridge is the bridge identifier.
	Bridge string `json:"bridge"`

	// Timestamp is when the report was generated (UTC).
	Timestamp time.Time `json:"timestamp"`

	Status  HealthStatus `json:"status"`
	Version string       `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	MQTTConnected bool `json:"mqtt_connected"`

	// MQTTReconnects counts broker reconnect attempts since start.
	MQTTReconnects uint64 `json:"mqtt_reconnects"`

	Adapter    *AdapterStatus    `json:"adapter,omitempty"`
	Statistics *BridgeStatistics `json:"statistics,omitempty"`

	// Reason explains a degraded status.
	Reason string `json:"reason,omitempty"`
}

// AdapterStatus describes the MTRF-64 link.
type AdapterStatus struct {
	Connected      bool      `json:"connected"`
	TxMode         string    `json:"tx_mode"`
	FramesReceived uint64    `json:"frames_received"`
	FramesSent     uint64    `json:"frames_sent"`
	DecodeErrors   uint64    `json:"decode_errors"`
	LastActivity   time.Time `json:"last_activity,omitzero"`
}

// BridgeStatistics contains operational counters.
type BridgeStatistics struct {
	Devices      device.Stats   `json:"devices"`
	Queue        QueueStats     `json:"queue"`
	Publisher    PublisherStats `json:"publisher"`
	Unclassified uint64         `json:"unclassified"`
}

// HealthSnapshot is the live state a health report is built from.
type HealthSnapshot struct {
	MQTTConnected    bool
	MQTTReconnecting bool
	MQTTReconnects   uint64
	AdapterConnected bool
	TxMode           mtrf.Mode
	Adapter          mtrf.Stats
	Statistics       BridgeStatistics
}

// NewHealthMessage creates a health report from a snapshot.
func NewHealthMessage(bridgeID, version string, status HealthStatus, snap HealthSnapshot, startTime time.Time) HealthMessage {
	stats := snap.Statistics
	return HealthMessage{
		Bridge:         bridgeID,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        version,
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		MQTTConnected:  snap.MQTTConnected,
		MQTTReconnects: snap.MQTTReconnects,
		Adapter: &AdapterStatus{
			Connected:      snap.AdapterConnected,
			TxMode:         snap.TxMode.String(),
			FramesReceived: snap.Adapter.FramesReceived,
			FramesSent:     snap.Adapter.FramesSent,
			DecodeErrors:   snap.Adapter.DecodeErrors,
			LastActivity:   snap.Adapter.LastActivity,
		},
		Statistics: &stats,
	}
}

// HealthTopic returns the MQTT topic for health reports.
func HealthTopic() string {
	return mqtt.Topics{}.BridgeHealth()
}
