package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/noolite-bridge/internal/infrastructure/config"
)

// Connection constants.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is in milliseconds.
	defaultDisconnectQuiesce = 1000

	defaultKeepAlive = 60 * time.Second

	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12
)

// brokerURL builds the paho broker URL from config.
func brokerURL(cfg config.MQTTConfig) string {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
}

// buildClientOptions creates paho MQTT options from bridge config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID for identification
//   - Authentication credentials (if provided)
//   - Auto-reconnect with exponential backoff
//   - TLS configuration (if enabled)
//   - Clean session mode
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Subscriptions are restored by the client itself, so no broker session is kept.
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	// Commands for one switch must reach the router in arrival order.
	opts.SetOrderMatters(true)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}

// Status values and reasons on noolite/system/status.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"

	ReasonUnexpectedDisconnect = "unexpected_disconnect"
	ReasonGracefulShutdown     = "graceful_shutdown"
)

// statusPayload is the retained body of noolite/system/status.
type statusPayload struct {
	Status    string    `json:"status"`
	ClientID  string    `json:"client_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func buildStatusPayload(clientID, status, reason string) ([]byte, error) {
	return json.Marshal(statusPayload{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Truncate(time.Second),
	})
}

// configureLWT sets up Last Will and Testament for offline detection.
//
// Topic: noolite/system/status
// QoS: 1
// Retained: true (new subscribers see last status)
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) error {
	payload, err := buildStatusPayload(clientID, StatusOffline, ReasonUnexpectedDisconnect)
	if err != nil {
		return fmt.Errorf("encoding will payload: %w", err)
	}
	opts.SetBinaryWill(Topics{}.SystemStatus(), payload, 1, true)
	return nil
}
