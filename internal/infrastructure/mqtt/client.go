package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/noolite-bridge/internal/infrastructure/config"
)

// ConnState is the client's view of the broker link.
type ConnState int

const (
	// StateConnected means the last connect attempt succeeded.
	StateConnected ConnState = iota

	// StateLost means the connection dropped and no retry has started yet.
	StateLost

	// StateReconnecting means paho is retrying the broker.
	StateReconnecting

	// StateClosed means Close was called.
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateLost:
		return "lost"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
}

// Status is a snapshot of the connection for health reports.
type Status struct {
	State ConnState

	// Reconnects counts reconnect attempts since Connect.
	Reconnects uint64

	// LastError is the error that dropped the connection, if any.
	LastError error

	// Since is when State was entered.
	Since time.Time
}

// Client wraps paho.mqtt.golang for the bridge.
//
// Besides publishing, the client owns the bridge's command topic set:
// SubscribeCommands registers it with one SUBSCRIBE and the client
// replays it after every reconnect, because sessions are clean.
//
// All methods are safe for concurrent use.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	commands commandSet
	cmdMu    sync.Mutex

	state      ConnState
	since      time.Time
	lastErr    error
	stateMu    sync.RWMutex
	reconnects atomic.Uint64

	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MessageHandler is the callback for messages on a command topic.
// It is called from paho's delivery goroutine, in arrival order, so it
// must not block.
type MessageHandler = func(topic string, payload []byte)

// Connect establishes a connection to the MQTT broker.
//
// It performs the following setup:
//  1. Builds connection options from config (broker URL, auth, TLS)
//  2. Configures Last Will and Testament (LWT) on noolite/system/status
//  3. Sets up auto-reconnect with exponential backoff
//  4. Attempts initial connection with timeout
//
// The online status is published from the connect handler, so it is
// repeated after every reconnect.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	opts := buildClientOptions(cfg)
	if err := configureLWT(opts, cfg.Broker.ClientID); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:     cfg,
		options: opts,
		state:   StateLost,
		since:   time.Now(),
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		c.handleReconnecting()
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs asynchronously; mark connected now so
	// callers can subscribe immediately after Connect returns.
	c.setState(StateConnected, nil)

	return c, nil
}

func (c *Client) handleConnect() {
	attempts := c.reconnects.Load()
	c.setState(StateConnected, nil)

	c.restoreCommands()
	c.publishStatus(StatusOnline, "")

	if logger := c.getLogger(); logger != nil && attempts > 0 {
		logger.Info("MQTT connection restored", "reconnects", attempts)
	}
}

func (c *Client) handleDisconnect(err error) {
	c.setState(StateLost, err)

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

func (c *Client) handleReconnecting() {
	attempt := c.reconnects.Add(1)

	c.stateMu.Lock()
	if c.state != StateReconnecting {
		c.state = StateReconnecting
		c.since = time.Now()
	}
	c.stateMu.Unlock()

	if logger := c.getLogger(); logger != nil {
		logger.Warn("MQTT reconnecting", "attempt", attempt)
	}
}

func (c *Client) setState(state ConnState, err error) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.state == StateClosed {
		return
	}
	c.state = state
	c.since = time.Now()
	if err != nil {
		c.lastErr = err
	}
}

// Status returns the current connection state and reconnect count.
func (c *Client) Status() Status {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return Status{
		State:      c.state,
		Reconnects: c.reconnects.Load(),
		LastError:  c.lastErr,
		Since:      c.since,
	}
}

func (c *Client) publishStatus(status, reason string) pahomqtt.Token {
	payload, err := buildStatusPayload(c.cfg.Broker.ClientID, status, reason)
	if err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Error("encoding MQTT status", "status", status, "error", err)
		}
		return nil
	}
	return c.client.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, payload)
}

// Close gracefully disconnects from the MQTT broker.
//
// It publishes a graceful offline status (different from the LWT crash
// status), waits for pending operations and disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		if token := c.publishStatus(StatusOffline, ReasonGracefulShutdown); token != nil {
			token.WaitTimeout(defaultPublishTimeout)
		}
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.stateMu.Lock()
	c.state = StateClosed
	c.since = time.Now()
	c.stateMu.Unlock()

	return nil
}

// HealthCheck verifies the MQTT connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		if st := c.Status(); st.State == StateReconnecting {
			return fmt.Errorf("%w: reconnecting (attempt %d)", ErrNotConnected, st.Reconnects)
		}
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.stateMu.RLock()
	connected := c.state == StateConnected
	c.stateMu.RUnlock()
	return connected && c.client != nil && c.client.IsConnected()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for reconnects, handler panics and resubscribe
// failures.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler adds panic recovery so one bad message cannot kill paho's
// delivery goroutine.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		handler(msg.Topic(), msg.Payload())
	}
}
