package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/noolite-bridge/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second

	// Sensor reports arrive at most every few seconds.
	writePrecision = time.Second

	// TagBridge is added to every point so several bridges can share a bucket.
	TagBridge = "bridge"
)

// pointWriter is the part of api.WriteAPI the sink uses.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
	Errors() <-chan error
}

// pinger is the part of influxdb2.Client used for health checks.
type pinger interface {
	Ping(ctx context.Context) (bool, error)
	Close()
}

// Stats counts sink activity since Connect.
type Stats struct {
	Written  uint64 // points handed to the batcher
	Rejected uint64 // asynchronous batch failures
}

// Client is the telemetry sink for bridge observations. Writes are batched
// by the InfluxDB library and never block the caller.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	server pinger
	writer pointWriter

	closed    atomic.Bool
	closeOnce sync.Once

	written  atomic.Uint64
	rejected atomic.Uint64

	mu      sync.RWMutex
	onError func(err error)
}

// Connect pings the server and returns a sink writing to cfg.Bucket.
// Every point carries a bridge=bridgeID tag.
func Connect(ctx context.Context, cfg config.InfluxDBConfig, bridgeID string) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(batchSize(cfg)).
		SetFlushInterval(uint(flushInterval(cfg).Milliseconds())). // #nosec G115 -- positive by construction
		SetPrecision(writePrecision).
		SetUseGZip(true)
	if bridgeID != "" {
		opts.AddDefaultTag(TagBridge, bridgeID)
	}
	server := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	if err := ping(pingCtx, server); err != nil {
		server.Close()
		return nil, err
	}

	return newClient(server, server.WriteAPI(cfg.Org, cfg.Bucket)), nil
}

func newClient(server pinger, writer pointWriter) *Client {
	c := &Client{
		server: server,
		writer: writer,
	}
	go c.watchErrors(writer.Errors())
	return c
}

func batchSize(cfg config.InfluxDBConfig) uint {
	if cfg.BatchSize <= 0 {
		return defaultBatchSize
	}
	return uint(cfg.BatchSize)
}

func flushInterval(cfg config.InfluxDBConfig) time.Duration {
	if cfg.FlushInterval <= 0 {
		return defaultFlushInterval
	}
	return time.Duration(cfg.FlushInterval) * time.Second
}

func ping(ctx context.Context, server pinger) error {
	healthy, err := server.Ping(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	if !healthy {
		return ErrUnhealthy
	}
	return nil
}

// watchErrors counts and forwards asynchronous write failures until the
// write API closes its error channel.
func (c *Client) watchErrors(errs <-chan error) {
	for err := range errs {
		c.rejected.Add(1)

		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()
		if callback != nil {
			callback(fmt.Errorf("%w: %w", ErrBatchRejected, err))
		}
	}
}

// SetOnError sets the callback for rejected batches.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	c.onError = callback
	c.mu.Unlock()
}

// WriteObservation queues one observation for the next batch.
func (c *Client) WriteObservation(obs Observation) error {
	if c.closed.Load() {
		return ErrSinkClosed
	}
	point := NewObservationPoint(obs)
	if point == nil {
		return fmt.Errorf("%w: channel %d", ErrEmptyObservation, obs.Channel)
	}
	c.writer.WritePoint(point)
	c.written.Add(1)
	return nil
}

// Stats returns the sink counters.
func (c *Client) Stats() Stats {
	return Stats{
		Written:  c.written.Load(),
		Rejected: c.rejected.Load(),
	}
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.closed.Load() {
		return ErrSinkClosed
	}
	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	return ping(checkCtx, c.server)
}

// Close flushes queued points and closes the connection. It is idempotent
// and safe on a nil client.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.writer.Flush()
		c.server.Close()
	})
	return nil
}
