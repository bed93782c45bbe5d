package influxdb

import "errors"

// Telemetry sink errors. Connect and HealthCheck return the first three;
// WriteObservation returns ErrSinkClosed and ErrEmptyObservation directly,
// and rejected batches reach the SetOnError callback wrapped in
// ErrBatchRejected.
var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: telemetry disabled")

	// ErrUnreachable means the server did not answer a ping.
	ErrUnreachable = errors.New("influxdb: server unreachable")

	// ErrUnhealthy means the server answered but reported itself unhealthy.
	ErrUnhealthy = errors.New("influxdb: server unhealthy")

	// ErrSinkClosed is returned for observations written after Close.
	ErrSinkClosed = errors.New("influxdb: telemetry sink closed")

	// ErrEmptyObservation is returned for an observation with no values.
	ErrEmptyObservation = errors.New("influxdb: observation has no values")

	// ErrBatchRejected wraps an asynchronous write failure.
	ErrBatchRejected = errors.New("influxdb: batch rejected")
)
