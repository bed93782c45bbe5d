package mtrf

import "errors"

// Sentinel errors for the adapter driver.
var (
	// ErrShortFrame is returned when a frame is not exactly FrameSize bytes.
	ErrShortFrame = errors.New("mtrf: frame must be 17 bytes")

	// ErrBadFraming is returned when the start or stop byte is wrong.
	ErrBadFraming = errors.New("mtrf: bad start or stop byte")

	// ErrBadChecksum is returned when the CRC byte does not match.
	ErrBadChecksum = errors.New("mtrf: checksum mismatch")

	// ErrNotOpen is returned when transmitting before Open or after Close.
	ErrNotOpen = errors.New("mtrf: adapter not open")

	// ErrAlreadyOpen is returned by a second Open.
	ErrAlreadyOpen = errors.New("mtrf: adapter already open")

	// ErrUnknownTxMode is returned for an unsupported adapter.tx_mode value.
	ErrUnknownTxMode = errors.New("mtrf: unknown transmit mode")

	// ErrInvalidPortOptions is returned when serial options cannot be normalised.
	ErrInvalidPortOptions = errors.New("mtrf: invalid serial port options")
)
