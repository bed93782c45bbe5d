package device

import "errors"

// Domain errors for the device package.
var (
	// ErrInvalidDevice is returned when a device record fails shape validation.
	ErrInvalidDevice = errors.New("device: invalid device")

	// ErrUnknownKind is returned when a record names an unsupported kind.
	ErrUnknownKind = errors.New("device: unknown kind")

	// ErrChannelOutOfRange is returned when a channel is not within 0-255.
	ErrChannelOutOfRange = errors.New("device: channel out of range")

	// ErrDeviceFile is returned when the device list cannot be read or parsed.
	ErrDeviceFile = errors.New("device: cannot load device list")
)
