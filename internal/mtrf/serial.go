package mtrf

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"
)

// Port is the byte stream to the adapter. Serial ports and test doubles
// both satisfy it.
type Port interface {
	io.ReadWriteCloser
}

// PortOpener opens the adapter's port. Adapter calls it exactly once, from Open.
type PortOpener func() (Port, error)

// PortOptions describes the serial line settings. Zero values take the
// MTRF-64 defaults of 9600 8N1.
type PortOptions struct {
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
}

// Normalize validates the options and applies defaults for any unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 9600
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("%w: data bits %d must be between 5 and 8", ErrInvalidPortOptions, opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("%w: stop bits %d must be 1 or 2", ErrInvalidPortOptions, opts.StopBits)
	}

	switch strings.TrimSpace(strings.ToUpper(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("%w: parity %q, expected N, E or O", ErrInvalidPortOptions, opts.Parity)
	}

	return opts, nil
}

// SerialMode converts the options into the go.bug.st/serial mode.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}

	return mode, nil
}

// OpenSerial opens the adapter's USB serial device.
//
// A positive readTimeout makes Read return periodically with no data, so the
// read loop notices Close even when the adapter is silent.
func OpenSerial(path string, opts PortOptions, readTimeout time.Duration) (Port, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", path, err)
	}

	if readTimeout > 0 {
		if err := port.SetReadTimeout(readTimeout); err != nil {
			port.Close() //nolint:errcheck // best effort on error path
			return nil, fmt.Errorf("setting read timeout on %s: %w", path, err)
		}
	}

	return port, nil
}

// SerialOpener returns a PortOpener for OpenSerial.
func SerialOpener(path string, opts PortOptions, readTimeout time.Duration) PortOpener {
	return func() (Port, error) {
		return OpenSerial(path, opts, readTimeout)
	}
}
