package noolite

import "errors"

// Domain errors for the nooLite bridge package.
var (
	// ErrUnclassifiedEvent is returned when a reception's (mode, command,
	// result) triple matches no classification row. It indicates a protocol
	// or adapter-driver defect and is surfaced on Bridge.Fatal.
	ErrUnclassifiedEvent = errors.New("noolite: unclassified reception")

	// ErrUnrecognizedCommand is returned for a command payload other than
	// "0" or "1".
	ErrUnrecognizedCommand = errors.New("noolite: unrecognized command payload")

	// ErrActivationFailed is returned when the adapter cannot be opened.
	ErrActivationFailed = errors.New("noolite: adapter activation failed")

	// ErrAlreadyStarted is returned by a second call to Bridge.Start.
	ErrAlreadyStarted = errors.New("noolite: bridge already started")
)
