package mtrf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Default channel sizes.
const (
	defaultReceptionBuffer = 64
	lifecycleBuffer        = 16
	readChunkSize          = 64
)

// LifecycleKind classifies adapter lifecycle events.
type LifecycleKind int

// Lifecycle event kinds.
const (
	LifecycleConnected LifecycleKind = iota
	LifecycleDisconnected
	LifecycleError
)

func (k LifecycleKind) String() string {
	switch k {
	case LifecycleConnected:
		return "connected"
	case LifecycleDisconnected:
		return "disconnected"
	case LifecycleError:
		return "error"
	default:
		return fmt.Sprintf("LifecycleKind(%d)", int(k))
	}
}

// LifecycleEvent reports a change in the adapter connection.
type LifecycleEvent struct {
	Kind LifecycleKind
	Err  error
	At   time.Time
}

// Stats is a snapshot of adapter traffic counters.
type Stats struct {
	FramesReceived uint64    `json:"frames_received"`
	FramesSent     uint64    `json:"frames_sent"`
	DecodeErrors   uint64    `json:"decode_errors"`
	LastActivity   time.Time `json:"last_activity,omitzero"`
}

// Logger is the logging capability the driver needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures an Adapter.
type Options struct {
	// TxMode is ModeTXF (nooLite-F, default) or ModeTX (legacy nooLite).
	TxMode Mode
	// ReceptionBuffer is the capacity of the Receptions channel.
	ReceptionBuffer int
	Logger          Logger
}

// Adapter drives an MTRF-64 over a Port.
//
// Receptions and lifecycle events are delivered on channels owned by the
// adapter. Transmit methods are serialised; in the bridge the command queue
// worker is their only caller.
type Adapter struct {
	openPort PortOpener
	txMode   Mode
	logger   Logger

	mu      sync.Mutex
	port    Port
	started bool // port opened, read loop running
	ready   bool // service mode left
	closed  bool

	writeMu sync.Mutex

	receptions chan Reception
	lifecycle  chan LifecycleEvent
	lcMu       sync.RWMutex
	lcClosed   bool

	done      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once

	framesRx     atomic.Uint64
	framesTx     atomic.Uint64
	decodeErrors atomic.Uint64
	lastActivity atomic.Int64
}

// NewAdapter creates an adapter that will open its port with openPort.
func NewAdapter(openPort PortOpener, opts Options) (*Adapter, error) {
	if openPort == nil {
		return nil, errors.New("mtrf: port opener is required")
	}
	switch opts.TxMode {
	case ModeTX, ModeTXF:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTxMode, opts.TxMode)
	}
	if opts.ReceptionBuffer <= 0 {
		opts.ReceptionBuffer = defaultReceptionBuffer
	}

	return &Adapter{
		openPort:   openPort,
		txMode:     opts.TxMode,
		logger:     opts.Logger,
		receptions: make(chan Reception, opts.ReceptionBuffer),
		lifecycle:  make(chan LifecycleEvent, lifecycleBuffer),
		done:       make(chan struct{}),
		loopDone:   make(chan struct{}),
	}, nil
}

// Open opens the port, starts the read loop and takes the adapter out of
// service mode. If leaving service mode fails the port stays open, and the
// next Open retries only that step. Once it succeeds Open returns
// ErrAlreadyOpen.
func (a *Adapter) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mtrf: open: %w", err)
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrNotOpen
	}
	if a.ready {
		a.mu.Unlock()
		return ErrAlreadyOpen
	}
	if !a.started {
		port, err := a.openPort()
		if err != nil {
			a.mu.Unlock()
			return fmt.Errorf("mtrf: open port: %w", err)
		}
		a.port = port
		a.started = true
		go a.readLoop(port)
	}
	a.mu.Unlock()

	if err := a.send(Request{Mode: ModeService, Action: ActionSendCommand, Command: CommandOff}); err != nil {
		return fmt.Errorf("mtrf: exit service mode: %w", err)
	}

	a.mu.Lock()
	a.ready = true
	a.mu.Unlock()

	a.emit(LifecycleConnected, nil)
	a.logInfo("MTRF adapter opened", "tx_mode", a.txMode.String())
	return nil
}

// Close stops the read loop and closes the port. It is idempotent.
func (a *Adapter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		port := a.port
		started := a.started
		a.mu.Unlock()

		close(a.done)

		if port != nil {
			if cerr := port.Close(); cerr != nil {
				err = fmt.Errorf("mtrf: close port: %w", cerr)
			}
		}

		if started {
			<-a.loopDone
		} else {
			close(a.receptions)
		}

		a.lcMu.Lock()
		a.lcClosed = true
		close(a.lifecycle)
		a.lcMu.Unlock()
	})
	return err
}

// Receptions returns the reception stream. It is closed when the read loop ends.
func (a *Adapter) Receptions() <-chan Reception {
	return a.receptions
}

// Lifecycle returns connection lifecycle events. It is closed by Close.
// Events are dropped when nobody drains the channel.
func (a *Adapter) Lifecycle() <-chan LifecycleEvent {
	return a.lifecycle
}

// Stats returns a snapshot of the traffic counters.
func (a *Adapter) Stats() Stats {
	s := Stats{
		FramesReceived: a.framesRx.Load(),
		FramesSent:     a.framesTx.Load(),
		DecodeErrors:   a.decodeErrors.Load(),
	}
	if ns := a.lastActivity.Load(); ns != 0 {
		s.LastActivity = time.Unix(0, ns).UTC()
	}
	return s
}

// On switches the devices bound to channel on.
func (a *Adapter) On(channel uint8) error {
	return a.send(a.command(channel, CommandOn, 0, 0))
}

// Off switches the devices bound to channel off.
func (a *Adapter) Off(channel uint8) error {
	return a.send(a.command(channel, CommandOff, 0, 0))
}

// SetBrightness sets the brightness level of the devices bound to channel.
func (a *Adapter) SetBrightness(channel uint8, level uint8) error {
	return a.send(a.command(channel, CommandSetBrightness, 1, level))
}

// ReadState asks the nooLite-F devices on channel to report their state.
// The answer arrives as a TXF SendState reception. It is always sent in TXF.
func (a *Adapter) ReadState(channel uint8) error {
	return a.send(Request{
		Mode:    ModeTXF,
		Action:  ActionSendCommand,
		Channel: channel,
		Command: CommandReadState,
	})
}

func (a *Adapter) command(channel uint8, cmd Command, format uint8, d0 byte) Request {
	return Request{
		Mode:    a.txMode,
		Action:  ActionSendCommand,
		Channel: channel,
		Command: cmd,
		Format:  format,
		Data:    [4]byte{d0},
	}
}

func (a *Adapter) send(req Request) error {
	a.mu.Lock()
	port, closed := a.port, a.closed
	a.mu.Unlock()
	if port == nil || closed {
		return ErrNotOpen
	}

	frame := Encode(req)

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	if _, err := port.Write(frame[:]); err != nil {
		a.emit(LifecycleError, err)
		return fmt.Errorf("mtrf: write %s/%s ch %d: %w", req.Mode, req.Command, req.Channel, err)
	}
	a.framesTx.Add(1)
	a.touch()
	a.logDebug("MTRF frame sent", "mode", req.Mode.String(), "command", req.Command.String(), "channel", req.Channel)
	return nil
}

// readLoop assembles response frames from the port until it closes.
func (a *Adapter) readLoop(port Port) {
	defer close(a.loopDone)
	defer close(a.receptions)

	buf := make([]byte, 0, 2*FrameSize)
	chunk := make([]byte, readChunkSize)

	for {
		n, err := port.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			var ok bool
			if buf, ok = a.consume(buf); !ok {
				a.emit(LifecycleDisconnected, nil)
				return
			}
		}

		if err != nil {
			if a.isClosing() || errors.Is(err, io.EOF) {
				a.emit(LifecycleDisconnected, nil)
				return
			}
			a.logError("MTRF port read failed", "error", err)
			a.emit(LifecycleError, err)
			a.emit(LifecycleDisconnected, err)
			return
		}

		if a.isClosing() {
			a.emit(LifecycleDisconnected, nil)
			return
		}
	}
}

// consume decodes every complete frame in buf and returns the unconsumed
// tail. It reports false when the adapter closed while delivering.
func (a *Adapter) consume(buf []byte) ([]byte, bool) {
	for {
		start := bytes.IndexByte(buf, responseStart)
		if start < 0 {
			return buf[:0], true
		}
		if start > 0 {
			a.logDebug("MTRF resync", "skipped", start)
			buf = append(buf[:0], buf[start:]...)
		}
		if len(buf) < FrameSize {
			return buf, true
		}

		resp, err := Decode(buf[:FrameSize])
		if err != nil {
			a.decodeErrors.Add(1)
			a.logWarn("MTRF frame dropped", "error", err, "frame", bytes.Clone(buf[:FrameSize]))
			buf = append(buf[:0], buf[1:]...)
			continue
		}
		buf = append(buf[:0], buf[FrameSize:]...)

		a.framesRx.Add(1)
		a.touch()

		rec := NewReception(resp)
		a.logDebug("MTRF reception", "reception", rec.String())

		select {
		case a.receptions <- rec:
		case <-a.done:
			return buf, false
		}
	}
}

func (a *Adapter) isClosing() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

func (a *Adapter) touch() {
	a.lastActivity.Store(time.Now().UnixNano())
}

// emit delivers a lifecycle event without blocking.
func (a *Adapter) emit(kind LifecycleKind, err error) {
	a.lcMu.RLock()
	defer a.lcMu.RUnlock()
	if a.lcClosed {
		return
	}
	select {
	case a.lifecycle <- LifecycleEvent{Kind: kind, Err: err, At: time.Now()}:
	default:
	}
}

func (a *Adapter) logDebug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

func (a *Adapter) logInfo(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Info(msg, args...)
	}
}

func (a *Adapter) logWarn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}

func (a *Adapter) logError(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Error(msg, args...)
	}
}
