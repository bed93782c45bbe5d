package mtrf

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MockAdapter stands in for the MTRF-64 when no hardware is attached.
//
// Every call is logged at warn level and nothing is transmitted. The
// reception and lifecycle channels stay silent until Close closes them.
type MockAdapter struct {
	logger Logger

	receptions chan Reception
	lifecycle  chan LifecycleEvent
	closeOnce  sync.Once

	framesTx     atomic.Uint64
	lastActivity atomic.Int64
}

// NewMockAdapter creates a logging-only adapter.
func NewMockAdapter(logger Logger) *MockAdapter {
	return &MockAdapter{
		logger:     logger,
		receptions: make(chan Reception),
		lifecycle:  make(chan LifecycleEvent),
	}
}

// Open logs the call.
func (m *MockAdapter) Open(_ context.Context) error {
	m.warn("Open")
	return nil
}

// Close closes the reception and lifecycle channels. It is idempotent.
func (m *MockAdapter) Close() error {
	m.closeOnce.Do(func() {
		m.warn("Close")
		close(m.receptions)
		close(m.lifecycle)
	})
	return nil
}

// Receptions returns a channel that only ever closes.
func (m *MockAdapter) Receptions() <-chan Reception {
	return m.receptions
}

// Lifecycle returns a channel that only ever closes.
func (m *MockAdapter) Lifecycle() <-chan LifecycleEvent {
	return m.lifecycle
}

// On logs the call.
func (m *MockAdapter) On(channel uint8) error {
	m.warn("On", "channel", channel)
	return nil
}

// Off logs the call.
func (m *MockAdapter) Off(channel uint8) error {
	m.warn("Off", "channel", channel)
	return nil
}

// SetBrightness logs the call.
func (m *MockAdapter) SetBrightness(channel uint8, level uint8) error {
	m.warn("SetBrightness", "channel", channel, "brightness", level)
	return nil
}

// ReadState logs the call.
func (m *MockAdapter) ReadState(channel uint8) error {
	m.warn("ReadState", "channel", channel)
	return nil
}

// Stats counts the calls that would have been transmitted.
func (m *MockAdapter) Stats() Stats {
	s := Stats{FramesSent: m.framesTx.Load()}
	if ns := m.lastActivity.Load(); ns != 0 {
		s.LastActivity = time.Unix(0, ns).UTC()
	}
	return s
}

func (m *MockAdapter) warn(method string, args ...any) {
	if method != "Open" && method != "Close" {
		m.framesTx.Add(1)
		m.lastActivity.Store(time.Now().UnixNano())
	}
	if m.logger != nil {
		m.logger.Warn("mock adapter "+method, args...)
	}
}
