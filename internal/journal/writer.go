package journal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/noolite-bridge/internal/mtrf"
)

// Writer defaults.
const (
	defaultWriterBuffer = 256
	insertTimeout       = 5 * time.Second
)

// Logger is the logging capability the writer needs.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Writer buffers journal entries and inserts them from one goroutine, so
// callers on the reception path never wait on SQLite.
type Writer struct {
	repo   Repository
	logger Logger

	entries chan Entry
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64
	written atomic.Uint64
}

// NewWriter starts a writer with the given buffer size (256 if <= 0).
func NewWriter(repo Repository, buffer int, logger Logger) *Writer {
	if buffer <= 0 {
		buffer = defaultWriterBuffer
	}
	w := &Writer{
		repo:    repo,
		logger:  logger,
		entries: make(chan Entry, buffer),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Record journals a reception with its outcome. It never blocks: when the
// buffer is full or the writer is closed the entry is dropped and counted.
func (w *Writer) Record(rec mtrf.Reception, outcome Outcome, detail string) {
	entry := Entry{
		Mode:      uint8(rec.Mode),
		Command:   uint8(rec.Command),
		Result:    uint8(rec.Result),
		Channel:   rec.Channel,
		Data:      rec.Data,
		DeviceID:  rec.DeviceID,
		Outcome:   outcome,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.dropped.Add(1)
		return
	}

	select {
	case w.entries <- entry:
	default:
		if w.dropped.Add(1) == 1 && w.logger != nil {
			w.logger.Warn("journal buffer full, dropping entries")
		}
	}
}

// Close stops accepting entries, writes what is buffered and returns.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.entries)
	w.mu.Unlock()

	w.wg.Wait()
	return nil
}

// Dropped returns how many entries were discarded.
func (w *Writer) Dropped() uint64 {
	return w.dropped.Load()
}

// Written returns how many entries were stored.
func (w *Writer) Written() uint64 {
	return w.written.Load()
}

func (w *Writer) run() {
	defer w.wg.Done()

	for entry := range w.entries {
		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		err := w.repo.Create(ctx, &entry)
		cancel()

		if err != nil {
			if w.logger != nil {
				w.logger.Error("journal insert failed", "error", err, "outcome", string(entry.Outcome))
			}
			continue
		}
		w.written.Add(1)
	}
}
