package noolite

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Transmitter is the per-channel radio capability set of the adapter driver.
// *mtrf.Adapter and *mtrf.MockAdapter implement it.
type Transmitter interface {
	On(channel uint8) error
	Off(channel uint8) error
	SetBrightness(channel uint8, level uint8) error
	ReadState(channel uint8) error
}

// Opener connects the physical adapter.
type Opener interface {
	Open(ctx context.Context) error
}

// Action is one logical radio action. It may span several transmissions;
// the queue waits the inter-command delay after every step.
type Action struct {
	// Name labels the action in logs, e.g. "on" or "read_state".
	Name    string
	Channel uint8
	Steps   []func() error
}

// Enqueuer accepts radio actions without blocking.
type Enqueuer interface {
	Enqueue(action Action)
}

// QueueStats is a snapshot of queue counters.
type QueueStats struct {
	Depth    int    `json:"depth"`
	Executed uint64 `json:"executed"`
	Failed   uint64 `json:"failed"`
	Dropped  uint64 `json:"dropped"`
}

// Queue serialises radio actions onto a single worker and enforces a fixed
// delay between transmissions. Enqueue never blocks; the worker is the only
// goroutine that drives the adapter.
//
// Thread Safety: All methods are safe for concurrent use.
type Queue struct {
	opener Opener
	delay  time.Duration

	mu      sync.Mutex
	pending []Action
	stopped bool
	wake    chan struct{}

	activateMu sync.Mutex
	active     atomic.Bool
	workerDone chan struct{}

	executed atomic.Uint64
	failed   atomic.Uint64
	dropped  atomic.Uint64

	optionalLogger
}

// NewQueue creates a queue that opens the adapter through opener on first
// activation and sleeps delay after each transmission.
func NewQueue(opener Opener, delay time.Duration, logger Logger) *Queue {
	q := &Queue{
		opener:     opener,
		delay:      delay,
		wake:       make(chan struct{}, 1),
		workerDone: make(chan struct{}),
	}
	q.set(logger)
	return q
}

// Enqueue appends an action to the FIFO and returns immediately.
// Actions enqueued after the worker has stopped are dropped.
func (q *Queue) Enqueue(action Action) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		q.dropped.Add(1)
		q.logDebug("queue stopped, dropping action", "action", action.Name, "channel", action.Channel)
		return
	}
	q.pending = append(q.pending, action)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Activate opens the adapter and starts the worker. It is idempotent: once
// activated, further calls return nil without reopening. A failed open may be
// retried. The worker runs until ctx is cancelled.
func (q *Queue) Activate(ctx context.Context) error {
	if q.active.Load() {
		return nil
	}

	q.activateMu.Lock()
	defer q.activateMu.Unlock()

	if q.active.Load() {
		return nil
	}
	if err := q.opener.Open(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrActivationFailed, err)
	}
	q.active.Store(true)

	go q.run(ctx)
	q.logInfo("command queue active", "delay", q.delay)
	return nil
}

// Active reports whether the adapter has been opened.
func (q *Queue) Active() bool {
	return q.active.Load()
}

// Wait blocks until the worker has exited. It returns at once if the queue
// was never activated.
func (q *Queue) Wait() {
	if !q.active.Load() {
		return
	}
	<-q.workerDone
}

// Len returns the number of actions waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Depth:    q.Len(),
		Executed: q.executed.Load(),
		Failed:   q.failed.Load(),
		Dropped:  q.dropped.Load(),
	}
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.workerDone)
	defer q.shutdown()

	for {
		action, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}

		q.execute(action)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (q *Queue) pop() (Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Action{}, false
	}
	action := q.pending[0]
	q.pending[0] = Action{}
	q.pending = q.pending[1:]
	return action, true
}

// execute runs every step of an action, pausing after each one. A failing
// step abandons the rest of its action.
func (q *Queue) execute(action Action) {
	for i, step := range action.Steps {
		err := step()
		time.Sleep(q.delay)
		if err != nil {
			q.failed.Add(1)
			q.logError("radio action failed",
				"action", action.Name,
				"channel", action.Channel,
				"step", i,
				"error", err)
			return
		}
	}
	q.executed.Add(1)
	q.logDebug("radio action executed", "action", action.Name, "channel", action.Channel)
}

// shutdown discards whatever is still pending.
func (q *Queue) shutdown() {
	q.mu.Lock()
	n := len(q.pending)
	q.pending = nil
	q.stopped = true
	q.mu.Unlock()

	if n > 0 {
		q.dropped.Add(uint64(n))
		q.logWarn("command queue stopped, discarding pending actions", "count", n)
	}
}
