package noolite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func activeQueue(t *testing.T, delay time.Duration) (*Queue, *MockAdapter, context.CancelFunc) {
	t.Helper()
	adapter := NewMockAdapter()
	q := NewQueue(adapter, delay, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := q.Activate(ctx); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	t.Cleanup(func() {
		cancel()
		q.Wait()
	})
	return q, adapter, cancel
}

func TestQueueFIFOWithDelay(t *testing.T) {
	const delay = 20 * time.Millisecond
	q, _, _ := activeQueue(t, delay)

	var mu sync.Mutex
	var order []int
	var times []time.Time

	const n = 5
	for i := 0; i < n; i++ {
		i := i
		q.Enqueue(Action{Name: "count", Steps: []func() error{func() error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, i)
			times = append(times, time.Now())
			return nil
		}}})
	}

	waitFor(t, "all actions", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == n
	})

	mu.Lock()
	defer mu.Unlock()
	for i, got := range order {
		if got != i {
			t.Fatalf("execution order = %v, want FIFO", order)
		}
	}
	for i := 1; i < len(times); i++ {
		if gap := times[i].Sub(times[i-1]); gap < delay {
			t.Errorf("gap between action %d and %d = %v, want >= %v", i-1, i, gap, delay)
		}
	}
}

func TestQueueDelayAfterEveryStep(t *testing.T) {
	const delay = 20 * time.Millisecond
	q, adapter, _ := activeQueue(t, delay)

	q.Enqueue(Action{Name: "on", Channel: 3, Steps: []func() error{
		func() error { return adapter.SetBrightness(3, 100) },
		func() error { return adapter.On(3) },
	}})

	waitFor(t, "two transmissions", func() bool { return len(adapter.Calls()) == 2 })

	adapter.mu.Lock()
	gap := adapter.callTimes[1].Sub(adapter.callTimes[0])
	adapter.mu.Unlock()
	if gap < delay {
		t.Errorf("gap between steps = %v, want >= %v", gap, delay)
	}
}

func TestQueueFailedStepSkipsRestOfAction(t *testing.T) {
	q, adapter, _ := activeQueue(t, time.Millisecond)

	q.Enqueue(Action{Name: "broken", Channel: 1, Steps: []func() error{
		func() error { return errors.New("serial write failed") },
		func() error { return adapter.On(1) },
	}})
	q.Enqueue(Action{Name: "next", Channel: 2, Steps: []func() error{
		func() error { return adapter.Off(2) },
	}})

	waitFor(t, "second action", func() bool { return len(adapter.Calls()) == 1 })
	waitFor(t, "counters", func() bool { return q.Stats().Executed == 1 })

	if calls := adapter.Calls(); calls[0] != "off 2" {
		t.Errorf("calls = %v, want only [off 2]", calls)
	}
	if stats := q.Stats(); stats.Failed != 1 {
		t.Errorf("Failed = %d, want 1", stats.Failed)
	}
}

func TestQueueActivateIdempotent(t *testing.T) {
	adapter := NewMockAdapter()
	q := NewQueue(adapter, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		q.Wait()
	}()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := q.Activate(ctx); err != nil {
				t.Errorf("Activate() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if err := q.Activate(ctx); err != nil {
		t.Fatalf("Activate() again error = %v", err)
	}
	if adapter.Opens() != 1 {
		t.Errorf("adapter opened %d times, want 1", adapter.Opens())
	}
	if !q.Active() {
		t.Error("Active() = false after activation")
	}
}

func TestQueueActivateFailure(t *testing.T) {
	adapter := NewMockAdapter()
	adapter.openErr = errors.New("no such port")
	q := NewQueue(adapter, 0, nil)

	err := q.Activate(context.Background())
	if !errors.Is(err, ErrActivationFailed) {
		t.Fatalf("Activate() error = %v, want ErrActivationFailed", err)
	}
	if q.Active() {
		t.Error("Active() = true after failed open")
	}
	q.Wait() // never activated: must not block

	adapter.mu.Lock()
	adapter.openErr = nil
	adapter.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		q.Wait()
	}()
	if err := q.Activate(ctx); err != nil {
		t.Fatalf("retry Activate() error = %v", err)
	}
}

func TestQueueRunsActionsEnqueuedBeforeActivation(t *testing.T) {
	adapter := NewMockAdapter()
	q := NewQueue(adapter, 0, nil)

	q.Enqueue(Action{Name: "on", Steps: []func() error{func() error { return adapter.On(9) }}})
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", q.Len())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		q.Wait()
	}()
	if err := q.Activate(ctx); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "queued action", func() bool { return len(adapter.Calls()) == 1 })
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestQueueShutdownDropsPending(t *testing.T) {
	q, adapter, cancel := activeQueue(t, 0)

	started := make(chan struct{})
	release := make(chan struct{})
	q.Enqueue(Action{Name: "slow", Steps: []func() error{func() error {
		close(started)
		<-release
		return adapter.On(1)
	}}})
	<-started

	for i := 0; i < 3; i++ {
		q.Enqueue(Action{Name: "pending", Steps: []func() error{func() error { return adapter.Off(2) }}})
	}

	cancel()
	close(release)
	q.Wait()

	if calls := adapter.Calls(); len(calls) != 1 || calls[0] != "on 1" {
		t.Errorf("calls = %v, want in-flight action only", calls)
	}
	if stats := q.Stats(); stats.Dropped != 3 || stats.Depth != 0 {
		t.Errorf("Stats() = %+v, want 3 dropped and empty", stats)
	}

	q.Enqueue(Action{Name: "late"})
	if stats := q.Stats(); stats.Dropped != 4 {
		t.Errorf("Dropped after stop = %d, want 4", stats.Dropped)
	}
}

func TestQueueEnqueueDoesNotBlock(t *testing.T) {
	q := NewQueue(NewMockAdapter(), time.Hour, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			q.Enqueue(Action{Name: "noop"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked")
	}
	if q.Len() != 10000 {
		t.Errorf("Len() = %d, want 10000", q.Len())
	}
}
