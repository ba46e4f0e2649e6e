// Package sessions tracks live relay connections so shutdown can drain
// them: stop accepting new ones, wait for in-flight calls, and cancel
// whatever outlives the grace period.
package sessions

import (
	"context"
	"sync"
)

type Tracker struct {
	mu     sync.Mutex
	nextID uint64
	conns  map[uint64]*trackedConn
	wg     sync.WaitGroup
}

type trackedConn struct {
	cancel func()
	once   sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{conns: make(map[uint64]*trackedConn)}
}

// Register adds a connection with its cancel function and returns the
// matching unregister. Unregister is idempotent; calling it twice must
// not unbalance the wait group.
func (t *Tracker) Register(cancel func()) (unregister func()) {
	if t == nil {
		return func() {}
	}

	entry := &trackedConn{cancel: cancel}

	t.mu.Lock()
	if t.conns == nil {
		t.conns = make(map[uint64]*trackedConn)
	}
	t.nextID++
	id := t.nextID
	t.conns[id] = entry
	t.wg.Add(1)
	t.mu.Unlock()

	return func() {
		entry.once.Do(func() {
			t.mu.Lock()
			delete(t.conns, id)
			t.mu.Unlock()
			t.wg.Done()
		})
	}
}

func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// CancelAll invokes every registered cancel outside the tracker lock.
func (t *Tracker) CancelAll() (canceled int) {
	if t == nil {
		return 0
	}

	var cancels []func()
	t.mu.Lock()
	for _, entry := range t.conns {
		if entry == nil || entry.cancel == nil {
			continue
		}
		cancels = append(cancels, entry.cancel)
	}
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every connection has unregistered or the context
// expires. It reports whether the tracker fully drained.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}
	if ctx == nil {
		t.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
