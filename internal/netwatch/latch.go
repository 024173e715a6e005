package netwatch

import (
	"context"
	"sync"
)

// latch is a one-shot, idempotent, multi-await broadcast signal. Resolving
// it more than once is a no-op. Awaiting before or after resolution both
// work.
type latch struct {
	once sync.Once
	ch   chan struct{}
}

func newLatch() *latch {
	return &latch{ch: make(chan struct{})}
}

func (l *latch) resolve() {
	l.once.Do(func() { close(l.ch) })
}

// wait blocks until the latch resolves or ctx is cancelled.
func (l *latch) wait(ctx context.Context) error {
	select {
	case <-l.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// requestLatches bundles the two ordered per-request signals the
// Event Demultiplexer needs to sequence its handlers on.
type requestLatches struct {
	requestWillBeSent *latch
	responseReceived  *latch
}

// latchSet creates latches lazily on first access, by either producer or
// consumer, so neither side needs to know which one will run first.
// Grounded on the get-or-insert-under-lock idiom of
// storage.WriterRegistry.GetWriter.
type latchSet struct {
	mu sync.Mutex
	m  map[string]*requestLatches
}

func newLatchSet() *latchSet {
	return &latchSet{m: make(map[string]*requestLatches)}
}

// get returns (creating if absent) the latches for requestID.
func (s *latchSet) get(requestID string) *requestLatches {
	s.mu.Lock()
	defer s.mu.Unlock()
	rl, ok := s.m[requestID]
	if !ok {
		rl = &requestLatches{requestWillBeSent: newLatch(), responseReceived: newLatch()}
		s.m[requestID] = rl
	}
	return rl
}
