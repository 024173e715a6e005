package netwatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLatch(t *testing.T) {
	t.Run("wait_blocks_until_resolve", func(t *testing.T) {
		l := newLatch()
		done := make(chan error, 1)
		go func() { done <- l.wait(context.Background()) }()

		select {
		case err := <-done:
			t.Fatalf("wait returned before resolve: %v", err)
		case <-time.After(20 * time.Millisecond):
		}

		l.resolve()
		require.NoError(t, <-done)
	})

	t.Run("wait_after_resolve_returns_immediately", func(t *testing.T) {
		l := newLatch()
		l.resolve()
		require.NoError(t, l.wait(context.Background()))
	})

	t.Run("resolve_is_idempotent", func(t *testing.T) {
		l := newLatch()
		l.resolve()
		l.resolve()
		require.NoError(t, l.wait(context.Background()))
	})

	t.Run("wait_respects_context_cancellation", func(t *testing.T) {
		l := newLatch()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.Error(t, l.wait(ctx))
	})
}

func TestLatchSet(t *testing.T) {
	t.Run("get_creates_lazily_and_is_stable", func(t *testing.T) {
		s := newLatchSet()
		a := s.get("req-1")
		b := s.get("req-1")
		require.Same(t, a, b)
	})

	t.Run("distinct_request_ids_get_distinct_latches", func(t *testing.T) {
		s := newLatchSet()
		a := s.get("req-1")
		b := s.get("req-2")
		require.NotSame(t, a, b)
	})
}
