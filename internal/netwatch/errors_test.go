package netwatch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodedError(t *testing.T) {
	t.Run("formats_without_cause", func(t *testing.T) {
		err := newError(CodeIdleTimeout, "waited too long", nil)
		require.Equal(t, "IDLE_TIMEOUT: waited too long", err.Error())
	})

	t.Run("formats_with_cause", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := newError(CodeSessionClosed, "lost session", cause)
		require.Equal(t, "SESSION_CLOSED: lost session: connection reset", err.Error())
		require.ErrorIs(t, err, cause)
	})
}
