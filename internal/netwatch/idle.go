package netwatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/assetwatch/internal/types"
)

// idlePollInterval is the polling granularity used to re-check the
// in-flight set while waiting for a quiet window. Grounded on
// capture.HTTPCapture.cleanupLoop's ticker-driven shape, narrowed from a
// minute-scale housekeeping tick to something fine enough to observe a
// 100ms-default quiet window.
const idlePollInterval = 5 * time.Millisecond

// Idle implements the Idle Waiter. It blocks until the filtered in-flight
// set has been empty continuously for quietWindow, subject to the hard
// ceiling read once from PERCY_NETWORK_IDLE_WAIT_TIMEOUT.
func (w *Watcher) Idle(ctx context.Context, filter func(*types.RequestRecord) bool) error {
	quietWindow := time.Duration(w.cfg.NetworkIdleTimeoutMS) * time.Millisecond
	hardCeiling := idleHardCeiling()

	deadline := time.Now().Add(hardCeiling)
	var quietSince time.Time

	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()

	for {
		if err := w.sessionClosedErr(); err != nil {
			return newError(CodeSessionDuringIdle, "session closed while waiting for idle", err)
		}

		inFlight := w.registry.inFlight(filter)
		now := time.Now()

		if len(inFlight) == 0 {
			if quietSince.IsZero() {
				quietSince = now
			}
			if now.Sub(quietSince) >= quietWindow {
				return nil
			}
		} else {
			quietSince = time.Time{}
		}

		if now.After(deadline) {
			return newError(CodeIdleTimeout, idleDiagnostic(w.registry.inFlight(filter)), nil)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func idleDiagnostic(inFlight []types.RequestRecord) string {
	urls := make([]string, 0, len(inFlight))
	for _, rec := range inFlight {
		urls = append(urls, rec.URL)
	}
	return fmt.Sprintf("Active requests: %s", strings.Join(urls, ", "))
}

func (w *Watcher) sessionClosedErr() error {
	if w.tabCtx == nil {
		return nil
	}
	return w.tabCtx.Err()
}
