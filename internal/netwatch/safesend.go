package netwatch

import (
	"context"
	"runtime"
	"strings"
)

// abortedSentinel is the message Safe Send raises synchronously when an
// outbound call is attempted for an already-aborted requestId.
const abortedSentinel = "request already aborted"

// invalidInterceptionIDSubstring is matched against an outbound send's
// error text (the browser reports this condition only as free text); a
// match sends safeSend into its abort-race handling. The match is not
// turned into a typed error.
const invalidInterceptionIDSubstring = "Invalid InterceptionId"

// sessionClosedHints mirrors this codebase's existing transientHints
// substring list used to classify connection-loss errors, narrowed to
// what the session-closed error path requires.
var sessionClosedHints = []string{
	"context canceled",
	"target closed",
	"session closed",
	"websocket",
	"connection reset",
	"connection refused",
}

func looksLikeSessionClosed(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range sessionClosedHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

func looksLikeInvalidInterception(err error) bool {
	if err == nil {
		return false
	}
	return err.Error() == abortedSentinel || strings.Contains(err.Error(), invalidInterceptionIDSubstring)
}

// safeSend guards an outbound protocol call keyed by requestID against the
// Aborted set, then runs send. Abort-race handling: if send fails with the
// aborted sentinel or "Invalid InterceptionId", it yields one scheduler
// tick and rechecks the Aborted set; if the request is now aborted it
// returns nil (silently dropped), otherwise it calls onAbortRace once,
// swallowing any error that returns.
func (w *Watcher) safeSend(ctx context.Context, requestID string, send func() error, onAbortRace func()) error {
	if w.registry.isAborted(requestID) {
		return newError(CodeInterceptionInvalid, abortedSentinel, nil)
	}

	err := send()
	if err == nil {
		return nil
	}

	if looksLikeSessionClosed(err) {
		return nil
	}

	if looksLikeInvalidInterception(err) {
		runtime.Gosched()
		if w.registry.isAborted(requestID) {
			return nil
		}
		if onAbortRace != nil {
			onAbortRace()
		}
		return nil
	}

	return newError(CodeCaptureFailed, "outbound send failed", err)
}
