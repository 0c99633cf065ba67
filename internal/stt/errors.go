package stt

import "errors"

var (
	// ErrSessionStopped means a send was attempted after the session's
	// stopped flag was set; callers should treat this as a silent no-op.
	ErrSessionStopped = errors.New("stt: session stopped")

	// ErrUpstreamNotOpen means the wire hasn't reached OPEN yet; frames
	// are buffered rather than treated as an error by Manager.Write.
	ErrUpstreamNotOpen = errors.New("stt: upstream not open")

	// ErrReconnectSuppressed marks a close that must not trigger a
	// reconnect attempt (sticky error observed, or a non-1000 close
	// code).
	ErrReconnectSuppressed = errors.New("stt: reconnect suppressed")

	ErrEmptyTranscript = errors.New("stt: transcript empty")
)
