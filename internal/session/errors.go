package session

import "errors"

// ErrAlreadyStopped marks an operation attempted after the session's
// cancellation handle has fired; callers may treat it as a no-op.
// Nothing in this package returns it: stopped-session paths return nil.
var ErrAlreadyStopped = errors.New("session: already stopped")
