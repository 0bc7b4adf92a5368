package pulse

import "errors"

// ErrTimeout is delivered by Timeout when the watchdog fires before the
// source produces any notification.
var ErrTimeout = errors.New("pulse: timeout")

// ErrSharedSourceErrored is wrapped around the latched error of a Share
// hub and delivered to subscribers that join after the upstream has
// already errored.
var ErrSharedSourceErrored = errors.New("pulse: shared source already errored")

// ErrClosed reports that an executor has been shut down. No executor in
// this package returns it: Pool.Post after Close drops the task silently.
var ErrClosed = errors.New("pulse: executor closed")
