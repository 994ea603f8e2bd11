package util

import (
	"context"
	"errors"
	"time"
)

// ErrWaitTimeout indicates a timed wait expired before its condition held.
var ErrWaitTimeout = errors.New("wait timed out")

// WaitFor polls the given condition until it holds, the timeout expires or
// the context is done. It always reports how long the wait took, so callers
// measuring pulse widths get the elapsed duration even on success.
//
// The poll function is called in a tight loop; waits in the microsecond range
// (bit timing on a sensor line) cannot afford a scheduler round-trip per
// check.
func WaitFor(ctx context.Context, clock Clock, timeout time.Duration, poll func() (bool, error)) (time.Duration, error) {
	start := clock.Now()
	for {
		ok, err := poll()
		elapsed := clock.Now().Sub(start)
		if err != nil {
			return elapsed, err
		}
		if ok {
			return elapsed, nil
		}
		if err := ctx.Err(); err != nil {
			return elapsed, err
		}
		if elapsed >= timeout {
			return elapsed, ErrWaitTimeout
		}
	}
}
