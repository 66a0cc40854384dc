//go:build linux

package polling

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// timerFD wraps a one-shot kernel timer on the monotonic clock,
// exposed as a pollable file descriptor. It injects precise deadlines
// into a wait call whose native timeout granularity is whole
// milliseconds.
type timerFD struct {
	fd int
}

// newTimerFD creates a monotonic, non-blocking, close-on-exec timerfd.
// Kernels lacking the facility yield ErrTimerUnsupported, which the
// Poller treats as a soft absence rather than a failure.
func newTimerFD() (*timerFD, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		if errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EPERM) || errors.Is(err, unix.EINVAL) {
			return nil, fmt.Errorf("%w: %w", ErrTimerUnsupported, err)
		}
		return nil, err
	}
	return &timerFD{fd: fd}, nil
}

// setTimeout arms a one-shot deadline. Negative timeouts disarm the
// timer so it never fires; zero arms it to fire as soon as possible; a
// positive timeout fires once after that duration, at the clock's
// native resolution. Arming resets any prior expiry, so readiness
// never leaks from one wait call into the next.
func (t *timerFD) setTimeout(timeout time.Duration) error {
	var spec unix.ItimerSpec
	switch {
	case timeout < 0:
		// Zero it_value disarms.
	case timeout == 0:
		// A literal zero would disarm; 1ns is the earliest valid arm.
		spec.Value = unix.NsecToTimespec(1)
	default:
		spec.Value = unix.NsecToTimespec(int64(timeout))
	}
	return unix.TimerfdSettime(t.fd, 0, &spec, nil)
}

// close releases the timer's file descriptor. Called exactly once, by
// Poller.Close.
func (t *timerFD) close() error {
	return closeFD(t.fd)
}
