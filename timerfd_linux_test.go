//go:build linux

package polling

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// newTestTimer creates a timerFD, skipping on kernels without the
// facility.
func newTestTimer(t *testing.T) *timerFD {
	t.Helper()
	timer, err := newTimerFD()
	if errors.Is(err, ErrTimerUnsupported) {
		t.Skipf("kernel timer unsupported: %v", err)
	}
	if err != nil {
		t.Fatalf("newTimerFD failed: %v", err)
	}
	t.Cleanup(func() { _ = timer.close() })
	return timer
}

// pollReadable polls the timer fd for readability, retrying EINTR.
func pollReadable(t *testing.T, fd int, timeoutMs int) bool {
	t.Helper()
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, timeoutMs)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			t.Fatalf("poll failed: %v", err)
		}
		return n == 1
	}
}

// TestTimerZeroFiresImmediately arms the earliest possible deadline
// and expects readiness almost at once.
func TestTimerZeroFiresImmediately(t *testing.T) {
	timer := newTestTimer(t)
	if err := timer.setTimeout(0); err != nil {
		t.Fatalf("setTimeout(0) failed: %v", err)
	}
	if !pollReadable(t, timer.fd, 100) {
		t.Fatal("timer did not become readable after zero-duration arm")
	}
}

// TestTimerFiresAfterDuration verifies a positive deadline is honored:
// not before it elapses, and promptly after.
func TestTimerFiresAfterDuration(t *testing.T) {
	timer := newTestTimer(t)
	const timeout = 30 * time.Millisecond

	start := time.Now()
	if err := timer.setTimeout(timeout); err != nil {
		t.Fatalf("setTimeout failed: %v", err)
	}
	if pollReadable(t, timer.fd, 0) {
		t.Fatal("timer readable immediately after arming a 30ms deadline")
	}
	if !pollReadable(t, timer.fd, 1000) {
		t.Fatal("timer did not fire within a second")
	}
	if elapsed := time.Since(start); elapsed < timeout {
		t.Errorf("timer fired after %v, before the %v deadline", elapsed, timeout)
	}
}

// TestTimerDisarm verifies a negative timeout disarms: the timer never
// fires, and re-arming resets a prior expiry's readiness.
func TestTimerDisarm(t *testing.T) {
	timer := newTestTimer(t)

	if err := timer.setTimeout(-1); err != nil {
		t.Fatalf("setTimeout(-1) failed: %v", err)
	}
	if pollReadable(t, timer.fd, 50) {
		t.Fatal("disarmed timer became readable")
	}

	// Expire once, then disarm; readiness must not leak through.
	if err := timer.setTimeout(0); err != nil {
		t.Fatalf("setTimeout(0) failed: %v", err)
	}
	if !pollReadable(t, timer.fd, 100) {
		t.Fatal("timer did not fire")
	}
	if err := timer.setTimeout(-1); err != nil {
		t.Fatalf("setTimeout(-1) failed: %v", err)
	}
	if pollReadable(t, timer.fd, 20) {
		t.Fatal("re-arming did not reset expired readiness")
	}
}

// TestTimerOneShot verifies a single arm produces a single expiry: the
// fd stays readable until reset but reports no repeat interval.
func TestTimerOneShot(t *testing.T) {
	timer := newTestTimer(t)
	if err := timer.setTimeout(time.Millisecond); err != nil {
		t.Fatalf("setTimeout failed: %v", err)
	}
	if !pollReadable(t, timer.fd, 100) {
		t.Fatal("timer did not fire")
	}
	// Consume the expiry; with no interval it must not fire again.
	var buf [8]byte
	if _, err := readFD(timer.fd, buf[:]); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if pollReadable(t, timer.fd, 20) {
		t.Fatal("one-shot timer fired a second time")
	}
}
