//go:build linux

package polling

import (
	"encoding/binary"
	"errors"

	"golang.org/x/sys/unix"
)

const (
	EFD_CLOEXEC  = unix.EFD_CLOEXEC
	EFD_NONBLOCK = unix.EFD_NONBLOCK
)

// createWakeFd creates an eventfd for wake-up notifications (Linux).
// Returns the single eventfd as both read and write ends.
func createWakeFd(initval uint, flags int) (int, int, error) {
	fd, err := unix.Eventfd(initval, flags)
	return fd, fd, err
}

// writeWake increments the eventfd counter by one, making the read end
// readable. EAGAIN means the counter is saturated, so a wake-up is
// already pending and the caller's intent is satisfied.
func writeWake(fd int) error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	for {
		_, err := writeFD(fd, buf[:])
		switch {
		case err == nil:
			return nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return nil
		default:
			return err
		}
	}
}

// drainWake consumes pending wake-ups so that level-triggered
// readiness does not wake every subsequent wait call. The read resets
// the eventfd counter to zero; errors (notably EAGAIN, when the
// readiness belonged to the timer rather than the waker) are
// deliberately ignored.
func drainWake(fd int) {
	var buf [8]byte
	_, _ = readFD(fd, buf[:])
}
