package polling

import "errors"

// Standard errors.
var (
	// ErrClosed is returned by operations on a closed Poller.
	ErrClosed = errors.New("polling: poller closed")

	// ErrReservedKey is returned when a registration names NotifyKey,
	// which is reserved for internal timer and waker notifications.
	ErrReservedKey = errors.New("polling: key reserved for internal notifications")

	// ErrAlreadyRegistered is returned by Add when the file descriptor
	// already has a live registration.
	ErrAlreadyRegistered = errors.New("polling: fd already registered")

	// ErrNotRegistered is returned by Modify and Delete when the file
	// descriptor has no live registration.
	ErrNotRegistered = errors.New("polling: fd not registered")

	// ErrTimerUnsupported indicates the kernel timer facility is not
	// available on this kernel. The Poller treats it as a soft absence,
	// degrading timeout precision to whole milliseconds.
	ErrTimerUnsupported = errors.New("polling: kernel timer unsupported")
)
