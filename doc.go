// Package polling provides readiness-based I/O event notification.
//
// # Overview
//
// A Poller registers interest in file descriptor readability and
// writability under caller-chosen integer keys, blocks in [Poller.Wait]
// until any interest is satisfied or a timeout elapses, and can be
// woken early from another goroutine via [Poller.Notify]. It is the
// reactor primitive for event-driven I/O runtimes: it performs no I/O
// on registered descriptors, buffers no data, and never closes a
// caller-owned descriptor.
//
// The backend is selected at build time:
//   - Linux: epoll, with timerfd providing sub-millisecond timeout
//     precision and eventfd providing the cross-thread waker
//
// See poller_linux.go for the platform-specific implementation.
//
// # Usage
//
//	p, err := polling.New()
//	// handle err
//	defer p.Close()
//
//	events := polling.NewEvents()
//	err = p.Add(fd, polling.Event{Key: 7, Readable: true})
//	// handle err
//	err = p.Wait(events, time.Second)
//	// handle err
//	for ev := range events.All() {
//	    // ev.Key == 7 once fd is readable
//	}
//
// # Safety
//
// Always call [Poller.Delete] before closing a registered file
// descriptor to prevent stale event delivery due to FD recycling.
// The contents of an [Events] buffer are only valid until the next
// [Poller.Wait] call that uses it.
package polling
