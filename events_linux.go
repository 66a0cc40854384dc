//go:build linux

package polling

import (
	"iter"

	"golang.org/x/sys/unix"
)

// defaultEventsCapacity bounds how many ready records a single Wait
// call can report. It is an implementation bound, not a protocol
// limit: descriptors that become ready beyond it are reported by a
// subsequent Wait.
const defaultEventsCapacity = 1024

// Events is a reusable, fixed-capacity buffer of native readiness
// records, populated by each Poller.Wait call.
//
// A Wait call replaces the valid count but does not clear prior
// entries, so the buffer's contents are only defined until the next
// Wait that uses it. Do not iterate an Events across two Wait calls.
type Events struct {
	buf []unix.EpollEvent
	n   int
}

// NewEvents creates an empty readiness buffer. Capacity is fixed at
// creation and independent of the number of live registrations.
func NewEvents() *Events {
	return &Events{buf: make([]unix.EpollEvent, defaultEventsCapacity)}
}

// Len reports the number of native records delivered by the last Wait
// call. It may exceed the number of events yielded by All, because
// internal timer and waker records are counted here but filtered from
// iteration.
func (e *Events) Len() int {
	return e.n
}

// All returns a lazy, finite iteration over the events delivered by
// the last Wait call, translated to the portable Event shape. Records
// bearing NotifyKey are internal plumbing and are skipped.
func (e *Events) All() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for i := 0; i < e.n; i++ {
			key := unpackKey(&e.buf[i])
			if key == NotifyKey {
				continue
			}
			if !yield(translateEvent(key, e.buf[i].Events)) {
				return
			}
		}
	}
}

// packKey splits a 64-bit key across the Fd and Pad halves of the
// epoll data field.
func packKey(key uint64) (lo, hi int32) {
	return int32(uint32(key)), int32(uint32(key >> 32))
}

// unpackKey reassembles the key stored by packKey.
func unpackKey(ev *unix.EpollEvent) uint64 {
	return uint64(uint32(ev.Fd)) | uint64(uint32(ev.Pad))<<32
}

// translateEvent maps native epoll flags onto the two portable
// readiness booleans. Error and hangup conditions fold into both, and
// priority data and a peer-closed read side count as readable, so
// callers branch on two booleans rather than platform flag names.
func translateEvent(key uint64, flags uint32) Event {
	return Event{
		Key:      key,
		Readable: flags&(unix.EPOLLIN|unix.EPOLLPRI|unix.EPOLLHUP|unix.EPOLLRDHUP|unix.EPOLLERR) != 0,
		Writable: flags&(unix.EPOLLOUT|unix.EPOLLHUP|unix.EPOLLERR) != 0,
	}
}

// interestFlags derives the epoll interest set from an Event passed to
// Add or Modify. Write-only interest registers EPOLLOUT alone; any
// other combination includes read interest, with EPOLLRDHUP and
// EPOLLPRI so peer closes and priority data surface as readability.
func interestFlags(ev Event) uint32 {
	const read = unix.EPOLLIN | unix.EPOLLPRI | unix.EPOLLRDHUP
	if ev.Writable {
		if ev.Readable {
			return read | unix.EPOLLOUT
		}
		return unix.EPOLLOUT
	}
	return read
}
