package polling

import "math"

// NotifyKey is the key reserved for internal notifications (the kernel
// timer and the cross-thread waker). Registering interest under it is
// rejected with [ErrReservedKey], and records bearing it are filtered
// from [Events] iteration, so callers never observe it.
const NotifyKey uint64 = math.MaxUint64

// Event pairs a registration key with readiness indicators.
//
// When passed to [Poller.Add] or [Poller.Modify], Readable and Writable
// select the interest set; an Event with neither flag set registers
// read interest. When yielded by [Events.All], error and hangup
// conditions are folded into the two booleans (both may be true at
// once), so callers branch on Readable and Writable only, never on
// platform flag names.
type Event struct {
	// Key is the caller-chosen identifier correlating this event with
	// the owner's bookkeeping. Must be unique among live registrations
	// and must not equal NotifyKey.
	Key uint64

	// Readable reports read readiness, including error, priority-data,
	// and peer-closed-read conditions.
	Readable bool

	// Writable reports write readiness, including error and
	// peer-closed-write conditions.
	Writable bool
}
