//go:build linux

package polling

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
	"golang.org/x/sys/unix"
)

// internalInterest is the interest set used for the timer and waker
// registrations under NotifyKey.
const internalInterest = unix.EPOLLIN

// Poller is the epoll-backed readiness notifier.
//
// Registration state lives entirely in the kernel: the Poller keeps no
// user-space fd table, so Add on a registered fd and Modify or Delete
// on an unregistered fd surface the kernel's verdict (wrapped as
// ErrAlreadyRegistered / ErrNotRegistered). Add, Modify, Delete, and
// Notify are safe to call concurrently with each other and with an
// in-flight Wait; only Wait blocks, and only Wait takes the mutex.
//
// The Poller owns its timer and waker descriptors and nothing else; it
// never closes a caller-registered fd.
type Poller struct {
	// mu guards the epoll fd for the duration of the blocking wait
	// call only. Registration edits go straight to the kernel and are
	// never blocked for longer than one in-flight Wait.
	mu sync.Mutex

	epfd int

	// Wake-up mechanism (eventfd on Linux, so both ends are one fd).
	wakeReadFD  int
	wakeWriteFD int

	// timer is nil when timerfd is unavailable; Wait then falls back
	// to epoll's whole-millisecond native timeout.
	timer *timerFD

	log *logiface.Logger[logiface.Event]

	closed atomic.Bool
}

// New creates a Poller.
//
// It creates the epoll handle, then the waker (registered for read
// interest under NotifyKey), then attempts to create the kernel timer.
// Timer creation failure is non-fatal: the Poller degrades to
// whole-millisecond timeout precision. Every partially acquired
// descriptor is released on failure paths, so New never leaks.
func New(opts ...Option) (*Poller, error) {
	cfg, err := resolvePollerOptions(opts)
	if err != nil {
		return nil, err
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("polling: create epoll: %w", err)
	}

	p := &Poller{
		epfd:        epfd,
		wakeReadFD:  -1,
		wakeWriteFD: -1,
		log:         cfg.logger,
	}
	ok := false
	defer func() {
		if !ok {
			p.releaseFDs()
		}
	}()

	p.wakeReadFD, p.wakeWriteFD, err = createWakeFd(0, EFD_CLOEXEC|EFD_NONBLOCK)
	if err != nil {
		p.wakeReadFD, p.wakeWriteFD = -1, -1
		return nil, fmt.Errorf("polling: create waker: %w", err)
	}
	if err := p.ctl(unix.EPOLL_CTL_ADD, p.wakeReadFD, NotifyKey, internalInterest); err != nil {
		return nil, fmt.Errorf("polling: register waker: %w", err)
	}

	if !cfg.disableTimer {
		timer, err := newTimerFD()
		switch {
		case err == nil:
			if err := p.ctl(unix.EPOLL_CTL_ADD, timer.fd, NotifyKey, internalInterest); err != nil {
				_ = timer.close()
				p.log.Warning().Err(err).Log("timer registration failed; timeout precision degraded to milliseconds")
			} else {
				p.timer = timer
			}
		case errors.Is(err, ErrTimerUnsupported):
			p.log.Debug().Err(err).Log("kernel timer unavailable; timeout precision degraded to milliseconds")
		default:
			p.log.Warning().Err(err).Log("timer creation failed; timeout precision degraded to milliseconds")
		}
	}

	ok = true
	p.log.Trace().Bool("timer", p.timer != nil).Log("new")
	return p, nil
}

// Add registers readability/writability interest in fd under ev.Key.
// The key must not be NotifyKey and must be unique among live
// registrations. Fails with ErrAlreadyRegistered if fd already has a
// live registration.
func (p *Poller) Add(fd int, ev Event) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if ev.Key == NotifyKey {
		return fmt.Errorf("polling: add fd %d: %w", fd, ErrReservedKey)
	}
	p.log.Trace().Int("fd", fd).Uint64("key", ev.Key).Bool("readable", ev.Readable).Bool("writable", ev.Writable).Log("add")
	return registrationError("add", fd, p.ctl(unix.EPOLL_CTL_ADD, fd, ev.Key, interestFlags(ev)))
}

// Modify replaces the interest set and key of an already-registered
// fd. Fails with ErrNotRegistered if fd has no live registration.
func (p *Poller) Modify(fd int, ev Event) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if ev.Key == NotifyKey {
		return fmt.Errorf("polling: modify fd %d: %w", fd, ErrReservedKey)
	}
	p.log.Trace().Int("fd", fd).Uint64("key", ev.Key).Bool("readable", ev.Readable).Bool("writable", ev.Writable).Log("modify")
	return registrationError("modify", fd, p.ctl(unix.EPOLL_CTL_MOD, fd, ev.Key, interestFlags(ev)))
}

// Delete removes fd's registration. Fails with ErrNotRegistered if fd
// has no live registration. The fd itself remains open and owned by
// the caller.
func (p *Poller) Delete(fd int) error {
	if p.closed.Load() {
		return ErrClosed
	}
	p.log.Trace().Int("fd", fd).Log("delete")
	return registrationError("delete", fd, unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil))
}

// Wait blocks until at least one registered fd is ready, the timeout
// elapses, or a concurrent Notify occurs, then records the ready set
// into events.
//
// A negative timeout blocks indefinitely; zero polls without blocking;
// a positive timeout bounds the block and never returns early (the
// elapsed time is at least the requested duration unless readiness or
// a notification intervenes).
//
// When the kernel timer is present it enforces the deadline: it is
// armed per call (disarmed for negative timeouts, 1ns for zero) and
// the native wait runs without a native timeout, giving one code path
// for "never", "now", and "later" with sub-millisecond precision.
// Without the timer, the timeout is passed natively, rounded up to
// whole milliseconds so the caller never observes an undershoot.
//
// Signal interruptions are retried internally and never surface.
func (p *Poller) Wait(events *Events, timeout time.Duration) error {
	if p.closed.Load() {
		return ErrClosed
	}
	p.log.Trace().Dur("timeout", timeout).Log("wait")

	p.mu.Lock()
	defer p.mu.Unlock()

	msec := -1
	var deadline time.Time
	if p.timer != nil {
		if err := p.timer.setTimeout(timeout); err != nil {
			return fmt.Errorf("polling: arm timer: %w", err)
		}
		// Re-assert the timer's read interest under the reserved key.
		// The registration persists across waits, but keeping this
		// explicit pairs it with the arm above.
		if err := p.ctl(unix.EPOLL_CTL_MOD, p.timer.fd, NotifyKey, internalInterest); err != nil {
			return fmt.Errorf("polling: arm timer: %w", err)
		}
	} else if timeout >= 0 {
		msec = durationToMsec(timeout)
		if timeout > 0 {
			deadline = time.Now().Add(timeout)
		}
	}

	for {
		n, err := unix.EpollWait(p.epfd, events.buf, msec)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				// Transient interruption: retry without surfacing.
				// On the native-timeout path, recompute the remainder
				// so the total block still honors the deadline.
				if !deadline.IsZero() {
					remaining := time.Until(deadline)
					if remaining <= 0 {
						events.n = 0
						return nil
					}
					msec = durationToMsec(remaining)
				}
				continue
			}
			return fmt.Errorf("polling: wait: %w", err)
		}
		events.n = n
		break
	}

	// If the waker may have contributed a record, drain it so its
	// level-triggered readiness does not wake every subsequent Wait.
	// The timer needs no draining: the next arm resets it.
	for i := 0; i < events.n; i++ {
		if unpackKey(&events.buf[i]) == NotifyKey {
			drainWake(p.wakeReadFD)
			break
		}
	}

	p.log.Trace().Int("len", events.n).Log("new events")
	return nil
}

// Notify wakes a goroutine currently blocked in Wait, or failing that,
// causes the next Wait call to return promptly. It makes no claim that
// readiness events are present. Safe to call from any goroutine.
func (p *Poller) Notify() error {
	if p.closed.Load() {
		return ErrClosed
	}
	p.log.Trace().Log("notify")
	if err := writeWake(p.wakeWriteFD); err != nil {
		return fmt.Errorf("polling: notify: %w", err)
	}
	return nil
}

// Close releases the Poller's resources: the kernel timer (best-effort
// deregistered first), the waker, and the epoll handle. It never
// closes a caller-registered fd. A second Close returns ErrClosed.
//
// Close must not be called concurrently with Wait.
func (p *Poller) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	p.log.Trace().Log("close")
	if p.timer != nil {
		// Best effort; teardown proceeds regardless.
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, p.timer.fd, nil); err != nil {
			p.log.Debug().Err(err).Log("deregister timer")
		}
	}
	return p.releaseFDs()
}

// releaseFDs closes every descriptor the Poller owns, tolerating
// partially constructed state. Returns the first close error.
func (p *Poller) releaseFDs() error {
	var err error
	if p.timer != nil {
		err = p.timer.close()
		p.timer = nil
	}
	if p.wakeReadFD >= 0 {
		if cerr := closeFD(p.wakeReadFD); err == nil {
			err = cerr
		}
		if p.wakeWriteFD != p.wakeReadFD && p.wakeWriteFD >= 0 {
			if cerr := closeFD(p.wakeWriteFD); err == nil {
				err = cerr
			}
		}
		p.wakeReadFD, p.wakeWriteFD = -1, -1
	}
	if cerr := closeFD(p.epfd); err == nil {
		err = cerr
	}
	return err
}

// ctl issues an epoll_ctl with the key packed into the event data.
func (p *Poller) ctl(op int, fd int, key uint64, flags uint32) error {
	ev := unix.EpollEvent{Events: flags}
	ev.Fd, ev.Pad = packKey(key)
	return unix.EpollCtl(p.epfd, op, fd, &ev)
}

// registrationError wraps registration failures, folding the kernel's
// EEXIST/ENOENT verdicts into the package sentinels while keeping the
// errno reachable via errors.Is.
func registrationError(op string, fd int, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EEXIST):
		err = fmt.Errorf("%w: %w", ErrAlreadyRegistered, err)
	case errors.Is(err, unix.ENOENT):
		err = fmt.Errorf("%w: %w", ErrNotRegistered, err)
	}
	return fmt.Errorf("polling: %s fd %d: %w", op, fd, err)
}

// durationToMsec converts a timeout to epoll's millisecond unit,
// rounding any nonzero sub-millisecond remainder up. Truncating down
// would risk returning before the requested duration has elapsed,
// which callers must never observe; overshoot by under one millisecond
// is acceptable. Saturates instead of wrapping on overflow.
func durationToMsec(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}
