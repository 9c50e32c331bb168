// Package sem implements the C7 counting semaphore, the one blocking
// primitive built directly on top of the scheduler's cleanup protocol
// (internal/sched). Grounded on the same lock-then-hand-off shape
// internal/spinlock's Mutex uses for its own guard, generalized to carry
// a count and a blocked-waiter queue instead of a single held/not-held
// bit.
package sem

import (
	"github.com/ryan-jacobs1/oxidizedos/hal"
	"github.com/ryan-jacobs1/oxidizedos/internal/sched"
	"github.com/ryan-jacobs1/oxidizedos/internal/spinlock"
)

// Semaphore is a counting, blocking semaphore. Down blocks the calling
// thread when count is zero instead of spinning; Up hands the unit to the
// longest-waiting blocked thread when one exists and puts that thread back
// on the shared ready queue, so waiters are woken in the order they
// blocked.
//
// The original kernel gives the semaphore a weak self-reference so its
// cleanup closure can release the semaphore's own lock without the
// closure holding a strong reference back into the structure it lives
// inside. Go's garbage collector reclaims reference cycles on its own, so
// that concern does not apply here — the closure below simply captures
// sem directly.
type Semaphore struct {
	s    *sched.Scheduler
	lock *spinlock.Spinlock

	count   uint64
	blocked []*sched.TCB
}

// New returns a semaphore initialized to count, backed by scheduler s.
func New(h hal.HAL, s *sched.Scheduler, count uint64) *Semaphore {
	return &Semaphore{s: s, lock: spinlock.New(h), count: count}
}

// Up releases one unit of the semaphore. If a thread is already blocked
// on it, that thread is handed the unit directly and requeued instead of
// count being incremented, preserving the invariant that count is zero
// whenever the blocked queue is non-empty.
func (sm *Semaphore) Up() {
	we := sm.lock.Lock()
	var wake *sched.TCB
	if len(sm.blocked) > 0 {
		wake = sm.blocked[0]
		sm.blocked = sm.blocked[1:]
	} else {
		sm.count++
	}
	sm.lock.Unlock(we)

	if wake != nil {
		sm.s.Requeue(wake)
	}
}

// Down acquires one unit of the semaphore, blocking self if none is
// available. The lock stays held across the entire suspension — taken
// here, released only by the cleanup closure running on whatever thread
// takes the core next — so an Up on another core can never observe an
// empty blocked queue while this Down is still mid-handoff.
func (sm *Semaphore) Down(self *sched.TCB) {
	we := sm.lock.Lock()
	if sm.count > 0 {
		sm.count--
		sm.lock.Unlock(we)
		return
	}

	sm.s.Block(self, func(tcb *sched.TCB) {
		sm.blocked = append(sm.blocked, tcb)
		sm.lock.Unlock(we)
	})
}

// Count reports the current count; used by tests and diagnostics only.
func (sm *Semaphore) Count() uint64 {
	we := sm.lock.Lock()
	defer sm.lock.Unlock(we)
	return sm.count
}
