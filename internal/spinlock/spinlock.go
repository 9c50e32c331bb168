// Package spinlock implements the interrupt-safe single-holder lock the
// frame allocator, heap, scheduler and semaphore (C1, C3, C6, C7) use to
// guard state an interrupt handler can also touch. The
// CAS-loop-with-interrupt-toggle shape is the teacher kernel's own idiom for anything touched from both goroutine and interrupt
// context — see syscall.go's futex wait queue and gc_monitor.go's use of
// sync/atomic instead of a channel or sync.Mutex, neither of which is safe
// to block on from inside an interrupt.
package spinlock

import (
	"sync/atomic"

	"github.com/ryan-jacobs1/oxidizedos/hal"
)

// Spinlock is a busy-wait lock that disables interrupts for its holder.
// Locking from an interrupt handler that is itself running with interrupts
// disabled is safe and simply never contends with itself; locking from two
// threads on two different cores contends normally.
type Spinlock struct {
	held atomic.Bool
	h    hal.HAL
}

// New returns an unheld Spinlock backed by h.
func New(h hal.HAL) *Spinlock {
	return &Spinlock{h: h}
}

// Lock disables interrupts and spins until the lock is free, returning
// whether interrupts were enabled on entry so the matching Unlock can
// restore that state rather than unconditionally re-enabling them.
//
//go:nosplit
func (s *Spinlock) Lock() (wasEnabled bool) {
	wasEnabled = s.h.GetFlags()&1 != 0
	s.h.CLI()
	for !s.held.CompareAndSwap(false, true) {
		// Briefly let held-off interrupt work (including whoever holds
		// this lock, if it's an interrupt handler on this same core)
		// run before retrying, instead of spinning with interrupts
		// permanently masked.
		if wasEnabled {
			s.h.STI()
		}
		s.h.CLI()
	}
	return wasEnabled
}

// Unlock releases the lock and restores interrupts to the state Lock
// observed when it was acquired.
//
//go:nosplit
func (s *Spinlock) Unlock(wasEnabled bool) {
	s.held.Store(false)
	if wasEnabled {
		s.h.STI()
	}
}

// Mutex pairs a Spinlock with the value it protects, so callers reach the
// value only through a Guard and can't forget to release the lock under
// the guard's own discipline.
type Mutex[T any] struct {
	lock  Spinlock
	value T
}

// NewMutex returns a Mutex seeded with an initial value.
func NewMutex[T any](h hal.HAL, initial T) *Mutex[T] {
	return &Mutex[T]{lock: Spinlock{h: h}, value: initial}
}

// Guard is the scoped handle returned by Mutex.Lock; Unlock must be called
// exactly once to release it.
type Guard[T any] struct {
	m          *Mutex[T]
	wasEnabled bool
}

// Lock acquires the mutex and returns a guard giving access to the
// protected value.
func (m *Mutex[T]) Lock() *Guard[T] {
	return &Guard[T]{m: m, wasEnabled: m.lock.Lock()}
}

// Value returns a pointer to the protected value. Valid only while the
// guard is held.
func (g *Guard[T]) Value() *T {
	return &g.m.value
}

// Unlock releases the mutex.
func (g *Guard[T]) Unlock() {
	g.m.lock.Unlock(g.wasEnabled)
}
