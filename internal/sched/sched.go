// Package sched implements the C6 scheduler: a shared ready queue across
// LAPIC-identified cores, a per-core active slot and cleanup queue, and the
// cleanup protocol that lets a thread hand its own stack to the next one
// without ever exposing its TCB on a shared queue while still standing on
// it. The ready queue is kept behind a spinlock.Mutex so every access goes
// through a Guard rather than a bare field callers could forget to lock.
//
// The teacher kernel gets concurrency by hijacking the Go runtime's own
// scheduler (goroutine.go patches runtime internals to run kernel
// goroutines cooperatively). This package is a ground-up rewrite in the
// teacher's idiom rather than an adaptation of that file, because the
// target spec's scheduler is hand-rolled rather than runtime-hosted — see
// SPEC_FULL.md's design note on this departure.
package sched

import (
	"github.com/ryan-jacobs1/oxidizedos/hal"
	"github.com/ryan-jacobs1/oxidizedos/internal/platform"
	"github.com/ryan-jacobs1/oxidizedos/internal/spinlock"
)

// Kind distinguishes the two TCB variants spec §3 names. A Bootstrap TCB
// represents a core's own boot stack (used exactly once per core, to hand
// off to the first Worker); every other thread is a Worker.
type Kind int

const (
	Worker Kind = iota
	Bootstrap
)

// TCB is a thread control block: the saved machine context plus, for a
// Worker, the closure it runs to completion before calling Stop.
type TCB struct {
	ctx  *hal.Context
	kind Kind
	work func()

	// core is the identity of whichever logical core is currently running
	// this thread. dispatch (or Start) writes it just before switching
	// into this TCB, and the thread itself reads it the next time it
	// suspends, so "which core am I on" stays correct even though
	// ready-queued threads can be picked up by any core.
	core int
}

// Core returns the logical core this TCB is currently running on. Valid
// only for the TCB that is calling it about itself.
func (t *TCB) Core() int { return t.core }

type perCore struct {
	lock    *spinlock.Spinlock
	active  *TCB
	cleanup []func()
}

// Scheduler holds the shared ready queue and every core's active slot and
// cleanup queue (spec §3's "Scheduler state" type). The ready queue is
// reached from both ordinary scheduling calls and the timer ISR's
// Surrender, so it is guarded by a spinlock.Mutex rather than a bare slice
// a caller could touch without remembering to lock it first.
type Scheduler struct {
	h hal.HAL

	ready *spinlock.Mutex[[]*TCB]

	cores [platform.MaxCores]*perCore
}

// New returns a Scheduler with an empty ready queue and no active thread
// on any core.
func New(h hal.HAL) *Scheduler {
	s := &Scheduler{h: h, ready: spinlock.NewMutex[[]*TCB](h, nil)}
	for i := range s.cores {
		s.cores[i] = &perCore{lock: spinlock.New(h)}
	}
	return s
}

// NewWorker returns a Worker TCB that will run work to completion, then
// call Stop, the first time it is dispatched.
func (s *Scheduler) NewWorker(work func()) *TCB {
	t := &TCB{kind: Worker, work: work}
	t.ctx = &hal.Context{}
	t.ctx.Entry = func() { s.threadEntryPoint(t) }
	return t
}

// NewBootstrap returns the Bootstrap TCB representing a core's own boot
// stack — the identity context_switch saves *into* the first time that
// core gives up control, so the boot stack can in principle be resumed
// later exactly like a Worker's.
func (s *Scheduler) NewBootstrap() *TCB {
	return &TCB{kind: Bootstrap, ctx: &hal.Context{}}
}

func (s *Scheduler) pushReady(t *TCB) {
	g := s.ready.Lock()
	defer g.Unlock()
	*g.Value() = append(*g.Value(), t)
}

func (s *Scheduler) popReady() *TCB {
	g := s.ready.Lock()
	defer g.Unlock()
	q := *g.Value()
	if len(q) == 0 {
		return nil
	}
	t := q[0]
	*g.Value() = q[1:]
	return t
}

// ReadyLen reports the current ready-queue length; used by tests and by
// diagnostics, never by the scheduling logic itself.
func (s *Scheduler) ReadyLen() int {
	g := s.ready.Lock()
	defer g.Unlock()
	return len(*g.Value())
}

func (s *Scheduler) takeActive(core int) *TCB {
	c := s.cores[core]
	we := c.lock.Lock()
	defer c.lock.Unlock(we)
	t := c.active
	c.active = nil
	return t
}

func (s *Scheduler) setActive(core int, t *TCB) {
	c := s.cores[core]
	we := c.lock.Lock()
	c.active = t
	c.lock.Unlock(we)
}

func (s *Scheduler) enqueueCleanup(core int, fn func()) {
	c := s.cores[core]
	we := c.lock.Lock()
	c.cleanup = append(c.cleanup, fn)
	c.lock.Unlock(we)
}

func (s *Scheduler) drainCleanup(core int) {
	c := s.cores[core]
	we := c.lock.Lock()
	queue := c.cleanup
	c.cleanup = nil
	c.lock.Unlock(we)
	for _, fn := range queue {
		fn()
	}
}

// pickNextOrIdle pops the next ready TCB, or synthesizes a throwaway idle
// TCB whose body does nothing — thread_entry_point will run it to
// completion instantly and call Stop, yielding a tight retry loop until
// real work appears, per spec §4.C6's idle behavior.
func (s *Scheduler) pickNextOrIdle() *TCB {
	if t := s.popReady(); t != nil {
		return t
	}
	return s.NewWorker(func() {})
}

// dispatch performs the context switch half of the cleanup protocol shared
// by Surrender, Stop and Block: it picks (or synthesizes) the next TCB,
// schedules the closure that installs it as this core's active thread,
// and switches to it. onSuspend is the step-2 closure that decides what
// happens to the outgoing TCB (requeue it, drop it, or hand it to a
// caller-supplied blocked list) — it always runs on the stack of whatever
// thread takes over next, never on cur's own stack.
func (s *Scheduler) dispatch(me int, cur *TCB, onSuspend func(tcb *TCB)) {
	s.enqueueCleanup(me, func() { onSuspend(cur) })

	next := s.pickNextOrIdle()

	// next.core is set eagerly, not deferred into the cleanup closure
	// below: threadEntryPoint's very first action on a fresh dispatch is
	// to drain cleanup[next.core], so next.core has to already be correct
	// before next ever gets a chance to run. Only the active-slot install
	// itself needs to wait until a thread is actually running on the new
	// stack, per spec §4.C6 step 3.
	next.core = me
	s.enqueueCleanup(me, func() {
		s.setActive(me, next)
	})

	s.h.ContextSwitch(cur.ctx, next.ctx)
}

// threadEntryPoint is where a freshly dispatched Worker's stack lands the
// first time it is switched to: drain whatever cleanup the core that
// dispatched it left behind, run the work closure to completion, then
// stop.
func (s *Scheduler) threadEntryPoint(t *TCB) {
	s.drainCleanup(t.core)
	t.work()
	s.Stop(t)
}

// Surrender voluntarily gives up self's core, placing self back on the
// shared ready queue. Called both cooperatively and from the timer ISR on
// preemption.
func (s *Scheduler) Surrender(self *TCB) {
	me := self.core
	cur := s.takeActive(me)
	s.dispatch(me, cur, func(tcb *TCB) { s.pushReady(tcb) })
	s.drainCleanup(self.core)
}

// Stop gives up self's core and drops self — nothing will ever redispatch
// it. Called by thread_entry_point once a Worker's closure returns; never
// returns to its caller's logical flow (under hal/sim the goroutine backing
// self stays parked inside ContextSwitch).
func (s *Scheduler) Stop(self *TCB) {
	me := self.core
	cur := s.takeActive(me)
	s.dispatch(me, cur, func(tcb *TCB) { /* dropped */ })
	// cur is never requeued, so nothing will ever switch back to this
	// stack: the ContextSwitch inside dispatch does not return.
}

// Block suspends self without putting it on the ready queue. onBlocked
// runs as the step-2 cleanup closure — after self's active slot is
// cleared but before the next thread takes the core — so a caller like
// Semaphore.Down can record self whereever it belongs (and release a lock
// it's still holding) exactly once the handoff is underway, never before.
func (s *Scheduler) Block(self *TCB, onBlocked func(tcb *TCB)) {
	me := self.core
	cur := s.takeActive(me)
	s.dispatch(me, cur, onBlocked)
	s.drainCleanup(self.core)
}

// Requeue places a previously blocked TCB back onto the ready queue.
// Semaphore.Up uses this once it has decided to hand the semaphore
// directly to a waiter instead of incrementing its count.
func (s *Scheduler) Requeue(t *TCB) {
	s.pushReady(t)
}

// Start installs boot as core's active TCB and switches into first. It is
// called exactly once per core during bring-up, handing control from the
// core's own boot stack to the first thread the scheduler runs there.
func (s *Scheduler) Start(core int, boot *TCB, first *TCB) {
	boot.core = core
	s.setActive(core, boot)

	first.core = core // see dispatch's comment: must be set before first ever runs
	s.enqueueCleanup(core, func() {
		s.setActive(core, first)
	})
	s.h.ContextSwitch(boot.ctx, first.ctx)
	s.drainCleanup(boot.core)
}
