// Package kernel is the top-level bring-up sequencer: the staged,
// "init one subsystem, log a breadcrumb, move to the next" bootstrap that
// wires C1-C10 into a running system. It plays the same role the teacher's
// kernelMainBody plays in kernel.go — a single ordered function that
// initializes UART, the framebuffer, interrupts, the timer and the SD card
// in sequence, printing a breadcrumb and degrading or aborting at each
// stage — just re-targeted at this kernel's own subsystem list (frames,
// paging, heap, IDT, LAPIC, scheduler, block device, filesystem view)
// instead of the teacher's RPi4 peripherals.
package kernel

import (
	"github.com/ryan-jacobs1/oxidizedos/hal"
	"github.com/ryan-jacobs1/oxidizedos/internal/blockdev"
	"github.com/ryan-jacobs1/oxidizedos/internal/diag"
	"github.com/ryan-jacobs1/oxidizedos/internal/frame"
	"github.com/ryan-jacobs1/oxidizedos/internal/fsview"
	"github.com/ryan-jacobs1/oxidizedos/internal/heap"
	"github.com/ryan-jacobs1/oxidizedos/internal/idt"
	"github.com/ryan-jacobs1/oxidizedos/internal/lapic"
	"github.com/ryan-jacobs1/oxidizedos/internal/paging"
	"github.com/ryan-jacobs1/oxidizedos/internal/platform"
	"github.com/ryan-jacobs1/oxidizedos/internal/sched"
)

// Config bounds the one piece of bring-up state that can't be a frozen
// platform constant: the highest usable physical page frame number, which
// the real entry ABI reads out of the Multiboot2 memory map and the sim
// harness picks for itself.
type Config struct {
	HighMemPFN uint64
	TimerHz    uint32
	Sink       diag.ByteSink
}

// Kernel holds every subsystem the BSP brings up once and every core
// shares afterward.
type Kernel struct {
	h hal.HAL

	Log    *diag.Logger
	Frames *frame.Allocator
	Space  *paging.AddrSpace
	Heap   *heap.Heap
	IDT    *idt.IDT
	LAPIC  *lapic.LAPIC
	Sched  *sched.Scheduler

	Disk *blockdev.Device
	FS   *fsview.FSView

	timerCount uint32
}

// Init runs the BSP's one-time bring-up: identity-map physical memory,
// initialize the heap, allocate the IDT, bring up this core's own LAPIC,
// calibrate its timer, and install scheduler state. Loading the IDT and
// arming the timer are left to InstallVectors and ArmTimer. It mirrors
// kernelMainBody's staged shape — each step logs a breadcrumb before
// moving to the next — but nothing here is staged for a framebuffer or a
// device tree, since neither is part of this kernel's scope.
func Init(h hal.HAL, cfg Config) (*Kernel, error) {
	log := diag.New(cfg.Sink)
	log.Trace("kernel_init: starting BSP bring-up")

	bumpHi := uintptr(cfg.HighMemPFN * platform.PageSize)
	frames, err := frame.New(h, platform.FrameBumpBase, bumpHi)
	if err != nil {
		return nil, err
	}
	log.Trace("kernel_init: frame allocator ready")

	space := paging.NewIdentity(h, frames, cfg.HighMemPFN)
	space.Activate()
	log.Trace("kernel_init: identity map active")

	hp, err := heap.New(h, platform.HeapStart, platform.HeapEnd)
	if err != nil {
		return nil, err
	}
	log.Trace("kernel_init: heap ready")

	table := idt.New(h)
	log.Trace("kernel_init: idt allocated")

	lap := lapic.New(h)
	lap.MaskPICs()
	lap.Enable()
	count := lap.CalibrateTimer(cfg.TimerHz)
	log.TraceHex("kernel_init: timer calibrated, count=", uint64(count))

	s := sched.New(h)
	log.Trace("kernel_init: scheduler state installed")

	return &Kernel{
		h:          h,
		Log:        log,
		Frames:     frames,
		Space:      space,
		Heap:       hp,
		IDT:        table,
		LAPIC:      lap,
		Sched:      s,
		timerCount: count,
	}, nil
}

// InstallVectors wires the timer and spurious vectors, then loads the
// table. handlerAddr values are the assembly thunk addresses the real
// entry ABI exports for apit_handler and the spurious handler; sim tests
// that never take a real interrupt can pass any non-zero placeholder,
// since nothing ever dereferences it outside hal/bare.
func (k *Kernel) InstallVectors(timerHandler, spuriousHandler uintptr) {
	k.IDT.InstallTimer(timerHandler)
	k.IDT.InstallSpurious(spuriousHandler)
	k.IDT.Load()
}

// ArmTimer programs this core's LAPIC timer with the BSP-calibrated count.
// Every core — BSP included — calls this once during its own bring-up,
// per spec §4.C4's "calibrate once, reuse everywhere" policy.
func (k *Kernel) ArmTimer() {
	k.LAPIC.ArmTimer(k.timerCount)
}

// TimerISR is apit_handler's body: acknowledge the interrupt, then
// surrender self's core exactly like a cooperative yield. The real vector
// thunk calls this with interrupts disabled and self set to whichever TCB
// was active on this core at the moment the timer fired; hal/sim never
// delivers a real asynchronous interrupt; this method exists so the wiring
// is in place the day a real timer tick needs to call it.
func (k *Kernel) TimerISR(self *sched.TCB) {
	k.LAPIC.EOI()
	k.Sched.Surrender(self)
}

// MountDisk attaches the primary IDE block device and mounts the
// filesystem superblock it carries at LBA 0. self is the calling thread's
// own TCB — mounting suspends only that thread, per C9/C10's
// polling-via-surrender model, never the whole system. Call this from a
// worker thread after the scheduler is running, not from Init itself,
// since Mount's block-device reads need a live scheduler to surrender
// into.
func (k *Kernel) MountDisk(self *sched.TCB) error {
	k.Disk = blockdev.New(k.h, k.Sched)
	v, err := fsview.Mount(self, k.Disk)
	if err != nil {
		return err
	}
	k.FS = v
	return nil
}

// StartAP brings up one application processor: sends the INIT+STARTUP IPI
// sequence to wake it at resetVector, then installs boot as that core's
// active TCB and switches into first. Mirrors the BSP-to-AP half of spec
// §2's data flow ("BSP... sends INIT+STARTUP IPIs to each AP. Each AP
// activates the shared address space, loads the IDT, enables its LAPIC,
// programs its timer, and then calls stop()") — the activation steps
// happen inside first's own work closure, since this package has no way to
// run code on a physical AP before handing it a TCB.
//
// Start blocks until this core's boot stack is resumed, which under normal
// operation never happens once a core starts running the scheduler —
// callers run it in its own goroutine, one per simulated core.
func (k *Kernel) StartAP(core int, apicID uint32, resetVector uintptr, first *sched.TCB) {
	k.LAPIC.SendInitStartup(apicID, resetVector)
	boot := k.Sched.NewBootstrap()
	k.Sched.Start(core, boot, first)
}

// StartBSP installs the BSP's own boot stack as core 0's active TCB and
// switches into first, the same way StartAP does for an AP but without an
// IPI — the BSP is already running, it just needs to hand off to the
// scheduler. Like StartAP, this blocks until core 0's boot stack is
// resumed; run it in its own goroutine.
func (k *Kernel) StartBSP(first *sched.TCB) {
	boot := k.Sched.NewBootstrap()
	k.Sched.Start(0, boot, first)
}
