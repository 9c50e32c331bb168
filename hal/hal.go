// Package hal defines the hardware abstraction boundary between the
// concurrency core (frame/paging/heap/lapic/idt/sched/sem/spinlock) and the
// assembly primitives the core assumes exist: port I/O, MSR access, CR3/IDT
// loads, interrupt enable/disable, and the context-switch trampoline.
//
// The teacher kernel binds each of these directly as a //go:linkname
// declaration selected by a build tag, which is fine for a single shipped
// image but leaves nothing to run under `go test`. Here every primitive is
// a method on one interface instead, so the same core logic can run against
// hal/bare (real thunks, build tag multiboot2/amd64) or hal/sim (plain Go,
// no build constraint, used by every _test.go in this module) — the same
// one-interface-many-backends shape tinyrange-cc uses for internal/hv.
package hal

// Context is the saved machine state for one suspended thread of execution:
// a stack pointer into a buffer laid out per the scheduler's TCB invariant
// (return address, six callee-saved registers, RFLAGS, CR2 from the top).
// The core only ever reads/writes StackPointer; ContextSwitch interprets
// the memory it points to.
type Context struct {
	StackPointer uintptr

	// Entry is read only by hal/sim. On real hardware a fresh Worker's
	// first dispatch is indistinguishable from any other context switch —
	// the "first run" behavior comes entirely from the pre-seeded return
	// address sitting on its stack (spec §3's TCB invariant). A hosted Go
	// process has no such stack to pop, so the simulated HAL needs the
	// thread's body handed to it explicitly the first time its Context is
	// switched to; hal/bare never reads this field.
	Entry func()
}

// HAL is every assembly primitive the concurrency core imports (spec §6).
type HAL interface {
	// Port I/O.
	InB(port uint16) uint8
	InW(port uint16) uint16
	InL(port uint16) uint32
	OutB(port uint16, val uint8)
	OutW(port uint16, val uint16)
	OutL(port uint16, val uint32)

	// Model-specific registers.
	RDMSR(id uint32) uint64
	WRMSR(id uint32, val uint64)

	// Interrupt and control-register state.
	CLI()
	STI()
	GetFlags() uint64
	LoadCR3(phys uintptr)
	LIDT(base uintptr, limit uint16)
	GetRSP() uintptr
	Halt()
	Exit(code uint32)

	// MMIO access, used by the LAPIC register window.
	MMIORead32(addr uintptr) uint32
	MMIOWrite32(addr uintptr, val uint32)

	// General physical-memory access, used by the frame allocator, the
	// paging tables and the heap — all of which address RAM directly
	// through its identity mapping rather than through a device register
	// window. Grounded on the teacher's own memory.go helpers
	// (readMemory8/16/32/64, writeMemory8/32/64), which do exactly this
	// with a plain unsafe.Pointer cast; hal/bare does the same, and
	// hal/sim backs it with an address-indexed byte map so tests don't
	// need to mmap real memory.
	Read8(addr uintptr) uint8
	Write8(addr uintptr, val uint8)
	Read16(addr uintptr) uint16
	Write16(addr uintptr, val uint16)
	Read32(addr uintptr) uint32
	Write32(addr uintptr, val uint32)
	Read64(addr uintptr) uint64
	Write64(addr uintptr, val uint64)
	Zero(addr uintptr, n int)

	// ContextSwitch saves the six callee-saved registers, RFLAGS and CR2 of
	// the calling thread onto its own stack, stores the resulting RSP into
	// cur, loads RSP from next, and returns into whatever the next thread
	// last suspended at (or thread_entry_point, for a never-run Worker).
	ContextSwitch(cur, next *Context)
}
