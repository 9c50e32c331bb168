// Package platform holds the frozen physical-layout constants the rest of
// the kernel core is built against: page size, the bump allocator's initial
// high-water marks, the heap arena, the LAPIC MMIO window, and the vector
// numbers reserved for the timer and spurious interrupts.
//
// The teacher kernel hardcodes this same kind of layout as named constants
// selected per build tag (qemuvirt/rpi4 — see timer_qemu.go's GIC/timer base
// addresses and mmu.go's G0_STACK_BOTTOM). We follow the same shape: one
// file per target, picked by build tag, each satisfying the same set of
// package-level constants.
package platform

// PageSize is the x86-64 base page size; every frame, PTE and heap block is
// sized or aligned to a multiple of it.
const PageSize = 4096

// MaxCores bounds the number of logical cores the scheduler tracks: the
// size of its per-core array (active slot, cleanup queue).
const MaxCores = 32

// LAPICBase is the physical address of the LAPIC register window. Real
// hardware reports this via the IA32_APIC_BASE MSR; we pin it at the
// architectural default since this kernel never relocates it.
const LAPICBase uintptr = 0xFEE0_0000

// TimerVector and SpuriousVector are the IDT slots the LAPIC timer and the
// spurious-interrupt handler are wired to. Vectors below 32 are reserved for
// CPU exceptions (spec §6), so both sit safely above that line.
const (
	TimerVector    = 40
	SpuriousVector = 0xFF
)

// PIT frequency, used to time the one-second window (40 half-cycles at
// 20 Hz) over which the LAPIC timer is calibrated during bring-up
// (spec §4.C4).
const PITFrequencyHz = 1_193_182

// IDTBase is the fixed physical address of the 256-entry, 16-byte-gate
// interrupt descriptor table (exactly one page). It sits in conventional
// low memory below the heap and frame-bump ranges so it never collides
// with either build's layout.
const IDTBase uintptr = 0x9000

// KernelCodeSelector is the GDT selector every interrupt gate is installed
// with: the kernel's 64-bit code segment.
const KernelCodeSelector uint16 = 0x08
