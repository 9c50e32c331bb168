// Package idt implements the C5 interrupt descriptor table: a fixed
// 256-entry, 16-byte-gate table loaded with LIDT. It plays the same role
// the teacher's exceptions.go plays for its VBAR_EL1 vector table and
// per-exception-class dispatch — the fixed control structure a core must
// install before it can safely take an interrupt — re-expressed for
// x86-64's gate-descriptor IDT instead of ARM64's vector table.
package idt

import (
	"github.com/ryan-jacobs1/oxidizedos/hal"
	"github.com/ryan-jacobs1/oxidizedos/internal/platform"
)

const (
	gateSize  = 16
	numGates  = 256
	tableSize = gateSize * numGates

	// InterruptGateAttr is present(1) | DPL=0 | type=0xE (64-bit interrupt
	// gate): 0x8E, the only gate type this kernel installs.
	InterruptGateAttr uint8 = 0x8E
)

// IDT is the interrupt descriptor table at platform.IDTBase.
type IDT struct {
	h hal.HAL
}

// New returns an IDT bound to the fixed table address, zeroing every gate
// so an unregistered vector naturally faults as not-present until filled
// in.
func New(h hal.HAL) *IDT {
	h.Zero(platform.IDTBase, tableSize)
	return &IDT{h: h}
}

// SetGate installs a present interrupt gate for vector pointing at
// handlerAddr, using the kernel code selector and no IST.
func (t *IDT) SetGate(vector int, handlerAddr uintptr) {
	if vector < 0 || vector >= numGates {
		panic("idt: vector out of range")
	}
	addr := platform.IDTBase + uintptr(vector*gateSize)

	t.h.Write16(addr+0, uint16(handlerAddr))
	t.h.Write16(addr+2, platform.KernelCodeSelector)
	t.h.Write8(addr+4, 0) // IST = 0
	t.h.Write8(addr+5, InterruptGateAttr)
	t.h.Write16(addr+6, uint16(handlerAddr>>16))
	t.h.Write32(addr+8, uint32(handlerAddr>>32))
	t.h.Write32(addr+12, 0) // reserved
}

// InstallSpurious and InstallTimer wire the two vectors the core installs
// on its own, per spec §4.C5; every other vector is the kernel_init
// orchestrator's responsibility.
func (t *IDT) InstallSpurious(handlerAddr uintptr) {
	t.SetGate(platform.SpuriousVector, handlerAddr)
}

func (t *IDT) InstallTimer(handlerAddr uintptr) {
	t.SetGate(platform.TimerVector, handlerAddr)
}

// Load installs this table via LIDT. Every core calls this once during its
// own bring-up; the table itself is shared, built once by the BSP.
func (t *IDT) Load() {
	t.h.LIDT(platform.IDTBase, uint16(tableSize-1))
}

// HandlerAddr reads back the handler address a gate was installed with,
// used by tests to assert SetGate round-trips correctly.
func (t *IDT) HandlerAddr(vector int) uintptr {
	addr := platform.IDTBase + uintptr(vector*gateSize)
	low := uint64(t.h.Read16(addr + 0))
	mid := uint64(t.h.Read16(addr + 6))
	high := uint64(t.h.Read32(addr + 8))
	return uintptr(low | mid<<16 | high<<32)
}
