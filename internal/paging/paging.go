// Package paging implements the C2 address-space builder: a 4-level
// PML4/PDPT/PD/PT page-map, walked recursively and backed by C1 for every
// intermediate table frame. Entry bits are packed through the C12 bitfield
// package instead of hand-rolled shifts, the same way the teacher's mmu.go
// centralizes its PTE_* constant table — just expressed as a tagged struct
// rather than a block of shift constants, since x86-64 PTEs (unlike the
// teacher's ARM64 ones) pack cleanly into present/writable/user/huge/pfn.
package paging

import (
	"fmt"

	"github.com/ryan-jacobs1/oxidizedos/hal"
	"github.com/ryan-jacobs1/oxidizedos/internal/bitfield"
	"github.com/ryan-jacobs1/oxidizedos/internal/frame"
	"github.com/ryan-jacobs1/oxidizedos/internal/platform"
)

// entry is one page-table slot: present/writable/user/huge flags plus the
// physical frame number it points to (a table frame for non-leaf levels, a
// data or MMIO frame for a leaf).
type entry struct {
	Present  bool   `bitfield:",1"`
	Writable bool   `bitfield:",1"`
	User     bool   `bitfield:",1"`
	_        uint8  `bitfield:",4"` // write-through/cache-disable/accessed/dirty: unused
	Huge     bool   `bitfield:",1"` // PS bit; meaningful only at level 2
	_        uint8  `bitfield:",4"` // global/avail: unused
	PFN      uint64 `bitfield:",40"`
}

var entryConfig = &bitfield.Config{NumBits: 64}

// levelShift returns the bit offset of the 9-bit index a virtual (or, for
// this identity-mapped kernel, physical) frame number contributes at the
// given level: 4 = PML4 down to 1 = PT.
func levelShift(level int) uint {
	return uint(12 + 9*(level-1))
}

func levelIndex(pfn uint64, level int) uint64 {
	return (pfn >> (levelShift(level) - 12)) & 0x1FF
}

// AddrSpace is one top-level page table plus the frame allocator it draws
// intermediate tables from.
type AddrSpace struct {
	h      hal.HAL
	frames *frame.Allocator
	top    uintptr
}

// NewEmpty allocates a fresh, all-not-present top-level table.
func NewEmpty(h hal.HAL, frames *frame.Allocator) *AddrSpace {
	return &AddrSpace{h: h, frames: frames, top: frames.Alloc()}
}

func (as *AddrSpace) readEntry(addr uintptr) entry {
	var e entry
	bitfield.Unpack(as.h.Read64(addr), &e, entryConfig)
	return e
}

func (as *AddrSpace) writeEntry(addr uintptr, e entry) {
	packed, err := bitfield.Pack(&e, entryConfig)
	if err != nil {
		panic(fmt.Sprintf("paging: packing entry: %v", err))
	}
	as.h.Write64(addr, packed)
}

// walkTo descends from the top-level table to the table at targetLevel
// that owns the slot for pfn, allocating and wiring up any missing
// intermediate table along the way. It returns that table's physical
// address.
func (as *AddrSpace) walkTo(pfn uint64, targetLevel int) uintptr {
	table := as.top
	for level := 4; level > targetLevel; level-- {
		idx := levelIndex(pfn, level)
		addr := table + uintptr(idx)*8
		e := as.readEntry(addr)
		if !e.Present {
			next := as.frames.Alloc()
			as.writeEntry(addr, entry{Present: true, Writable: true, PFN: uint64(next) >> 12})
			table = next
		} else {
			table = uintptr(e.PFN) << 12
		}
	}
	return table
}

// Map installs a 4 KiB present+writable leaf mapping vpn -> ppn (both page
// frame numbers, i.e. addr>>12) at the PT level.
func (as *AddrSpace) Map(vpn, ppn uint64) {
	table := as.walkTo(vpn, 1)
	idx := levelIndex(vpn, 1)
	addr := table + uintptr(idx)*8
	if as.readEntry(addr).Present {
		panic("paging: refusing to demote an already-present entry")
	}
	as.writeEntry(addr, entry{Present: true, Writable: true, PFN: ppn})
}

// MapHuge installs a 2 MiB present+writable+huge leaf mapping at the PD
// level. vpn and ppn must be 2 MiB-aligned page frame numbers (i.e.
// divisible by 512).
func (as *AddrSpace) MapHuge(vpn, ppn uint64) {
	if vpn%512 != 0 || ppn%512 != 0 {
		panic("paging: MapHuge requires 2 MiB-aligned frame numbers")
	}
	table := as.walkTo(vpn, 2)
	idx := levelIndex(vpn, 2)
	addr := table + uintptr(idx)*8
	if as.readEntry(addr).Present {
		panic("paging: refusing to demote an already-present entry")
	}
	as.writeEntry(addr, entry{Present: true, Writable: true, Huge: true, PFN: ppn})
}

// Activate loads this address space's top-level table into CR3.
func (as *AddrSpace) Activate() {
	as.h.LoadCR3(as.top)
}

// NewIdentity builds the identity-mapped template every core activates at
// bring-up: the first 2 MiB mapped page-by-page, the remainder of RAM up to
// highMemPFN via 2 MiB huge pages, any residual sub-2-MiB tail via 4 KiB
// pages, and the LAPIC MMIO window explicitly mapped 4 KiB at a time.
func NewIdentity(h hal.HAL, frames *frame.Allocator, highMemPFN uint64) *AddrSpace {
	as := NewEmpty(h, frames)

	const pagesPerHuge = (2 * 1024 * 1024) / platform.PageSize // 512

	for pfn := uint64(0); pfn < pagesPerHuge && pfn < highMemPFN; pfn++ {
		as.Map(pfn, pfn)
	}

	pfn := uint64(pagesPerHuge)
	for pfn+pagesPerHuge <= highMemPFN {
		as.MapHuge(pfn, pfn)
		pfn += pagesPerHuge
	}
	for ; pfn < highMemPFN; pfn++ {
		as.Map(pfn, pfn)
	}

	lapicPFN := uint64(platform.LAPICBase) / platform.PageSize
	as.Map(lapicPFN, lapicPFN)

	return as
}
