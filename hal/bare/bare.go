//go:build multiboot2 && amd64

// Package bare implements hal.HAL by declaring each primitive as a
// //go:linkname reference to a symbol supplied by the bootstrap assembly
// (long-mode entry, port I/O, MSR access, LIDT/CR3 loads, the
// context_switch trampoline — all non-goals of this module; see spec §6).
// This mirrors the teacher kernel's own pattern of declaring bodyless
// //go:linkname functions bound to hand-written .s thunks (see
// timer_qemu.go's read_cntv_ctl_el0/write_cntv_ctl_el0 pair) rather than
// writing the assembly itself, which this module does not own.
package bare

import (
	"unsafe"

	"github.com/ryan-jacobs1/oxidizedos/hal"
)

// HAL is the zero-size bare-metal implementation of hal.HAL.
type HAL struct{}

// New returns the bare-metal HAL. There is exactly one per running kernel
// image; each core shares it, since the underlying primitives are either
// per-core hardware state (MSRs, flags) or explicitly core-addressed MMIO.
func New() HAL { return HAL{} }

//go:linkname asmInB asmInB
func asmInB(port uint16) uint8

//go:linkname asmInW asmInW
func asmInW(port uint16) uint16

//go:linkname asmInL asmInL
func asmInL(port uint16) uint32

//go:linkname asmOutB asmOutB
func asmOutB(port uint16, val uint8)

//go:linkname asmOutW asmOutW
func asmOutW(port uint16, val uint16)

//go:linkname asmOutL asmOutL
func asmOutL(port uint16, val uint32)

//go:linkname asmRDMSR asmRDMSR
func asmRDMSR(id uint32) uint64

//go:linkname asmWRMSR asmWRMSR
func asmWRMSR(id uint32, val uint64)

//go:linkname asmCLI asmCLI
func asmCLI()

//go:linkname asmSTI asmSTI
func asmSTI()

//go:linkname asmGetFlags asmGetFlags
func asmGetFlags() uint64

//go:linkname asmLoadCR3 asmLoadCR3
func asmLoadCR3(phys uintptr)

//go:linkname asmLIDT asmLIDT
func asmLIDT(base uintptr, limit uint16)

//go:linkname asmGetRSP asmGetRSP
func asmGetRSP() uintptr

//go:linkname asmHalt asmHalt
func asmHalt()

//go:linkname asmExit asmExit
func asmExit(code uint32)

//go:linkname asmMMIORead32 asmMMIORead32
func asmMMIORead32(addr uintptr) uint32

//go:linkname asmMMIOWrite32 asmMMIOWrite32
func asmMMIOWrite32(addr uintptr, val uint32)

//go:linkname asmContextSwitch asmContextSwitch
func asmContextSwitch(cur, next *hal.Context)

func (HAL) InB(port uint16) uint8           { return asmInB(port) }
func (HAL) InW(port uint16) uint16          { return asmInW(port) }
func (HAL) InL(port uint16) uint32          { return asmInL(port) }
func (HAL) OutB(port uint16, val uint8)     { asmOutB(port, val) }
func (HAL) OutW(port uint16, val uint16)    { asmOutW(port, val) }
func (HAL) OutL(port uint16, val uint32)    { asmOutL(port, val) }
func (HAL) RDMSR(id uint32) uint64          { return asmRDMSR(id) }
func (HAL) WRMSR(id uint32, val uint64)     { asmWRMSR(id, val) }
func (HAL) CLI()                            { asmCLI() }
func (HAL) STI()                            { asmSTI() }
func (HAL) GetFlags() uint64                { return asmGetFlags() }
func (HAL) LoadCR3(phys uintptr)            { asmLoadCR3(phys) }
func (HAL) LIDT(base uintptr, limit uint16) { asmLIDT(base, limit) }
func (HAL) GetRSP() uintptr                 { return asmGetRSP() }
func (HAL) Halt()                           { asmHalt() }
func (HAL) Exit(code uint32)                { asmExit(code) }
func (HAL) MMIORead32(addr uintptr) uint32  { return asmMMIORead32(addr) }
func (HAL) MMIOWrite32(addr uintptr, val uint32) {
	asmMMIOWrite32(addr, val)
}
func (HAL) ContextSwitch(cur, next *hal.Context) { asmContextSwitch(cur, next) }

// Memory access is a plain unsafe.Pointer cast through the identity
// mapping, the same shape as the teacher's memory.go readMemory*/
// writeMemory* helpers — no assembly thunk needed.

func (HAL) Read8(addr uintptr) uint8   { return *(*uint8)(unsafe.Pointer(addr)) }
func (HAL) Write8(addr uintptr, v uint8) { *(*uint8)(unsafe.Pointer(addr)) = v }

func (HAL) Read16(addr uintptr) uint16    { return *(*uint16)(unsafe.Pointer(addr)) }
func (HAL) Write16(addr uintptr, v uint16) { *(*uint16)(unsafe.Pointer(addr)) = v }

func (HAL) Read32(addr uintptr) uint32    { return *(*uint32)(unsafe.Pointer(addr)) }
func (HAL) Write32(addr uintptr, v uint32) { *(*uint32)(unsafe.Pointer(addr)) = v }

func (HAL) Read64(addr uintptr) uint64    { return *(*uint64)(unsafe.Pointer(addr)) }
func (HAL) Write64(addr uintptr, v uint64) { *(*uint64)(unsafe.Pointer(addr)) = v }

func (HAL) Zero(addr uintptr, n int) {
	buf := unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
	for i := range buf {
		buf[i] = 0
	}
}

var _ hal.HAL = HAL{}
