// Package sim implements hal.HAL in plain hosted Go, backing ports, MSRs,
// flags and MMIO with maps and slices instead of real hardware. It is the
// implementation every _test.go in this module links against, the same way
// tinyrange-cc's internal/hv runs its VM logic against a kvm, hvf, or whp
// backend behind one interface — here the two backends are "real machine"
// (hal/bare) and "host process" (hal/sim).
//
// ContextSwitch cannot literally swap machine stacks from hosted Go (there
// is no RSP to repoint), so sim models a suspended thread as a parked
// goroutine: ContextSwitch blocks the caller on its own channel and wakes
// whichever thread owns the Context being switched to. This preserves the
// property the scheduler tests actually care about — a call to
// ContextSwitch does not return until some other party has performed the
// matching switch back — without requiring real assembly.
package sim

import (
	"sync"

	"github.com/ryan-jacobs1/oxidizedos/hal"
)

// HAL is the hosted simulation of the hardware primitives.
type HAL struct {
	mu sync.Mutex

	ports  map[uint16]uint32
	msrs   map[uint32]uint64
	mmio   map[uintptr]uint32
	mem    map[uintptr]uint8
	flags  uint64
	exited bool
	code   uint32

	// parked maps a Context's address to the channel its owning goroutine
	// is waiting on, and to the channel used to wake it back up.
	parked map[*hal.Context]chan struct{}
}

// New returns a fresh simulated HAL with interrupts enabled (flags bit 0
// set), matching the state the real boot assembly leaves each core in
// right before it hands control to Go.
func New() *HAL {
	return &HAL{
		ports:  make(map[uint16]uint32),
		msrs:   make(map[uint32]uint64),
		mmio:   make(map[uintptr]uint32),
		mem:    make(map[uintptr]uint8),
		flags:  1,
		parked: make(map[*hal.Context]chan struct{}),
	}
}

func (h *HAL) InB(port uint16) uint8  { h.mu.Lock(); defer h.mu.Unlock(); return uint8(h.ports[port]) }
func (h *HAL) InW(port uint16) uint16 { h.mu.Lock(); defer h.mu.Unlock(); return uint16(h.ports[port]) }
func (h *HAL) InL(port uint16) uint32 { h.mu.Lock(); defer h.mu.Unlock(); return h.ports[port] }

func (h *HAL) OutB(port uint16, val uint8)  { h.mu.Lock(); h.ports[port] = uint32(val); h.mu.Unlock() }
func (h *HAL) OutW(port uint16, val uint16) { h.mu.Lock(); h.ports[port] = uint32(val); h.mu.Unlock() }
func (h *HAL) OutL(port uint16, val uint32) { h.mu.Lock(); h.ports[port] = val; h.mu.Unlock() }

func (h *HAL) RDMSR(id uint32) uint64 { h.mu.Lock(); defer h.mu.Unlock(); return h.msrs[id] }
func (h *HAL) WRMSR(id uint32, val uint64) {
	h.mu.Lock()
	h.msrs[id] = val
	h.mu.Unlock()
}

func (h *HAL) CLI() { h.mu.Lock(); h.flags &^= 1; h.mu.Unlock() }
func (h *HAL) STI() { h.mu.Lock(); h.flags |= 1; h.mu.Unlock() }
func (h *HAL) GetFlags() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.flags
}

func (h *HAL) LoadCR3(phys uintptr)            {}
func (h *HAL) LIDT(base uintptr, limit uint16) {}
func (h *HAL) GetRSP() uintptr                 { return 0 }
func (h *HAL) Halt()                           {}
func (h *HAL) Exit(code uint32) {
	h.mu.Lock()
	h.exited = true
	h.code = code
	h.mu.Unlock()
}

func (h *HAL) MMIORead32(addr uintptr) uint32 { h.mu.Lock(); defer h.mu.Unlock(); return h.mmio[addr] }
func (h *HAL) MMIOWrite32(addr uintptr, val uint32) {
	h.mu.Lock()
	h.mmio[addr] = val
	h.mu.Unlock()
}

// Read8/Write8 and friends simulate physical memory with a sparse
// address-indexed byte map, little-endian, so the frame allocator, paging
// and heap packages can zero, read and write "RAM" the same way they would
// through the real identity mapping.

func (h *HAL) Read8(addr uintptr) uint8 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mem[addr]
}

func (h *HAL) Write8(addr uintptr, v uint8) {
	h.mu.Lock()
	h.mem[addr] = v
	h.mu.Unlock()
}

func (h *HAL) Read16(addr uintptr) uint16 {
	return uint16(h.Read8(addr)) | uint16(h.Read8(addr+1))<<8
}

func (h *HAL) Write16(addr uintptr, v uint16) {
	h.Write8(addr, uint8(v))
	h.Write8(addr+1, uint8(v>>8))
}

func (h *HAL) Read32(addr uintptr) uint32 {
	return uint32(h.Read16(addr)) | uint32(h.Read16(addr+2))<<16
}

func (h *HAL) Write32(addr uintptr, v uint32) {
	h.Write16(addr, uint16(v))
	h.Write16(addr+2, uint16(v>>16))
}

func (h *HAL) Read64(addr uintptr) uint64 {
	return uint64(h.Read32(addr)) | uint64(h.Read32(addr+4))<<32
}

func (h *HAL) Write64(addr uintptr, v uint64) {
	h.Write32(addr, uint32(v))
	h.Write32(addr+4, uint32(v>>32))
}

func (h *HAL) Zero(addr uintptr, n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := 0; i < n; i++ {
		delete(h.mem, addr+uintptr(i))
	}
}

// ContextSwitch parks the calling goroutine (representing "cur") and either
// wakes whatever goroutine previously parked as "next", or — if next has
// never been dispatched before — spawns next.Entry as a fresh goroutine.
// That split mirrors what asmContextSwitch gets for free on real hardware:
// popping a never-run Worker's pre-seeded stack lands in thread_entry_point,
// while popping a previously-suspended one resumes it mid-function.
//
// cur is registered as parked before next is woken or spawned, so a next
// that immediately turns around and switches back to cur can never race
// ahead of cur's own park.
func (h *HAL) ContextSwitch(cur, next *hal.Context) {
	h.mu.Lock()
	wake, wasParked := h.parked[next]
	if wasParked {
		delete(h.parked, next)
	}
	mine := make(chan struct{})
	h.parked[cur] = mine
	h.mu.Unlock()

	if wasParked {
		close(wake)
	} else if next.Entry != nil {
		go next.Entry()
	}

	<-mine
}

// Resume wakes a goroutine previously parked on ctx via ContextSwitch,
// without itself blocking. Tests use this to drive a scheduler loop that
// lives entirely in goroutines.
func (h *HAL) Resume(ctx *hal.Context) {
	h.mu.Lock()
	wake, ok := h.parked[ctx]
	if ok {
		delete(h.parked, ctx)
	}
	h.mu.Unlock()
	if ok {
		close(wake)
	}
}

// Exited reports whether Exit has been called, and with what code — used
// by tests asserting the S1..S6 end-to-end scenarios reach a clean exit.
func (h *HAL) Exited() (bool, uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exited, h.code
}

var _ hal.HAL = (*HAL)(nil)
