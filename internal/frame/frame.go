// Package frame implements the C1 physical frame allocator: a bump region
// backed by a freelist, handing out zeroed 4 KiB frames to the paging,
// heap and scheduler packages. It is grounded directly on the teacher
// kernel's page.go (allocPage/freePage/freePages), generalized from a
// page-metadata-array design to the intrusive-freelist design the target
// spec calls for: a freed frame's own first 8 bytes hold the next pointer,
// so the freelist costs no separate metadata array.
package frame

import (
	"fmt"

	"github.com/ryan-jacobs1/oxidizedos/hal"
	"github.com/ryan-jacobs1/oxidizedos/internal/platform"
	"github.com/ryan-jacobs1/oxidizedos/internal/spinlock"
)

// Allocator is the process-wide frame allocator state: a bump region
// [bumpLo, bumpHi) and an intrusive freelist of previously freed frames.
type Allocator struct {
	h    hal.HAL
	lock *spinlock.Spinlock

	bumpLo uintptr
	bumpHi uintptr
	free   uintptr // 0 means empty; otherwise a frame address
}

// New creates an allocator over [bumpLo, bumpHi), both of which must be
// page-aligned. bumpHi is normally the highest usable address from the
// Multiboot2 memory map; bumpLo must sit above the loaded kernel image.
func New(h hal.HAL, bumpLo, bumpHi uintptr) (*Allocator, error) {
	if bumpLo%platform.PageSize != 0 || bumpHi%platform.PageSize != 0 {
		return nil, fmt.Errorf("frame: bounds must be page-aligned, got [%#x, %#x)", bumpLo, bumpHi)
	}
	if bumpLo > bumpHi {
		return nil, fmt.Errorf("frame: bumpLo %#x exceeds bumpHi %#x", bumpLo, bumpHi)
	}
	return &Allocator{
		h:      h,
		lock:   spinlock.New(h),
		bumpLo: bumpLo,
		bumpHi: bumpHi,
	}, nil
}

// ErrExhausted is the value Alloc panics with when both the bump region and
// the freelist are empty; the C1 contract treats exhaustion as fatal.
var ErrExhausted = fmt.Errorf("frame: exhausted")

// Alloc returns a freshly zeroed 4 KiB frame from the bump region, falling
// back to the freelist only once the bump region is exhausted.
// Exhaustion of both is a programming-contract violation per spec §7 —
// kernel_init sizes the bump region from the real memory map specifically
// so this never happens in practice — so Alloc panics rather than
// returning an error the rest of the core would have to thread through
// every caller.
func (a *Allocator) Alloc() uintptr {
	wasEnabled := a.lock.Lock()
	defer a.lock.Unlock(wasEnabled)

	if a.bumpLo < a.bumpHi {
		frame := a.bumpLo
		a.bumpLo += platform.PageSize
		a.h.Zero(frame, platform.PageSize)
		return frame
	}

	if a.free != 0 {
		frame := a.free
		a.free = uintptr(a.h.Read64(frame))
		a.h.Zero(frame, platform.PageSize)
		return frame
	}

	panic(ErrExhausted)
}

// Free returns frame to the allocator, pushing it onto the freelist. frame
// must have come from Alloc and must not be freed twice; C1 makes no
// attempt to detect a double free (that would need a bitmap this design
// deliberately omits in favor of the intrusive list).
func (a *Allocator) Free(frame uintptr) {
	wasEnabled := a.lock.Lock()
	defer a.lock.Unlock(wasEnabled)

	a.h.Write64(frame, uint64(a.free))
	a.free = frame
}
