package frame

import (
	"testing"

	"github.com/ryan-jacobs1/oxidizedos/hal/sim"
	"github.com/ryan-jacobs1/oxidizedos/internal/platform"
)

func newTestAllocator(t *testing.T) (*Allocator, *sim.HAL) {
	t.Helper()
	h := sim.New()
	a, err := New(h, platform.FrameBumpBase, platform.FrameBumpBase+16*platform.PageSize)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, h
}

func TestAllocBumpsForward(t *testing.T) {
	a, _ := newTestAllocator(t)
	f1 := a.Alloc()
	f2 := a.Alloc()
	if f2 != f1+platform.PageSize {
		t.Fatalf("expected sequential frames, got %#x then %#x", f1, f2)
	}
}

func TestAllocReturnsZeroedFrame(t *testing.T) {
	// A one-frame bump region: after the first Alloc it is exhausted, so
	// the next Alloc has to come off the freelist.
	h := sim.New()
	a, err := New(h, platform.FrameBumpBase, platform.FrameBumpBase+platform.PageSize)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f := a.Alloc()
	h.Write64(f, 0xDEADBEEF)
	a.Free(f)
	f2 := a.Alloc()
	if f2 != f {
		t.Fatalf("expected freelist to return the just-freed frame")
	}
	if got := h.Read64(f2); got != 0 {
		t.Fatalf("expected zeroed frame, got %#x", got)
	}
}

func TestFreeListLIFO(t *testing.T) {
	// A two-frame bump region, exhausted by the two Allocs below, so the
	// later Allocs are served from the freelist.
	h := sim.New()
	a, err := New(h, platform.FrameBumpBase, platform.FrameBumpBase+2*platform.PageSize)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f1 := a.Alloc()
	f2 := a.Alloc()
	a.Free(f1)
	a.Free(f2)

	if got := a.Alloc(); got != f2 {
		t.Fatalf("expected most recently freed frame %#x first, got %#x", f2, got)
	}
	if got := a.Alloc(); got != f1 {
		t.Fatalf("expected %#x second, got %#x", f1, got)
	}
}

func TestAllocExhaustionPanics(t *testing.T) {
	h := sim.New()
	a, err := New(h, platform.FrameBumpBase, platform.FrameBumpBase+platform.PageSize)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.Alloc()

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic on exhaustion")
		}
	}()
	a.Alloc()
}

func TestNewRejectsUnalignedBounds(t *testing.T) {
	h := sim.New()
	if _, err := New(h, platform.FrameBumpBase+1, platform.FrameBumpBase+platform.PageSize); err == nil {
		t.Fatalf("expected error for unaligned bumpLo")
	}
}
