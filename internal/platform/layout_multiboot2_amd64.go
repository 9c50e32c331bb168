//go:build multiboot2 && amd64

package platform

// FrameBumpBase is where the C1 frame allocator starts handing out frames
// before any have been freed back to it. It sits well above a generously
// sized kernel image plus Multiboot2 info block; kernel_init verifies this
// against the memory map it's handed before trusting it.
const FrameBumpBase uintptr = 0x0100_0000

// HeapStart and HeapEnd bound the arena internal/heap carves its free list
// out of. The range is identity-mapped by paging.NewIdentity during
// kernel_init before the heap is handed its first block.
const (
	HeapStart uintptr = 0x0020_0000
	HeapEnd   uintptr = 0x00A0_0000
)
