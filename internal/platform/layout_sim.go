//go:build !(multiboot2 && amd64)

package platform

// Layout constants for hal/sim-backed tests, where there is no real
// physical memory map to respect. Values are chosen to match the shape of
// the real layout_multiboot2_amd64.go ranges (heap arena below the frame
// bump base) without needing to be real addresses — sim's frame/heap/paging
// backends never touch actual memory through these.
const FrameBumpBase uintptr = 0x0100_0000

const (
	HeapStart uintptr = 0x0020_0000
	HeapEnd   uintptr = 0x00A0_0000
)
