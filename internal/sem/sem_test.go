package sem

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/ryan-jacobs1/oxidizedos/hal/sim"
	"github.com/ryan-jacobs1/oxidizedos/internal/sched"
)

// spawnCore drives one simulated core forever: Start hands off from a
// throwaway boot stack into first, and the dispatch chain keeps running
// (picking up real work or spinning through synthesized idle TCBs) for as
// long as the test process lives.
func spawnCore(s *sched.Scheduler, core int, first *sched.TCB) {
	boot := s.NewBootstrap()
	s.Start(core, boot, first)
}

// TestMutualExclusion is this package's take on spec scenario S3, at a
// scale a test suite can run in well under a second: several simulated
// cores running truly concurrently (each its own goroutine chain, sharing
// one global ready queue), all incrementing a non-atomic counter guarded
// by a semaphore initialized to 1. If Down/Up ever let two threads into
// the critical section at once, this loses increments and the final
// count comes up short.
func TestMutualExclusion(t *testing.T) {
	h := sim.New()
	s := sched.New(h)
	mu := New(h, s, 1)

	const numCores = 4
	const numWorkers = 16
	const opsEach = 200

	var counter int
	var finished int64
	done := make(chan struct{})

	workers := make([]*sched.TCB, numWorkers)
	for i := range workers {
		self := new(*sched.TCB)
		w := s.NewWorker(func() {
			for j := 0; j < opsEach; j++ {
				mu.Down(*self)
				counter++
				mu.Up()
			}
			if atomic.AddInt64(&finished, 1) == numWorkers {
				close(done)
			}
		})
		*self = w
		workers[i] = w
	}

	for c := 0; c < numCores; c++ {
		go spawnCore(s, c, workers[c])
	}
	for i := numCores; i < numWorkers; i++ {
		s.Requeue(workers[i])
	}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("only %d/%d workers finished (counter=%d)", atomic.LoadInt64(&finished), numWorkers, counter)
	}

	if want := numWorkers * opsEach; counter != want {
		t.Fatalf("counter = %d, want %d (lost updates mean Down/Up let threads overlap)", counter, want)
	}
}

// TestProducerConsumer is a scaled-down S4: two semaphores (empty, full)
// guard a small ring buffer; producers push sequential ids, consumers pop
// them, and every id must be consumed exactly once.
func TestProducerConsumer(t *testing.T) {
	h := sim.New()
	s := sched.New(h)

	const ringSize = 8
	const numProducers = 2
	const numConsumers = 2
	const itemsPerProducer = 200
	const totalItems = numProducers * itemsPerProducer

	empty := New(h, s, ringSize)
	full := New(h, s, 0)
	mutex := New(h, s, 1)

	ring := make([]int, ringSize)
	head, tail := 0, 0

	seen := make([]int32, totalItems)
	var produced, completed int64
	done := make(chan struct{})

	var workers []*sched.TCB

	for p := 0; p < numProducers; p++ {
		base := p * itemsPerProducer
		self := new(*sched.TCB)
		w := s.NewWorker(func() {
			for i := 0; i < itemsPerProducer; i++ {
				empty.Down(*self)
				mutex.Down(*self)
				ring[tail] = base + i
				tail = (tail + 1) % ringSize
				mutex.Up()
				full.Up()
				atomic.AddInt64(&produced, 1)
			}
		})
		*self = w
		workers = append(workers, w)
	}

	for c := 0; c < numConsumers; c++ {
		self := new(*sched.TCB)
		w := s.NewWorker(func() {
			// Runs an unbounded pop loop: exactly totalItems full.Up()
			// calls will ever happen across all producers, so after
			// those are drained this goroutine's next full.Down simply
			// blocks forever, which is fine — the test only waits on
			// done, not on every consumer returning.
			for {
				full.Down(*self)
				mutex.Down(*self)
				v := ring[head]
				head = (head + 1) % ringSize
				mutex.Up()
				empty.Up()

				if atomic.AddInt32(&seen[v], 1) != 1 {
					t.Errorf("item %d consumed more than once", v)
				}
				if atomic.AddInt64(&completed, 1) == totalItems {
					close(done)
				}
			}
		})
		*self = w
		workers = append(workers, w)
	}

	const numCores = numProducers + numConsumers
	for i, w := range workers {
		if i < numCores {
			go spawnCore(s, i, w)
		} else {
			s.Requeue(w)
		}
	}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("producer/consumer did not drain all %d items (produced=%d, completed=%d)",
			totalItems, atomic.LoadInt64(&produced), atomic.LoadInt64(&completed))
	}

	for v, n := range seen {
		if n != 1 {
			t.Fatalf("item %d seen %d times, want exactly 1", v, n)
		}
	}
}
