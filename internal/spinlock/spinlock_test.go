package spinlock

import (
	"sync"
	"testing"

	"github.com/ryan-jacobs1/oxidizedos/hal/sim"
)

func TestLockUnlockRestoresFlags(t *testing.T) {
	h := sim.New()
	h.STI()
	l := New(h)

	wasEnabled := l.Lock()
	if !wasEnabled {
		t.Fatalf("expected interrupts to have been enabled before Lock")
	}
	if h.GetFlags()&1 != 0 {
		t.Fatalf("Lock should have disabled interrupts while held")
	}
	l.Unlock(wasEnabled)
	if h.GetFlags()&1 == 0 {
		t.Fatalf("Unlock should have restored interrupts")
	}
}

func TestMutexExcludesConcurrentAccess(t *testing.T) {
	h := sim.New()
	m := NewMutex(h, 0)

	const goroutines = 16
	const incrementsEach = 200

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < incrementsEach; j++ {
				g := m.Lock()
				*g.Value()++
				g.Unlock()
			}
		}()
	}
	wg.Wait()

	g := m.Lock()
	defer g.Unlock()
	if got, want := *g.Value(), goroutines*incrementsEach; got != want {
		t.Fatalf("got %d increments, want %d", got, want)
	}
}
