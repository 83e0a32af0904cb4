package kernel

import "sync"

type Killable interface {
	Killed() bool
}

// Ticks counts timer interrupts since boot. The count is only read or
// written with mu held.
type Ticks struct {
	mu   sync.Mutex
	cond *sync.Cond
	n    uint32
}

func NewTicks() *Ticks {
	t := &Ticks{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Tick advances the counter by one and wakes every sleeper.
func (t *Ticks) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.n++
	t.cond.Broadcast()
}

func (t *Ticks) Now() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.n
}

// Wakeup wakes every sleeper without advancing the counter so each one
// rechecks its killed flag.
func (t *Ticks) Wakeup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cond.Broadcast()
}

// Sleep blocks until n ticks have elapsed or p is marked killed. The
// predicate is checked with mu held and cond.Wait releases it atomically,
// so a Tick or Wakeup between the check and the suspend is not lost.
func (t *Ticks) Sleep(p Killable, n uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := t.n

	for t.n-start < n {
		if p.Killed() {
			return ErrKilled
		}

		t.cond.Wait()
	}

	return nil
}
