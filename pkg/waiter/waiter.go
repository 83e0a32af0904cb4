package waiter

import (
	"sync"

	"github.com/evanphx/procsys/log"
)

type EventType uint64

// Waiter fans a notification out to every registered Event whose mask
// intersects the notified mask.
type Waiter struct {
	mu sync.RWMutex

	waiters map[*Event]struct{}
}

type Event struct {
	Mask     EventType
	Context  interface{}
	Callback func(e *Event)
}

func (w *Waiter) Register(e *Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.waiters == nil {
		w.waiters = make(map[*Event]struct{})
	}

	w.waiters[e] = struct{}{}
}

func triggerChan(e *Event) {
	c := e.Context.(chan struct{})

	select {
	case c <- struct{}{}:
	default:
	}
}

// RegisterChannel arranges for a non-blocking send on c whenever an event
// in mask fires. c should be buffered so a notification that arrives while
// the owner is not receiving is kept.
func (w *Waiter) RegisterChannel(mask EventType, c chan struct{}) *Event {
	e := &Event{
		Callback: triggerChan,
		Context:  c,
		Mask:     mask,
	}

	w.Register(e)

	return e
}

func (w *Waiter) Unregister(e *Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.waiters, e)
}

func (w *Waiter) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return len(w.waiters)
}

func (w *Waiter) Notify(mask EventType) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	log.L.Trace("waiters-notify", "count", len(w.waiters), "mask", mask)

	for e := range w.waiters {
		if mask&e.Mask != 0 {
			e.Callback(e)
		}
	}
}
