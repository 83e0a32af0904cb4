package waiter

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

const (
	evA EventType = 1 << iota
	evB
)

func TestWaiter(t *testing.T) {
	n := neko.Modern(t)

	n.It("signals channels whose mask matches", func(t *testing.T) {
		var w Waiter

		a := make(chan struct{}, 1)
		b := make(chan struct{}, 1)

		w.RegisterChannel(evA, a)
		w.RegisterChannel(evB, b)

		w.Notify(evA)

		require.Len(t, a, 1)
		require.Len(t, b, 0)
	})

	n.It("keeps a single pending notification without blocking", func(t *testing.T) {
		var w Waiter

		c := make(chan struct{}, 1)
		w.RegisterChannel(evA|evB, c)

		w.Notify(evA)
		w.Notify(evB)

		require.Len(t, c, 1)
	})

	n.It("stops signalling after unregister", func(t *testing.T) {
		var w Waiter

		c := make(chan struct{}, 1)
		e := w.RegisterChannel(evA, c)

		w.Unregister(e)
		require.Equal(t, 0, w.Len())

		w.Notify(evA)
		require.Len(t, c, 0)
	})

	n.Meow()
}
