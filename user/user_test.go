package user

import (
	"context"
	"testing"
	"time"

	"github.com/evanphx/procsys/abi"
	"github.com/evanphx/procsys/boundary"
	"github.com/evanphx/procsys/kernel"
	"github.com/evanphx/procsys/log"
	"github.com/evanphx/procsys/syscalls"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

// boot starts init running body with a fast clock and returns once init
// has exited.
func boot(t *testing.T, body func(u *Proc)) *kernel.Kernel {
	k, err := kernel.NewKernel(kernel.DefaultConfig())
	require.NoError(t, err)

	trap := &boundary.Trap{
		L:       log.L,
		Invoker: &syscalls.Invoker{Kernel: k, L: log.L},
	}

	initp, err := k.InitProcess(Program(trap, body))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &kernel.Clock{L: log.L, Ticks: k.Ticks(), Interval: time.Millisecond}
	go clock.Run(ctx)

	k.StartProcess(initp)

	select {
	case <-initp.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("init did not exit")
	}

	return k
}

func TestUser(t *testing.T) {
	n := neko.Modern(t)

	n.It("reaps children with their exit statuses", func(t *testing.T) {
		results := map[int32]int32{}
		forked := map[int32]int32{}

		boot(t, func(u *Proc) {
			for i := int32(1); i <= 3; i++ {
				code := i
				pid := u.Fork(func(c *Proc) {
					c.Sleep(code * 5)
					c.Exit(code)
				})
				forked[pid] = code
			}

			for {
				pid, status := u.Wait()
				if pid < 0 {
					break
				}

				results[pid] = status
			}

			u.Exit(0)
		})

		require.Len(t, results, 3)
		require.Equal(t, forked, results)
	})

	n.It("kills a sleeping child", func(t *testing.T) {
		var (
			killRet int32
			pid     int32
			status  int32
		)

		boot(t, func(u *Proc) {
			child := u.Fork(func(c *Proc) {
				c.Sleep(1000000)
				c.Exit(0)
			})

			u.Sleep(2)

			killRet = u.Kill(child)
			pid, status = u.WaitPid(child, 0)

			u.Exit(0)
		})

		require.Equal(t, int32(0), killRet)
		require.Greater(t, pid, int32(1))
		require.Equal(t, syscalls.ExitKilled, status)
	})

	n.It("sees its own pid and a moving uptime", func(t *testing.T) {
		var (
			pid           int32
			before, after int32
		)

		boot(t, func(u *Proc) {
			pid = u.Getpid()
			before = u.Uptime()
			u.Sleep(3)
			after = u.Uptime()
		})

		require.Equal(t, int32(1), pid)
		require.GreaterOrEqual(t, after-before, int32(3))
	})

	n.It("polls with WNOHANG", func(t *testing.T) {
		var first, second int32

		boot(t, func(u *Proc) {
			child := u.Fork(func(c *Proc) {
				c.Sleep(50)
				c.Exit(9)
			})

			first, _ = u.WaitPid(child, abi.WNOHANG)
			second, _ = u.WaitPid(child, 0)
		})

		require.Equal(t, int32(0), first)
		require.Greater(t, second, int32(1))
	})

	n.It("grows memory and adjusts priority", func(t *testing.T) {
		var (
			brk, next, bad int32
			prio, badPrio  int32
		)

		boot(t, func(u *Proc) {
			brk = u.Sbrk(4096)
			next = u.Sbrk(0)
			bad = u.Sbrk(0x7fffffff)
			prio = u.SetPriority(1)
			badPrio = u.SetPriority(-1)
		})

		require.Equal(t, brk+4096, next)
		require.Equal(t, abi.Fail, bad)
		require.Equal(t, int32(0), prio)
		require.Equal(t, abi.Fail, badPrio)
	})

	n.Meow()
}
