package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/evanphx/procsys/boundary"
	"github.com/evanphx/procsys/kernel"
	clog "github.com/evanphx/procsys/log"
	"github.com/evanphx/procsys/syscalls"
	"github.com/evanphx/procsys/user"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
)

var (
	fMaxProcs = pflag.Int("max-procs", 64, "maximum number of live processes")
	fMemLimit = pflag.Uint32("mem-limit", 0x80000000, "address every process break must stay below")
	fTick     = pflag.Duration("tick", 10*time.Millisecond, "host time per timer tick")
	fChildren = pflag.Int("children", 4, "children init forks")
	fSleep    = pflag.Int("sleep", 10, "ticks each child sleeps per position")
	fDump     = pflag.Bool("dump", false, "dump the process table before reaping")
	fDebug    = pflag.BoolP("debug", "d", false, "enable debug logging")
)

func main() {
	pflag.Parse()

	if *fDebug {
		clog.EnableDebug()
	}

	cfg := kernel.DefaultConfig()
	cfg.MaxProcs = *fMaxProcs
	cfg.MemoryLimit = *fMemLimit

	k, err := kernel.NewKernel(cfg)
	if err != nil {
		log.Fatal(err)
	}

	trap := &boundary.Trap{
		L: clog.L,
		Invoker: &syscalls.Invoker{
			Kernel: k,
			L:      clog.L,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	clock := &kernel.Clock{
		L:        clog.L.Named("clock"),
		Ticks:    k.Ticks(),
		Interval: *fTick,
	}

	go clock.Run(ctx)

	initp, err := k.InitProcess(user.Program(trap, func(u *user.Proc) {
		runInit(k, u)
	}))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("procsim: host pid %d, %d children, tick %s\n", unix.Getpid(), *fChildren, *fTick)

	k.StartProcess(initp)

	select {
	case <-initp.Done():
	case <-ctx.Done():
		clog.L.Info("interrupted", "uptime", k.Ticks().Now())
		os.Exit(1)
	}
}

// runInit forks the workload, kills the straggler and reaps everything.
func runInit(k *kernel.Kernel, u *user.Proc) {
	for i := 1; i <= *fChildren; i++ {
		code := int32(i)
		ticks := int32(i * *fSleep)

		pid := u.Fork(func(c *user.Proc) {
			c.SetPriority(code % 32)
			c.Sbrk(4096 * code)
			c.Sleep(ticks)
			c.Exit(code)
		})

		if pid < 0 {
			clog.L.Error("fork failed", "child", i)
			continue
		}

		clog.L.Info("forked", "pid", pid, "sleep", ticks)
	}

	straggler := u.Fork(func(c *user.Proc) {
		c.Sleep(1 << 30)
		c.Exit(0)
	})

	if *fDump {
		fmt.Print(spew.Sdump(k.Processes()))
	}

	u.Sleep(int32(*fSleep))

	if straggler > 0 && u.Kill(straggler) == 0 {
		clog.L.Info("killed", "pid", straggler)
	}

	for {
		pid, status := u.Wait()
		if pid < 0 {
			break
		}

		clog.L.Info("reaped", "pid", pid, "status", status, "uptime", u.Uptime())
	}

	u.Exit(0)
}
