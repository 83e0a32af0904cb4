package syscalls

import (
	"context"

	"github.com/evanphx/procsys/abi"
	"github.com/evanphx/procsys/kernel"
	hclog "github.com/hashicorp/go-hclog"
)

// ExitKilled is the status a killed process exits with on its way out of
// a syscall.
const ExitKilled int32 = -1

type Invoker struct {
	Kernel *kernel.Kernel
	L      hclog.Logger
}

func (i *Invoker) InvokeSyscall(ctx context.Context, args SysArgs) int32 {
	p, ok := kernel.GetTask(ctx)
	if !ok {
		i.L.Error("syscall without a current task", "index", args.Index)
		return abi.Fail
	}

	l := i.L.With("pid", p.Pid)

	ent, ok := lookup(args.Index)
	if !ok {
		l.Warn("unknown syscall", "index", args.Index)
		return abi.Fail
	}

	l = l.With("syscall", ent.name)

	if p.Killed() {
		l.Trace("killed-on-entry")
		p.Exit(ExitKilled)
		return abi.Fail
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.SetInterrupt(cancel)
	defer p.SetInterrupt(nil)

	f := NewFrame(p, args.Index, args.SP)

	ret := ent.impl(ctx, l, p, f)

	if p.Killed() && !p.Exited() {
		l.Trace("killed-on-return", "ret", ret)
		p.Exit(ExitKilled)
	}

	return ret
}
