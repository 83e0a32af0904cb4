package syscalls

import (
	"context"

	"github.com/evanphx/procsys/abi"
	"github.com/evanphx/procsys/kernel"
	"github.com/evanphx/procsys/memory"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// errno names the cause behind a Fail return. It is only logged.
func errno(err error) int {
	switch errors.Cause(err) {
	case nil:
		return 0
	case ErrBadArgument:
		return abi.EINVAL
	case memory.ErrBadAddress, memory.ErrReleased:
		return abi.EFAULT
	case memory.ErrOutOfMemory:
		return abi.ENOMEM
	case kernel.ErrNoChildren:
		return abi.ECHILD
	case kernel.ErrNoProcess:
		return abi.ESRCH
	case kernel.ErrKilled, context.Canceled:
		return abi.EINTR
	case kernel.ErrProcessLimit:
		return abi.EAGAIN
	case kernel.ErrInvalidPriority:
		return abi.EINVAL
	default:
		return abi.ENOSYS
	}
}

func fail(l hclog.Logger, msg string, err error) int32 {
	l.Trace(msg, "error", err, "errno", errno(err))
	return abi.Fail
}

func sysFork(ctx context.Context, l hclog.Logger, t *kernel.Task, f *Frame) int32 {
	child, err := t.Fork()
	if err != nil {
		if errors.Cause(err) != kernel.ErrProcessLimit {
			l.Error("error forking process", "error", err)
		}

		return fail(l, "fork-failed", err)
	}

	go child.Restart(0)

	return int32(child.Pid)
}

func sysExit(ctx context.Context, l hclog.Logger, t *kernel.Task, f *Frame) int32 {
	status, err := f.Int(0)
	if err != nil {
		return fail(l, "exit-bad-status", err)
	}

	t.Exit(status)

	// Not delivered: the caller has exited.
	return 0
}

// statusSink writes the matched status through the caller's pointer before
// the child is released, so a failed copy leaves the child reapable.
func statusSink(span memory.Span, ok bool) kernel.StatusSink {
	return func(status int32) error {
		if !ok {
			return nil
		}

		return span.WriteInt32(status)
	}
}

func sysWait(ctx context.Context, l hclog.Logger, t *kernel.Task, f *Frame) int32 {
	statAddr, hasStat, err := f.OptPtr(0, 4)
	if err != nil {
		return fail(l, "wait-bad-status-ptr", err)
	}

	pid, status, err := t.Reap(ctx, kernel.AnyChild, true, statusSink(statAddr, hasStat))
	if err != nil {
		return fail(l, "wait-failed", err)
	}

	l.Trace("wait-found-child", "child", pid, "status", status)

	return int32(pid)
}

// sysWaitpid waits for target. A child is reaped; any other live process
// is waited on without being reaped.
func sysWaitpid(ctx context.Context, l hclog.Logger, t *kernel.Task, f *Frame) int32 {
	target, err := f.Int(0)
	if err != nil {
		return fail(l, "waitpid-bad-pid", err)
	}

	statAddr, hasStat, err := f.OptPtr(1, 4)
	if err != nil {
		return fail(l, "waitpid-bad-status-ptr", err)
	}

	options, err := f.Int(2)
	if err != nil {
		return fail(l, "waitpid-bad-options", err)
	}

	block := options&abi.WNOHANG == 0

	pid, status, err := t.Reap(ctx, int(target), block, statusSink(statAddr, hasStat))
	if err != nil {
		return fail(l, "waitpid-failed", err)
	}

	if pid == 0 {
		l.Trace("waitpid-not-ready", "target", target)
		return 0
	}

	l.Trace("waitpid-found", "pid", pid, "status", status)

	return int32(pid)
}

func sysKill(ctx context.Context, l hclog.Logger, t *kernel.Task, f *Frame) int32 {
	pid, err := f.Int(0)
	if err != nil {
		return fail(l, "kill-bad-pid", err)
	}

	if err := t.Kernel.Kill(int(pid)); err != nil {
		return fail(l, "kill-failed", err)
	}

	return 0
}

func sysGetpid(ctx context.Context, l hclog.Logger, t *kernel.Task, f *Frame) int32 {
	return int32(t.Pid)
}

func sysSbrk(ctx context.Context, l hclog.Logger, t *kernel.Task, f *Frame) int32 {
	delta, err := f.Int(0)
	if err != nil {
		return fail(l, "sbrk-bad-delta", err)
	}

	old, err := t.Grow(delta)
	if err != nil {
		return fail(l, "sbrk-failed", err)
	}

	return int32(old)
}

func sysSleep(ctx context.Context, l hclog.Logger, t *kernel.Task, f *Frame) int32 {
	n, err := f.Int(0)
	if err != nil {
		return fail(l, "sleep-bad-ticks", err)
	}

	if n < 0 {
		return fail(l, "sleep-negative-ticks", errors.Wrapf(ErrBadArgument, "ticks=%d", n))
	}

	l.Trace("sleep-start", "ticks", n)

	if err := t.Kernel.Ticks().Sleep(t, uint32(n)); err != nil {
		return fail(l, "sleep-interrupted", err)
	}

	return 0
}

func sysUptime(ctx context.Context, l hclog.Logger, t *kernel.Task, f *Frame) int32 {
	return int32(t.Kernel.Ticks().Now())
}

func sysSetpriority(ctx context.Context, l hclog.Logger, t *kernel.Task, f *Frame) int32 {
	priority, err := f.Int(0)
	if err != nil {
		return fail(l, "setpriority-bad-value", err)
	}

	code, err := t.SetPriority(int(priority))
	if err != nil {
		return fail(l, "setpriority-rejected", err)
	}

	return int32(code)
}

func init() {
	register(abi.SysFork, "fork", 0, sysFork)
	register(abi.SysExit, "exit", 1, sysExit)
	register(abi.SysWait, "wait", 1, sysWait)
	register(abi.SysWaitpid, "waitpid", 3, sysWaitpid)
	register(abi.SysKill, "kill", 1, sysKill)
	register(abi.SysGetpid, "getpid", 0, sysGetpid)
	register(abi.SysSbrk, "sbrk", 1, sysSbrk)
	register(abi.SysSleep, "sleep", 1, sysSleep)
	register(abi.SysUptime, "uptime", 0, sysUptime)
	register(abi.SysSetpriority, "setpriority", 1, sysSetpriority)
}
