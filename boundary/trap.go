package boundary

import (
	"context"

	"github.com/evanphx/procsys/abi"
	"github.com/evanphx/procsys/kernel"
	"github.com/evanphx/procsys/syscalls"
	hclog "github.com/hashicorp/go-hclog"
)

type SyscallInvoker interface {
	InvokeSyscall(context.Context, syscalls.SysArgs) int32
}

// TrapFrame is the user register state saved on entry to the kernel. EAX
// carries the syscall number in and the result out.
type TrapFrame struct {
	EAX uint32
	ESP uint32
}

type Trap struct {
	L       hclog.Logger
	Invoker SyscallInvoker
}

// Syscall services the syscall described by tf and writes the result back
// into tf.EAX.
func (tr *Trap) Syscall(ctx context.Context, tf *TrapFrame) {
	idx := int32(tf.EAX)
	ret := abi.Fail

	defer func() {
		tf.EAX = uint32(ret)
	}()

	p, ok := kernel.GetTask(ctx)
	if !ok {
		tr.L.Error("trap without a current task", "index", idx)
		return
	}

	tr.L.Trace("syscall", "pid", p.Pid, "index", idx, "name", syscalls.Name(idx), "sp", tf.ESP)

	ret = tr.Invoker.InvokeSyscall(ctx, syscalls.SysArgs{Index: idx, SP: tf.ESP})
}
