package syscalls

import (
	"context"

	"github.com/evanphx/procsys/kernel"
	hclog "github.com/hashicorp/go-hclog"
)

// SysArgs is what the trap layer hands over: the syscall number and the
// user stack pointer the positional arguments sit above.
type SysArgs struct {
	Index int32
	SP    uint32
}

type Syscall func(context.Context, hclog.Logger, *kernel.Task, *Frame) int32

type sysentry struct {
	name  string
	nargs int
	impl  Syscall
}

var Syscalls [64]sysentry

func register(index int32, name string, nargs int, impl Syscall) {
	Syscalls[index] = sysentry{
		name:  name,
		nargs: nargs,
		impl:  impl,
	}
}

func lookup(index int32) (sysentry, bool) {
	if index < 0 || int(index) >= len(Syscalls) {
		return sysentry{}, false
	}

	ent := Syscalls[index]
	return ent, ent.impl != nil
}

// Name returns the registered name of a syscall number, or "" if none.
func Name(index int32) string {
	ent, _ := lookup(index)
	return ent.name
}
