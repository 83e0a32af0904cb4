// Package user is the user-side half of the syscall ABI: it lays
// arguments out on the calling process's stack, traps, and reads the
// result back, the way a C library stub would.
package user

import (
	"context"
	"runtime"

	"github.com/evanphx/procsys/abi"
	"github.com/evanphx/procsys/boundary"
	"github.com/evanphx/procsys/kernel"
	"github.com/evanphx/procsys/log"
	"github.com/evanphx/procsys/memory"
)

const (
	StackTop = 2 * memory.PageSize

	// statusAddr is the word wait and waitpid write the exit status into.
	statusAddr = 0x100
)

type Proc struct {
	ctx  context.Context
	trap *boundary.Trap
	task *kernel.Task
}

func New(ctx context.Context, trap *boundary.Trap, t *kernel.Task) *Proc {
	return &Proc{
		ctx:  ctx,
		trap: trap,
		task: t,
	}
}

// Program turns body into a process entry.
func Program(trap *boundary.Trap, body func(u *Proc)) kernel.Entry {
	return func(ctx context.Context, t *kernel.Task, ret int32) {
		body(New(ctx, trap, t))
	}
}

// fault terminates the process the way an unhandled page fault would.
func (u *Proc) fault(err error) {
	log.L.Error("user-fault", "pid", u.task.Pid, "error", err)
	u.task.MarkKilled()
	u.task.Exit(-1)
	runtime.Goexit()
}

func (u *Proc) syscall(index int32, args ...int32) int32 {
	sp := uint32(StackTop - 4*(len(args)+1))

	words := append([]int32{0}, args...)
	for i, w := range words {
		s, err := u.task.Mem.Span(sp+uint32(4*i), 4)
		if err != nil {
			u.fault(err)
		}

		if err := s.WriteInt32(w); err != nil {
			u.fault(err)
		}
	}

	tf := &boundary.TrapFrame{
		EAX: uint32(index),
		ESP: sp,
	}

	u.trap.Syscall(u.ctx, tf)

	if u.task.Exited() {
		runtime.Goexit()
	}

	return int32(tf.EAX)
}

func (u *Proc) readStatus() int32 {
	s, err := u.task.Mem.Span(statusAddr, 4)
	if err != nil {
		u.fault(err)
	}

	v, err := s.ReadInt32()
	if err != nil {
		u.fault(err)
	}

	return v
}

// Fork starts a child running child. The parent gets the child's pid, or
// abi.Fail.
func (u *Proc) Fork(child func(u *Proc)) int32 {
	u.task.SetEntry(Program(u.trap, child))
	return u.syscall(abi.SysFork)
}

// Exit does not return.
func (u *Proc) Exit(status int32) {
	u.syscall(abi.SysExit, status)
	runtime.Goexit()
}

func (u *Proc) Wait() (pid, status int32) {
	pid = u.syscall(abi.SysWait, statusAddr)
	if pid <= 0 {
		return pid, 0
	}

	return pid, u.readStatus()
}

func (u *Proc) WaitPid(target, options int32) (pid, status int32) {
	pid = u.syscall(abi.SysWaitpid, target, statusAddr, options)
	if pid <= 0 {
		return pid, 0
	}

	return pid, u.readStatus()
}

func (u *Proc) Kill(pid int32) int32 {
	return u.syscall(abi.SysKill, pid)
}

func (u *Proc) Getpid() int32 {
	return u.syscall(abi.SysGetpid)
}

func (u *Proc) Sbrk(delta int32) int32 {
	return u.syscall(abi.SysSbrk, delta)
}

func (u *Proc) Sleep(ticks int32) int32 {
	return u.syscall(abi.SysSleep, ticks)
}

func (u *Proc) Uptime() int32 {
	return u.syscall(abi.SysUptime)
}

func (u *Proc) SetPriority(priority int32) int32 {
	return u.syscall(abi.SysSetpriority, priority)
}
