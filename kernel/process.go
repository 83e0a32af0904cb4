package kernel

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/evanphx/procsys/log"
	"github.com/evanphx/procsys/memory"
	"github.com/evanphx/procsys/pkg/waiter"
	"github.com/pkg/errors"
)

type prockey struct{}

func GetTask(ctx context.Context) (*Task, bool) {
	if v := ctx.Value(prockey{}); v != nil {
		return v.(*Task), true
	}

	return nil, false
}

func SetTask(ctx context.Context, t *Task) context.Context {
	return context.WithValue(ctx, prockey{}, t)
}

// Task is the process currently executing a syscall.
type Task struct {
	*Process
}

type ProcessStatus int

const (
	Running ProcessStatus = 1
	Zombie  ProcessStatus = 2
	Reaped  ProcessStatus = 3
)

func (s ProcessStatus) String() string {
	switch s {
	case Running:
		return "running"
	case Zombie:
		return "zombie"
	case Reaped:
		return "reaped"
	default:
		return "unknown"
	}
}

// Entry is the user-level code of a process. ret is the value the process
// observes as the result of the fork that created it.
type Entry func(ctx context.Context, t *Task, ret int32)

type Process struct {
	Kernel *Kernel
	Pid    int
	Mem    *memory.VirtualMemory

	// Protected by Kernel.treeMu.
	parent     *Process
	children   map[int]*Process
	status     ProcessStatus
	exitStatus int32

	killed atomic.Bool
	events waiter.Waiter
	done   chan struct{}

	mu            sync.Mutex
	priority      int
	entry         Entry
	interruptFunc func()
}

func newProcess(k *Kernel) *Process {
	return &Process{
		Kernel:   k,
		children: make(map[int]*Process),
		status:   Running,
		done:     make(chan struct{}),
	}
}

func (p *Process) Killed() bool {
	return p.killed.Load()
}

func (p *Process) Priority() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.priority
}

func (p *Process) Status() ProcessStatus {
	p.Kernel.treeMu.Lock()
	defer p.Kernel.treeMu.Unlock()

	return p.status
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *Process) SetEntry(e Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entry = e
}

func (p *Process) info() ProcessInfo {
	p.Kernel.treeMu.Lock()
	var ppid int
	if p.parent != nil {
		ppid = p.parent.Pid
	}
	status := p.status
	p.Kernel.treeMu.Unlock()

	var brk uint32
	if p.Mem != nil {
		brk = p.Mem.Size()
	}

	return ProcessInfo{
		Pid:      p.Pid,
		Parent:   ppid,
		Status:   status.String(),
		Killed:   p.Killed(),
		Priority: p.Priority(),
		Break:    brk,
	}
}

// Fork creates a child holding a copy of p's address space, priority and
// entry. The child is not started.
func (p *Process) Fork() (*Process, error) {
	k := p.Kernel

	mem, err := p.Mem.Fork()
	if err != nil {
		return nil, errors.Wrap(err, "copying address space")
	}

	child := newProcess(k)
	child.Mem = mem

	p.mu.Lock()
	child.priority = p.priority
	child.entry = p.entry
	p.mu.Unlock()

	if _, err := k.processes.AssignPid(child); err != nil {
		mem.Release()
		return nil, err
	}

	k.treeMu.Lock()
	child.parent = p
	p.children[child.Pid] = child
	k.treeMu.Unlock()

	log.L.Trace("process-fork", "pid", p.Pid, "child", child.Pid)

	return child, nil
}

// Restart runs the process entry with ret as the observed fork result.
// A process whose entry returns without exiting exits with status 0.
func (p *Process) Restart(ret int32) {
	p.mu.Lock()
	entry := p.entry
	p.mu.Unlock()

	defer func() {
		if !p.Exited() {
			p.Exit(0)
		}
	}()

	if entry == nil {
		return
	}

	t := &Task{Process: p}
	entry(SetTask(context.Background(), t), t, ret)
}

// Exit makes p a zombie holding status, hands its children to init and
// wakes the parent. Calling Exit twice is a no-op. Once init is gone there
// is nobody left to reap, so a process exiting without a parent, and any
// orphan that is already a zombie, is released at once.
func (p *Process) Exit(status int32) {
	k := p.Kernel

	k.treeMu.Lock()

	if p.status != Running {
		k.treeMu.Unlock()
		return
	}

	initp := k.init
	if initp == p {
		log.L.Debug("init-exit", "pid", p.Pid, "status", status)
	}

	if initp != nil && (initp == p || initp.status != Running) {
		initp = nil
	}

	p.status = Zombie
	p.exitStatus = status

	var (
		orphanZombie bool
		unowned      []*Process
	)

	for pid, c := range p.children {
		c.parent = initp

		switch {
		case initp != nil:
			initp.children[pid] = c
			if c.status == Zombie {
				orphanZombie = true
			}
		case c.status == Zombie:
			c.status = Reaped
			unowned = append(unowned, c)
		}
	}

	p.children = make(map[int]*Process)
	parent := p.parent

	if parent == nil && p != k.init {
		p.status = Reaped
		unowned = append(unowned, p)
	}

	k.treeMu.Unlock()

	close(p.done)

	log.L.Trace("process-exit", "pid", p.Pid, "status", status)

	for _, u := range unowned {
		u.release()
		log.L.Trace("process-released-unowned", "pid", u.Pid)
	}

	if parent != nil {
		parent.events.Notify(ChildExited)
	}

	if orphanZombie {
		initp.events.Notify(ChildExited)
	}
}

// exitState reports whether p has left Running and, if so, its status.
func (p *Process) exitState() (int32, bool) {
	p.Kernel.treeMu.Lock()
	defer p.Kernel.treeMu.Unlock()

	return p.exitStatus, p.status != Running
}

// release frees a reaped process's memory and its table slot.
func (p *Process) release() {
	p.Mem.Release()
	p.Kernel.processes.Remove(p)
}

// Grow moves the break by delta and returns the previous break.
func (p *Process) Grow(delta int32) (uint32, error) {
	return p.Mem.Grow(delta)
}

func (p *Process) SetPriority(priority int) (int, error) {
	return p.Kernel.sched.SetPriority(p, priority)
}
