package kernel

import (
	"context"

	"github.com/evanphx/procsys/log"
	"github.com/evanphx/procsys/pkg/waiter"
	"github.com/pkg/errors"
)

const (
	ChildExited waiter.EventType = 1 << iota
	Interrupted
)

// AnyChild selects every child in WaitPid.
const AnyChild = -1

// StatusSink receives the exit status of the process a wait matched. For a
// child it runs before the child is released; an error leaves the child a
// zombie so its status is not lost.
type StatusSink func(status int32) error

// Wait reaps any terminated child, blocking until one exists. It fails
// immediately when p has no children.
func (p *Process) Wait(ctx context.Context) (int, int32, error) {
	return p.Reap(ctx, AnyChild, true, nil)
}

// WaitPid waits for pid, or any child for AnyChild. With block false a pid
// of 0 is returned when nothing is ready.
func (p *Process) WaitPid(ctx context.Context, pid int, block bool) (int, int32, error) {
	return p.Reap(ctx, pid, block, nil)
}

// Reap is WaitPid with the status handed to sink first. A child of p is
// reaped. Any other live pid is only observed: p waits for it to exit and
// learns its status, and reaping stays with its own parent.
func (p *Process) Reap(ctx context.Context, pid int, block bool, sink StatusSink) (int, int32, error) {
	if pid != AnyChild && !p.hasChild(pid) {
		return p.observe(ctx, pid, block, sink)
	}

	// Registered before the first scan so an exit between the scan and the
	// select still leaves a pending notification on c.
	c := make(chan struct{}, 1)
	ev := p.events.RegisterChannel(ChildExited|Interrupted, c)
	defer p.events.Unregister(ev)

	for {
		cpid, status, ok, err := p.reapOnce(pid, sink)
		if err != nil {
			return 0, 0, err
		}

		if ok {
			return cpid, status, nil
		}

		if !block {
			return 0, 0, nil
		}

		if p.Killed() {
			return 0, 0, ErrKilled
		}

		log.L.Trace("process-waiting-reap", "pid", p.Pid, "target", pid)

		select {
		case <-ctx.Done():
			if p.Killed() {
				return 0, 0, ErrKilled
			}

			return 0, 0, ctx.Err()
		case <-c:
			// ok, try the loop again
		}
	}
}

func (p *Process) hasChild(pid int) bool {
	p.Kernel.treeMu.Lock()
	defer p.Kernel.treeMu.Unlock()

	_, ok := p.children[pid]
	return ok
}

func (p *Process) observe(ctx context.Context, pid int, block bool, sink StatusSink) (int, int32, error) {
	target, ok := p.Kernel.processes.Lookup(pid)
	if !ok || target == p {
		return 0, 0, errors.Wrapf(ErrNoChildren, "pid=%d, target=%d", p.Pid, pid)
	}

	c := make(chan struct{}, 1)
	ev := p.events.RegisterChannel(Interrupted, c)
	defer p.events.Unregister(ev)

	for {
		if status, exited := target.exitState(); exited {
			if sink != nil {
				if err := sink(status); err != nil {
					return 0, 0, err
				}
			}

			log.L.Trace("process-observed-exit", "pid", p.Pid, "target", pid, "status", status)

			return pid, status, nil
		}

		if !block {
			return 0, 0, nil
		}

		if p.Killed() {
			return 0, 0, ErrKilled
		}

		log.L.Trace("process-waiting-exit", "pid", p.Pid, "target", pid)

		select {
		case <-ctx.Done():
			if p.Killed() {
				return 0, 0, ErrKilled
			}

			return 0, 0, ctx.Err()
		case <-target.Done():
		case <-c:
		}
	}
}

func (p *Process) reapOnce(pid int, sink StatusSink) (int, int32, bool, error) {
	k := p.Kernel

	k.treeMu.Lock()

	var (
		target  *Process
		matched bool
	)

	for cpid, c := range p.children {
		if pid != AnyChild && cpid != pid {
			continue
		}

		matched = true

		if c.status == Zombie {
			target = c
			break
		}
	}

	if target == nil {
		k.treeMu.Unlock()

		if !matched {
			return 0, 0, false, errors.Wrapf(ErrNoChildren, "pid=%d, target=%d", p.Pid, pid)
		}

		return 0, 0, false, nil
	}

	cpid, status := target.Pid, target.exitStatus

	if sink != nil {
		if err := sink(status); err != nil {
			k.treeMu.Unlock()
			return 0, 0, false, err
		}
	}

	delete(p.children, target.Pid)
	target.status = Reaped
	target.parent = nil

	k.treeMu.Unlock()

	target.release()

	log.L.Trace("process-reaped", "pid", p.Pid, "child", cpid, "status", status)

	return cpid, status, true, nil
}
