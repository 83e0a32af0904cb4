package kernel

import (
	"github.com/evanphx/procsys/log"
	"github.com/pkg/errors"
)

// Kill marks pid for termination. The target is not stopped here; it
// notices the mark the next time it wakes in sleep or wait, or when it
// returns from a syscall.
func (k *Kernel) Kill(pid int) error {
	p, ok := k.processes.Lookup(pid)
	if !ok {
		return errors.Wrapf(ErrNoProcess, "pid=%d", pid)
	}

	p.MarkKilled()

	return nil
}

func (p *Process) MarkKilled() {
	p.killed.Store(true)

	log.L.Trace("process-killed", "pid", p.Pid)

	p.Interrupt()
	p.events.Notify(Interrupted)
	p.Kernel.ticks.Wakeup()
}

func (p *Process) Interrupt() {
	p.mu.Lock()
	f := p.interruptFunc
	p.mu.Unlock()

	if f != nil {
		f()
	}
}

func (p *Process) SetInterrupt(f func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.interruptFunc = f
}
