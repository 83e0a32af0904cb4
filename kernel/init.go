package kernel

import (
	"github.com/evanphx/procsys/log"
	"github.com/evanphx/procsys/memory"
	"github.com/pkg/errors"
)

var ErrInitExists = errors.New("init process already created")

// InitProcess creates pid 1, the process orphans are handed to.
func (k *Kernel) InitProcess(entry Entry) (*Process, error) {
	k.treeMu.Lock()
	defer k.treeMu.Unlock()

	if k.init != nil {
		return nil, ErrInitExists
	}

	mem, err := memory.NewVirtualMemory(k.Config.InitialMemory, k.Config.MemoryLimit)
	if err != nil {
		return nil, err
	}

	proc := newProcess(k)
	proc.Mem = mem
	proc.priority = k.Config.DefaultPriority
	proc.entry = entry

	if _, err := k.processes.AssignPid(proc); err != nil {
		return nil, err
	}

	k.init = proc

	log.L.Debug("init-process", "pid", proc.Pid, "break", mem.Size())

	return proc, nil
}

// StartProcess runs p's entry on its own goroutine.
func (k *Kernel) StartProcess(p *Process) {
	go p.Restart(0)
}
