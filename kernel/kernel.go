package kernel

import (
	"sync"

	"github.com/pkg/errors"
)

type Kernel struct {
	Config Config

	processes *ProcessTable
	ticks     *Ticks
	sched     *Scheduler

	// treeMu guards the parent/child links, status and exit status of
	// every process.
	treeMu sync.Mutex
	init   *Process
}

func NewKernel(cfg Config) (*Kernel, error) {
	if cfg.MinPriority > cfg.DefaultPriority || cfg.DefaultPriority > cfg.MaxPriority {
		return nil, errors.Wrapf(ErrInvalidPriority, "default priority %d outside [%d,%d]",
			cfg.DefaultPriority, cfg.MinPriority, cfg.MaxPriority)
	}

	table, err := NewProcessTable(cfg.MaxProcs, cfg.PidQuarantine)
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		Config:    cfg,
		processes: table,
		ticks:     NewTicks(),
		sched: &Scheduler{
			Min: cfg.MinPriority,
			Max: cfg.MaxPriority,
		},
	}

	return k, nil
}

func (k *Kernel) Ticks() *Ticks {
	return k.ticks
}

func (k *Kernel) Lookup(pid int) (*Process, bool) {
	return k.processes.Lookup(pid)
}

func (k *Kernel) Processes() []ProcessInfo {
	return k.processes.Snapshot()
}
