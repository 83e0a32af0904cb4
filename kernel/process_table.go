package kernel

import (
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// ProcessTable maps pids to live processes. A reaped pid stays in a small
// LRU quarantine so a stale kill does not land on a newcomer.
type ProcessTable struct {
	mu         sync.RWMutex
	max        int
	highWater  int
	processes  map[int]*Process
	quarantine *lru.Cache
}

func NewProcessTable(max, quarantine int) (*ProcessTable, error) {
	t := &ProcessTable{
		max:       max,
		processes: make(map[int]*Process),
	}

	if quarantine > 0 {
		c, err := lru.New(quarantine)
		if err != nil {
			return nil, errors.Wrap(err, "creating pid quarantine")
		}

		t.quarantine = c
	}

	return t, nil
}

func (t *ProcessTable) quarantined(pid int) bool {
	return t.quarantine != nil && t.quarantine.Contains(pid)
}

func (t *ProcessTable) AssignPid(proc *Process) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.processes) >= t.max {
		return 0, errors.Wrapf(ErrProcessLimit, "max=%d", t.max)
	}

	for i := 1; i <= t.highWater; i++ {
		if _, ok := t.processes[i]; ok {
			continue
		}

		if t.quarantined(i) {
			continue
		}

		proc.Pid = i
		t.processes[i] = proc
		return i, nil
	}

	t.highWater++
	pid := t.highWater
	t.processes[pid] = proc
	proc.Pid = pid

	return pid, nil
}

func (t *ProcessTable) Lookup(pid int) (*Process, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.processes[pid]
	return p, ok
}

func (t *ProcessTable) Remove(proc *Process) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.processes, proc.Pid)

	if t.quarantine != nil {
		t.quarantine.Add(proc.Pid, struct{}{})
	}
}

func (t *ProcessTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.processes)
}

// ProcessInfo is a point-in-time view of one table entry.
type ProcessInfo struct {
	Pid      int
	Parent   int
	Status   string
	Killed   bool
	Priority int
	Break    uint32
}

func (t *ProcessTable) Snapshot() []ProcessInfo {
	t.mu.RLock()
	procs := make([]*Process, 0, len(t.processes))
	for _, p := range t.processes {
		procs = append(procs, p)
	}
	t.mu.RUnlock()

	sort.Slice(procs, func(i, j int) bool {
		return procs[i].Pid < procs[j].Pid
	})

	infos := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		infos = append(infos, p.info())
	}

	return infos
}
