package kernel

import (
	"github.com/evanphx/procsys/log"
	"github.com/pkg/errors"
)

// Scheduler owns priority assignment. Lower values run first; the run
// queue itself lives outside this package.
type Scheduler struct {
	Min, Max int
}

func (s *Scheduler) Valid(priority int) bool {
	return priority >= s.Min && priority <= s.Max
}

// SetPriority changes p's priority and returns the scheduler's status code.
func (s *Scheduler) SetPriority(p *Process, priority int) (int, error) {
	if !s.Valid(priority) {
		return -1, errors.Wrapf(ErrInvalidPriority, "priority=%d, range=[%d,%d]", priority, s.Min, s.Max)
	}

	p.mu.Lock()
	old := p.priority
	p.priority = priority
	p.mu.Unlock()

	log.L.Trace("set-priority", "pid", p.Pid, "old", old, "new", priority)

	return 0, nil
}
