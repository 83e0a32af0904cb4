package kernel

import (
	"context"
	"time"

	hclog "github.com/hashicorp/go-hclog"
)

// Clock stands in for the timer interrupt, advancing Ticks at a fixed
// host interval.
type Clock struct {
	L        hclog.Logger
	Ticks    *Ticks
	Interval time.Duration
}

func (c *Clock) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	c.L.Debug("clock-start", "interval", c.Interval)

	for {
		select {
		case <-ctx.Done():
			c.L.Debug("clock-stop", "ticks", c.Ticks.Now())
			return ctx.Err()
		case <-ticker.C:
			c.Ticks.Tick()
		}
	}
}
