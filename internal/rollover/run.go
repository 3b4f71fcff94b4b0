package rollover

import (
	"context"
	"time"

	"github.com/conorfennell/tarottimer/internal/lifecycle"
	"github.com/conorfennell/tarottimer/internal/schedule"
)

// midnightSlack keeps the midnight wake-up from landing a hair early.
const midnightSlack = time.Second

// Run drives Tick every interval and additionally at each local midnight,
// until ctx is cancelled. Ticks while suspended are ignored by Tick itself.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		midnight := time.NewTimer(r.untilMidnight(interval))
		select {
		case <-ctx.Done():
			midnight.Stop()
			return nil
		case <-ticker.C:
		case <-midnight.C:
		}
		midnight.Stop()
		r.Tick(ctx)
	}
}

func (r *Reconciler) untilMidnight(fallback time.Duration) time.Duration {
	now, err := r.clock.Now()
	if err != nil {
		return fallback
	}
	return schedule.UntilMidnight(now) + midnightSlack
}

// Lifecycle handler ids used by Attach.
const (
	ResumeHandler  = "rollover.resume"
	SuspendHandler = "rollover.suspend"
)

// Attach registers Resume on foreground and Suspend on background with c.
// The debounce only collapses repeated foregrounds: suspending reopens the
// resume window, since a suspended session must come back on the next
// foreground. The returned func removes both registrations.
func (r *Reconciler) Attach(c *lifecycle.Coordinator, priority int, debounce time.Duration) func() {
	offFg := c.Register(lifecycle.Foreground, ResumeHandler, priority, debounce, func(ctx context.Context) error {
		r.Resume(ctx)
		return nil
	})
	offBg := c.Register(lifecycle.Background, SuspendHandler, priority, 0, func(context.Context) error {
		r.Suspend()
		c.Reset(ResumeHandler)
		return nil
	})
	return func() {
		offFg()
		offBg()
	}
}
