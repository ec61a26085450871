package node

import (
	"context"
	"time"

	"github.com/relabs-tech/agri_node/internal/clock"
)

// Schedule decides how long the Idle state lasts.
type Schedule struct {
	// Interval is the sleep after each cycle (fixed) or the cycle period.
	Interval time.Duration
	// PollTick is set for periodic schedules: Idle wakes every tick and
	// checks whether a full period has elapsed since the cycle started.
	PollTick time.Duration
}

// FixedSleep idles for d after every cycle.
func FixedSleep(d time.Duration) Schedule { return Schedule{Interval: d} }

// Period starts a cycle once d has elapsed since the previous start,
// checking every tick.
func Period(d, tick time.Duration) Schedule {
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	return Schedule{Interval: d, PollTick: tick}
}

// Periodic reports whether the schedule is period based.
func (s Schedule) Periodic() bool { return s.PollTick > 0 }

// wait blocks in the Idle state for a cycle that started at start.
func (s Schedule) wait(ctx context.Context, clk clock.Clock, start time.Time) error {
	if !s.Periodic() {
		return clk.Sleep(ctx, s.Interval)
	}
	for {
		elapsed := clk.Now().Sub(start)
		if elapsed >= s.Interval {
			return ctx.Err()
		}
		step := s.PollTick
		if rest := s.Interval - elapsed; rest < step {
			step = rest
		}
		if err := clk.Sleep(ctx, step); err != nil {
			return err
		}
	}
}
