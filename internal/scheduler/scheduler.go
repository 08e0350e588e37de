package scheduler

import (
	"context"
	"time"

	"daybot/internal/logger"
)

// Loop runs a task on a fixed cadence aligned to interval boundaries. Runs
// never overlap: the next wait starts after the task returns.
type Loop struct {
	Interval       time.Duration
	RunImmediately bool

	nowFn func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewLoop(interval time.Duration) *Loop {
	return &Loop{
		Interval:       interval,
		RunImmediately: true,
		nowFn:          time.Now,
		after:          time.After,
	}
}

// Run blocks until ctx is done or task fails. The stop signal is observed
// between runs; a task error is returned as is.
func (l *Loop) Run(ctx context.Context, task func(context.Context) error) error {
	if l.Interval <= 0 {
		logger.Warnf("Loop: invalid interval=%s, defaulting to 1m", l.Interval)
		l.Interval = time.Minute
	}
	if l.nowFn == nil {
		l.nowFn = time.Now
	}
	if l.after == nil {
		l.after = time.After
	}
	logger.Infof("Loop: started interval=%s run_immediately=%v", l.Interval, l.RunImmediately)

	if l.RunImmediately {
		if err := l.runOnce(ctx, task); err != nil {
			return err
		}
	}
	for {
		wakeAt, wait := l.nextTimes(l.nowFn())
		logger.Debugf("Loop: next run at %s (in %s)", wakeAt.Format(time.RFC3339), wait.Truncate(time.Second))
		select {
		case <-ctx.Done():
			logger.Infof("Loop: ctx done, exit")
			return nil
		case <-l.after(wait):
		}
		if err := l.runOnce(ctx, task); err != nil {
			return err
		}
	}
}

func (l *Loop) runOnce(ctx context.Context, task func(context.Context) error) error {
	if ctx.Err() != nil {
		return nil
	}
	return task(ctx)
}

func (l *Loop) nextTimes(now time.Time) (wakeAt time.Time, wait time.Duration) {
	wakeAt = now.Truncate(l.Interval).Add(l.Interval)
	return wakeAt, wakeAt.Sub(now)
}
