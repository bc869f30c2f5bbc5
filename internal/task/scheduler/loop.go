package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "stockbot/pkg/logx"
)

// Clock is the time source of the loop; tests substitute a fake.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Job is one pipeline invocation.
type Job func(ctx context.Context) error

// Snapshot is the loop state exposed to !status and /status.
type Snapshot struct {
	Name     string        `json:"name"`
	Schedule string        `json:"schedule"`
	NextWake time.Time     `json:"next_wake"`
	LastRun  time.Time     `json:"last_run,omitempty"`
	LastTook time.Duration `json:"last_took,omitempty"`
	LastErr  string        `json:"last_err,omitempty"`
	Runs     uint64        `json:"runs"`
	Running  bool          `json:"running"`
}

// Loop is the self-perpetuating poll loop: compute the next wake, sleep,
// run the job once, repeat. The next sleep is armed only after the job
// settles, so at most one invocation is ever in flight.
type Loop struct {
	name  string
	sched cron.Schedule
	job   Job
	clock Clock
	log   logx.Logger

	mu   sync.Mutex
	snap Snapshot
}

type LoopOption func(*Loop)

// WithClock swaps the time source.
func WithClock(c Clock) LoopOption { return func(l *Loop) { l.clock = c } }

func NewLoop(name string, sched cron.Schedule, job Job, log logx.Logger, opts ...LoopOption) *Loop {
	l := &Loop{name: name, sched: sched, job: job, clock: realClock{}, log: log}
	for _, o := range opts {
		o(l)
	}
	l.snap.Name = name
	if a, ok := sched.(Aligned); ok {
		l.snap.Schedule = fmt.Sprintf("%s +%s", a.CronSpec(), a.Offset)
	}
	return l
}

// Run blocks until ctx is done. Job errors and panics are logged and never
// end the loop; the in-flight job is abandoned on shutdown.
func (l *Loop) Run(ctx context.Context) error {
	for {
		now := l.clock.Now()
		wake := l.sched.Next(now)
		l.mu.Lock()
		l.snap.NextWake = wake
		l.mu.Unlock()
		l.log.Info("next check scheduled",
			logx.Time("at", wake),
			logx.Duration("in", wake.Sub(now).Round(time.Millisecond)),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(wake.Sub(now)):
		}

		l.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (l *Loop) runOnce(ctx context.Context) {
	start := l.clock.Now()
	l.mu.Lock()
	l.snap.Running = true
	l.snap.LastRun = start
	l.mu.Unlock()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				l.log.Error("job panicked", logx.String("job", l.name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			}
		}()
		return l.job(ctx)
	}()

	took := l.clock.Now().Sub(start)
	l.mu.Lock()
	l.snap.Running = false
	l.snap.Runs++
	l.snap.LastTook = took
	l.snap.LastErr = ""
	if err != nil {
		l.snap.LastErr = err.Error()
	}
	l.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		l.log.Warn("job failed", logx.String("job", l.name), logx.Duration("took", took), logx.Err(err))
	}
}

func (l *Loop) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}
