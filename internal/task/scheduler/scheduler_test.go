package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	logx "stockbot/pkg/logx"
)

func at(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func mustAligned(t *testing.T, interval, offset time.Duration) Aligned {
	t.Helper()
	a, err := NewAligned(interval, offset, time.UTC)
	if err != nil {
		t.Fatalf("NewAligned: %v", err)
	}
	return a
}

func TestAlignedNext(t *testing.T) {
	tests := []struct {
		interval, offset time.Duration
		now, want        string
	}{
		{5 * time.Minute, 0, "2026-01-01 12:07:00", "2026-01-01 12:10:00"},
		{5 * time.Minute, 0, "2026-01-01 12:10:00", "2026-01-01 12:15:00"},
		{5 * time.Minute, 0, "2026-01-01 12:09:59", "2026-01-01 12:10:00"},
		{5 * time.Minute, 0, "2026-01-01 12:57:30", "2026-01-01 13:00:00"},
		{5 * time.Minute, 0, "2026-01-01 23:58:00", "2026-01-02 00:00:00"},
		{15 * time.Minute, 0, "2026-01-01 12:15:01", "2026-01-01 12:30:00"},
		{60 * time.Minute, 0, "2026-01-01 12:00:00", "2026-01-01 13:00:00"},
		{5 * time.Minute, 10 * time.Second, "2026-01-01 12:07:00", "2026-01-01 12:10:10"},
		{5 * time.Minute, 10 * time.Second, "2026-01-01 12:10:00", "2026-01-01 12:15:10"},
		{5 * time.Minute, 10 * time.Second, "2026-01-01 12:10:05", "2026-01-01 12:15:10"},
		{5 * time.Minute, 10 * time.Second, "2026-01-01 12:10:10", "2026-01-01 12:15:10"},
		{5 * time.Minute, 30 * time.Second, "2026-01-01 12:09:59", "2026-01-01 12:10:30"},
		{60 * time.Minute, 45 * time.Second, "2026-01-01 12:00:00", "2026-01-01 13:00:45"},
	}
	for _, tt := range tests {
		a := mustAligned(t, tt.interval, tt.offset)
		got := a.Next(at(t, tt.now))
		if want := at(t, tt.want); !got.Equal(want) {
			t.Errorf("Next(%s) [%v+%v] = %s, want %s", tt.now, tt.interval, tt.offset, got.Format(time.TimeOnly), want.Format(time.TimeOnly))
		}
	}
}

func TestAlignedFollowsCronGrid(t *testing.T) {
	for _, iv := range []time.Duration{time.Minute, 5 * time.Minute, 10 * time.Minute, 20 * time.Minute, 30 * time.Minute, time.Hour} {
		for _, off := range []time.Duration{0, 30 * time.Second} {
			a := mustAligned(t, iv, off)
			spec, err := cron.ParseStandard(a.CronSpec())
			if err != nil {
				t.Fatalf("ParseStandard(%q): %v", a.CronSpec(), err)
			}
			now := at(t, "2026-03-01 08:00:00")
			for i := 0; i < 200; i++ {
				now = now.Add(37 * time.Second)
				if got, want := a.Next(now), spec.Next(now).Add(off); !got.Equal(want) {
					t.Fatalf("%v+%v: Next(%s) = %s, cron grid says %s", iv, off, now, got, want)
				}
			}
		}
	}
}

func TestAlignedLiteralParsesGrid(t *testing.T) {
	a := Aligned{Interval: 10 * time.Minute, Offset: 30 * time.Second, Location: time.UTC}
	if got, want := a.Next(at(t, "2026-01-01 12:10:00")), at(t, "2026-01-01 12:20:30"); !got.Equal(want) {
		t.Fatalf("Next = %s, want %s", got, want)
	}
	if got := (Aligned{Interval: 7 * time.Minute}).CronSpec(); got != "*/7 * * * *" {
		t.Fatalf("CronSpec = %q", got)
	}
	if got := mustAligned(t, time.Hour, 0).CronSpec(); got != "0 * * * *" {
		t.Fatalf("hourly CronSpec = %q", got)
	}
}

func TestNewAlignedRejects(t *testing.T) {
	bad := []struct{ iv, off time.Duration }{
		{0, 0},
		{7 * time.Minute, 0},
		{90 * time.Second, 0},
		{2 * time.Hour, 0},
		{5 * time.Minute, 5 * time.Minute},
		{5 * time.Minute, -time.Second},
	}
	for _, b := range bad {
		if _, err := NewAligned(b.iv, b.off, nil); err == nil {
			t.Errorf("NewAligned(%v, %v) accepted", b.iv, b.off)
		}
	}
}

func TestUpcoming(t *testing.T) {
	got := Upcoming(mustAligned(t, 5*time.Minute, 0), at(t, "2026-01-01 12:07:00"), 3)
	want := []string{"12:10:00", "12:15:00", "12:20:00"}
	for i := range want {
		if got[i].Format(time.TimeOnly) != want[i] {
			t.Fatalf("Upcoming = %v", got)
		}
	}
}

// fakeClock fires every After immediately by jumping its own time forward.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLoopRecomputesAfterJob(t *testing.T) {
	clk := &fakeClock{now: at(t, "2026-01-01 12:07:00")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ran []string
	job := func(context.Context) error {
		ran = append(ran, clk.Now().Format(time.TimeOnly))
		switch len(ran) {
		case 1:
			clk.advance(7 * time.Minute) // overruns the 12:15 slot
		case 2:
			return errors.New("upstream down")
		case 3:
			cancel()
		}
		return nil
	}

	l := NewLoop("stock", mustAligned(t, 5*time.Minute, 0), job, logx.Nop(), WithClock(clk))
	if err := l.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}

	want := []string{"12:10:00", "12:20:00", "12:25:00"}
	if len(ran) != len(want) {
		t.Fatalf("ran = %v, want %v", ran, want)
	}
	for i := range want {
		if ran[i] != want[i] {
			t.Fatalf("ran = %v, want %v", ran, want)
		}
	}
	if clk.sleeps[0] != 3*time.Minute || clk.sleeps[1] != 3*time.Minute {
		t.Fatalf("sleeps = %v", clk.sleeps)
	}

	snap := l.Snapshot()
	if snap.Runs != 3 || snap.Running {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Schedule != "*/5 * * * * +0s" {
		t.Fatalf("schedule = %q", snap.Schedule)
	}
}

func TestLoopSurvivesPanic(t *testing.T) {
	clk := &fakeClock{now: at(t, "2026-01-01 12:00:30")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := 0
	job := func(context.Context) error {
		n++
		if n == 1 {
			panic("boom")
		}
		cancel()
		return nil
	}
	l := NewLoop("stock", mustAligned(t, time.Minute, 0), job, logx.Nop(), WithClock(clk))
	_ = l.Run(ctx)
	if n != 2 {
		t.Fatalf("job ran %d times, want 2", n)
	}
}

func TestLoopStopsWhileSleeping(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := NewLoop("stock", mustAligned(t, 5*time.Minute, 0), func(context.Context) error {
		t.Fatal("job must not run after cancel")
		return nil
	}, logx.Nop())
	if err := l.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
}
