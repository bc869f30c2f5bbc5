package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var gridParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Aligned fires on wall-clock multiples of Interval counted from the top of
// the hour, shifted by Offset. It implements cron.Schedule.
//
// Next(now) is strictly after now: a time sitting exactly on a boundary maps
// to the following one, never to itself.
type Aligned struct {
	Interval time.Duration
	Offset   time.Duration
	Location *time.Location

	grid cron.Schedule
}

var _ cron.Schedule = Aligned{}

// NewAligned validates the interval (whole minutes dividing the hour) and
// the offset (shorter than the interval), then parses the boundary grid.
func NewAligned(interval, offset time.Duration, loc *time.Location) (Aligned, error) {
	if interval <= 0 || interval%time.Minute != 0 || time.Hour%interval != 0 {
		return Aligned{}, fmt.Errorf("scheduler: interval %v must be whole minutes dividing the hour", interval)
	}
	if offset < 0 || offset >= interval {
		return Aligned{}, fmt.Errorf("scheduler: offset %v must be within [0, %v)", offset, interval)
	}
	if loc == nil {
		loc = time.Local
	}
	a := Aligned{Interval: interval, Offset: offset, Location: loc}
	grid, err := gridParser.Parse(a.CronSpec())
	if err != nil {
		return Aligned{}, fmt.Errorf("scheduler: parse %q: %w", a.CronSpec(), err)
	}
	a.grid = grid
	return a, nil
}

// Next rounds now up to the first grid boundary strictly after it, then adds
// Offset. The offset only delays the wake; it never moves the grid, so a
// check at 12:10:10 on a 5m+30s schedule waits for 12:15:30.
func (a Aligned) Next(now time.Time) time.Time {
	loc := a.Location
	if loc == nil {
		loc = time.Local
	}
	grid := a.grid
	if grid == nil {
		// Literal Aligned values skip NewAligned.
		g, err := gridParser.Parse(a.CronSpec())
		if err != nil {
			return time.Time{}
		}
		grid = g
	}
	return grid.Next(now.In(loc)).Add(a.Offset)
}

// CronSpec is the minute grid in cron syntax. An hourly interval fires at
// minute zero.
func (a Aligned) CronSpec() string {
	mins := int(a.Interval / time.Minute)
	if mins >= 60 {
		return "0 * * * *"
	}
	return fmt.Sprintf("*/%d * * * *", mins)
}

// Upcoming lists the next n wake times after now.
func Upcoming(s cron.Schedule, now time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		now = s.Next(now)
		out = append(out, now)
	}
	return out
}
