package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is returned by Run when a schedule does not move forward.
var ErrInvalidSchedule = errors.New("batch: schedule does not advance")

// Schedule determines when a recurring run fires.
type Schedule interface {
	Next(from time.Time) time.Time
}

// interval fires on multiples of a fixed duration since the zero time, so
// Every(15*time.Minute) fires at :00, :15, :30 and :45 regardless of when
// the loop started.
type interval time.Duration

// Every creates a schedule that fires every d, aligned to multiples of d.
// A non-positive d never advances.
func Every(d time.Duration) Schedule {
	return interval(d)
}

func (d interval) Next(from time.Time) time.Time {
	if d <= 0 {
		return from
	}
	return from.Truncate(time.Duration(d)).Add(time.Duration(d))
}

// clock fires at a wall-clock time on a set of weekdays.
type clock struct {
	hour, minute int
	days         uint8 // bit per time.Weekday, zero means every day
	loc          *time.Location
}

// At creates a schedule that fires at hour:minute in loc on the given days,
// or on every day when no days are given. A nil loc means UTC.
func At(loc *time.Location, hour, minute int, days ...time.Weekday) Schedule {
	if loc == nil {
		loc = time.UTC
	}
	c := clock{hour: hour, minute: minute, loc: loc}
	for _, d := range days {
		c.days |= 1 << d
	}
	return c
}

// Daily fires at hour:minute UTC every day.
func Daily(hour, minute int) Schedule {
	return At(time.UTC, hour, minute)
}

// Weekly fires on day at hour:minute UTC.
func Weekly(day time.Weekday, hour, minute int) Schedule {
	return At(time.UTC, hour, minute, day)
}

func (c clock) Next(from time.Time) time.Time {
	local := from.In(c.loc)
	for offset := 0; offset <= 7; offset++ {
		t := time.Date(local.Year(), local.Month(), local.Day()+offset, c.hour, c.minute, 0, 0, c.loc)
		if t.After(local) && (c.days == 0 || c.days&(1<<t.Weekday()) != 0) {
			return t
		}
	}
	return from
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Cron parses a five-field cron expression or a descriptor such as "@hourly".
func Cron(expr string) (Schedule, error) {
	s, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("batch: invalid cron expression %q: %w", expr, err)
	}
	return s, nil
}

// MustCron is like Cron but panics on an invalid expression.
func MustCron(expr string) Schedule {
	s, err := Cron(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// Run calls fn at every time sched produces until ctx is done. Calls never
// overlap; ticks that pass while fn is running are skipped.
// It returns ctx.Err(), or ErrInvalidSchedule if sched stops advancing.
func Run(ctx context.Context, sched Schedule, fn func(ctx context.Context, at time.Time)) error {
	for {
		now := time.Now()
		next := sched.Next(now)
		if !next.After(now) {
			return ErrInvalidSchedule
		}

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case at := <-timer.C:
			fn(ctx, at)
		}
	}
}
