package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ParseClock splits an HH:mm time of day into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	if !clockPattern.MatchString(s) {
		return 0, 0, invalid(ErrInvalidAction, "executionTime", "must be HH:mm")
	}
	h, m, _ := strings.Cut(s, ":")
	hour, _ = strconv.Atoi(h)
	minute, _ = strconv.Atoi(m)
	return hour, minute, nil
}

// NextRunAt resolves the earliest instant a may be dispatched when the
// previous step finished at base. Delay sets the floor; ExecutionTime, when
// present, snaps the floor forward to the next matching clock slot in loc.
// A floor that already sits exactly on the slot is kept.
func (a Action) NextRunAt(base time.Time, loc *time.Location) (time.Time, error) {
	floor := base.Add(a.Delay)
	if a.ExecutionTime == "" {
		return floor, nil
	}
	hour, minute, err := ParseClock(a.ExecutionTime)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	sched, err := cron.ParseStandard(fmt.Sprintf("%d %d * * *", minute, hour))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse execution time %q: %w", a.ExecutionTime, err)
	}
	// cron only returns instants strictly after its argument.
	next := sched.Next(floor.In(loc).Add(-time.Nanosecond))
	return next.In(base.Location()), nil
}
