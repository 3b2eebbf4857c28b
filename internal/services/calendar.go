package services

import (
	"time"

	"tally/internal/core"
)

// Calendar turns an injected clock into calendar dates for one location.
// It is the only place the wall clock is read.
type Calendar struct {
	now func() time.Time
	loc *time.Location
}

// NewCalendar uses time.Now and UTC for nil arguments.
func NewCalendar(now func() time.Time, loc *time.Location) Calendar {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{now: now, loc: loc}
}

func (c Calendar) Now() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// Today is the calendar date of Now in the calendar's location.
func (c Calendar) Today() core.Date {
	loc := c.loc
	if loc == nil {
		loc = time.UTC
	}
	return core.DateOf(c.Now().In(loc))
}
