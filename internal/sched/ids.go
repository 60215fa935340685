package sched

import "time"

// logIDAllocator hands out strictly increasing millisecond review-log ids.
// Two answers in the same millisecond get consecutive ids.
type logIDAllocator struct {
	last int64
}

func (a *logIDAllocator) seed(maxID int64) {
	if maxID > a.last {
		a.last = maxID
	}
}

func (a *logIDAllocator) next(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= a.last {
		id = a.last + 1
	}
	a.last = id
	return id
}
