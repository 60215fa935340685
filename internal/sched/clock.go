package sched

import "time"

const secondsPerDay = 86400

// floorDiv divides rounding towards negative infinity.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// normalizeRollover maps a negative rollover hour onto the same hour of the previous day.
func normalizeRollover(hour int) int {
	if hour < 0 {
		hour += 24
	}
	return hour % 24
}

// creationDayBounds counts whole days since crt. The cutoff is the end of
// the current day measured from crt.
func creationDayBounds(crt int64, now time.Time) (int, int64) {
	today := floorDiv(now.Unix()-crt, secondsPerDay)
	return int(today), crt + (today+1)*secondsPerDay
}

// rolloverDayBounds uses local calendar days starting at the rollover hour.
// The cutoff is the next rollover at or after now.
func rolloverDayBounds(crt int64, now time.Time, rollover int, loc *time.Location) (int, int64) {
	hour := normalizeRollover(rollover)
	local := now.In(loc)

	cutoff := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
	if cutoff.Before(local) {
		cutoff = cutoff.AddDate(0, 0, 1)
	}

	created := time.Unix(crt, 0).In(loc)
	start := time.Date(created.Year(), created.Month(), created.Day(), hour, 0, 0, 0, loc)
	today := floorDiv(now.Unix()-start.Unix(), secondsPerDay)
	return int(today), cutoff.Unix()
}

// startOfDay returns the most recent rollover at or before now. New
// collections use it as their creation time.
func startOfDay(now time.Time, rollover int, loc *time.Location) int64 {
	_, cutoff := rolloverDayBounds(now.Unix(), now, rollover, loc)
	return time.Unix(cutoff, 0).In(loc).AddDate(0, 0, -1).Unix()
}
