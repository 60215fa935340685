package sched

import (
	"math"
	"math/rand"

	"github.com/vytor/cardsched/internal/models"
)

// fuzzRange returns the inclusive day range a graduating or review interval
// is drawn from.
func fuzzRange(ivl int) (int, int) {
	switch {
	case ivl < 2:
		return 1, 1
	case ivl == 2:
		return 2, 3
	}
	var fuzz int
	switch {
	case ivl < 7:
		fuzz = int(float64(ivl) * 0.25)
	case ivl < 30:
		fuzz = max(2, int(float64(ivl)*0.15))
	default:
		fuzz = max(4, int(float64(ivl)*0.05))
	}
	fuzz = max(fuzz, 1)
	return ivl - fuzz, ivl + fuzz
}

func fuzzedIvl(rnd *rand.Rand, ivl int) int {
	lo, hi := fuzzRange(ivl)
	return lo + rnd.Intn(hi-lo+1)
}

// stepDelay returns the delay in seconds of the step that has left steps
// remaining. Out of range values fall back to the first step, and an empty
// step list behaves as a single one-minute step.
func stepDelay(delays []float64, left int) int64 {
	left %= 1000
	var minutes float64
	switch {
	case len(delays) == 0:
		minutes = 1
	case left == 0 || left > len(delays):
		minutes = delays[0]
	default:
		minutes = delays[len(delays)-left]
	}
	return int64(minutes * 60)
}

// repeatStepDelay is halfway between the current step and the next one.
// With a single step, the next one counts as twice as long.
func repeatStepDelay(delays []float64, left int) int64 {
	d1 := stepDelay(delays, left)
	d2 := d1 * 2
	if len(delays) > 1 {
		d2 = stepDelay(delays, left-1)
	}
	return (d1 + max(d1, d2)) / 2
}

// stepsToday counts how many of the last left steps can be completed
// before cutoff when the first one starts at now. It is never below one.
func stepsToday(delays []float64, left int, now, cutoff int64) int {
	if left > 0 && left < len(delays) {
		delays = delays[len(delays)-left:]
	}
	ok := 0
	t := float64(now)
	for i, d := range delays {
		t += d * 60
		if t > float64(cutoff) {
			break
		}
		ok = i
	}
	return ok + 1
}

// startingLeft packs the first-step count for a fresh pass through delays.
func startingLeft(delays []float64, now, cutoff int64) int {
	total := len(delays)
	return models.PackLeft(total, stepsToday(delays, total, now, cutoff))
}

// daysLate is how many days past its review due a card is.
func daysLate(c models.Card, today int) int {
	due := c.Due
	if c.IsFiltered() {
		due = c.OriginalDue
	}
	return max(0, today-int(due))
}

// graduatingInterval picks the first or second graduating interval.
func graduatingInterval(ints []int, early bool) int {
	idx := 0
	if early {
		idx = 1
	}
	if idx >= len(ints) {
		if len(ints) == 0 {
			return 1
		}
		idx = len(ints) - 1
	}
	return ints[idx]
}

// factorStep is the ease adjustment for hard, good and easy.
func factorStep(ease models.Ease) int {
	switch ease {
	case models.EaseHard:
		return -150
	case models.EaseEasy:
		return 150
	default:
		return 0
	}
}

func adjustFactor(factor int, delta int) int {
	return max(1300, factor+delta)
}

// lapseInterval is the interval kept after a failed review.
func lapseInterval(ivl int, conf models.LapseConfig) int {
	return max(1, conf.MinInt, int(float64(ivl)*conf.Mult))
}

func ivlFactor(conf models.ReviewConfig) float64 {
	if conf.IvlFct <= 0 {
		return 1
	}
	return conf.IvlFct
}

func hardFactor(conf models.ReviewConfig) float64 {
	if conf.HardFactor <= 0 {
		return 1.2
	}
	return conf.HardFactor
}

func truncate(v float64) int {
	return int(math.Trunc(v))
}
