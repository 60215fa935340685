package sched

import (
	"context"
	"fmt"
	"math"

	"github.com/vytor/cardsched/internal/models"
)

// Learning cards under v1 offer again, good and easy on buttons 1 to 3.
const (
	v1LrnGood = models.EaseHard
	v1LrnEasy = models.EaseGood
)

func (p *v1Policy) answer(ctx context.Context, a *answerTx) error {
	s, c := p.s, a.card
	c.Reps++
	wasNew := c.Type == models.CardTypeNew
	wasNewQueue := c.Queue == models.QueueNew

	if wasNewQueue {
		c.Queue = models.QueueLearning
		if c.Type == models.CardTypeNew {
			c.Type = models.CardTypeLearning
		}
		c.Left = s.startingLeft(*c)
		// Reviews pulled into a filtered deck get a boost on first sight.
		if c.IsFiltered() && c.Type == models.CardTypeReview && s.resched(*c) {
			c.Interval = p.dynIvlBoost(*c)
			c.OriginalDue = int64(s.today + c.Interval)
		}
		s.updateStats(a, models.CounterNew, 1)
	}

	switch c.Queue {
	case models.QueueLearning, models.QueueDayLearning:
		p.answerLrn(a, wasNew)
		if !wasNewQueue {
			s.updateStats(a, models.CounterLearning, 1)
		}
	case models.QueueReview:
		p.answerRev(a)
		s.updateStats(a, models.CounterReview, 1)
	default:
		return fmt.Errorf("%w: card %d is in queue %s", ErrInvalidState, c.ID, c.Queue)
	}
	return nil
}

func (p *v1Policy) answerLrn(a *answerTx, wasNew bool) {
	s, c := p.s, a.card
	conf := s.learnConf(*c)

	typ := models.RevlogLearn
	switch {
	case c.IsFiltered() && !wasNew:
		typ = models.RevlogEarly
	case c.Type == models.CardTypeReview:
		typ = models.RevlogRelearn
	}
	lastLeft := c.Left

	switch {
	case a.ease == v1LrnEasy:
		p.rescheduleAsRev(a, conf, true)
		a.log(typ, c.Interval, -int(stepDelay(conf.delays, lastLeft)))
		return
	case a.ease == v1LrnGood && c.StepsLeft()-1 <= 0:
		p.rescheduleAsRev(a, conf, false)
		a.log(typ, c.Interval, -int(stepDelay(conf.delays, lastLeft)))
		return
	case a.ease == v1LrnGood:
		left := c.StepsLeft() - 1
		c.Left = models.PackLeft(left, stepsToday(conf.delays, left, a.nowUnix(), s.dayCutoff))
	default:
		c.Left = startingLeft(conf.delays, a.nowUnix(), s.dayCutoff)
		resched := s.resched(*c)
		if conf.lapse && resched {
			c.Interval = max(1, conf.minInt, truncate(float64(c.Interval)*conf.mult))
		}
		if resched && c.IsFiltered() {
			c.OriginalDue = int64(s.today + 1)
		}
	}

	delay := float64(stepDelay(conf.delays, c.Left))
	if c.Due < a.nowUnix() {
		// Not collapsed, so spread answers out a little.
		delay *= 1 + s.rnd.Float64()*0.25
	}
	p.queueLrn(a, int64(float64(a.nowUnix())+delay))
	a.log(typ, -int(stepDelay(conf.delays, c.Left)), -int(stepDelay(conf.delays, lastLeft)))
}

// queueLrn puts the card back into learning with the given due second.
func (p *v1Policy) queueLrn(a *answerTx, due int64) {
	s, c := p.s, a.card
	c.Due = due
	if c.Due < s.dayCutoff {
		s.lrnCount += c.StepsToday()
		c.Queue = models.QueueLearning
		s.pushLrn(c)
		return
	}
	ahead := (c.Due-s.dayCutoff)/secondsPerDay + 1
	c.Due = int64(s.today) + ahead
	c.Queue = models.QueueDayLearning
}

func (p *v1Policy) rescheduleAsRev(a *answerTx, conf stepConf, early bool) {
	s, c := p.s, a.card
	lapse := c.Type == models.CardTypeReview
	if lapse {
		switch {
		case !c.IsFiltered():
			c.Due = int64(s.today + c.Interval)
		case s.resched(*c):
			c.Due = max(int64(s.today+1), c.OriginalDue)
		default:
			c.Due = c.OriginalDue
		}
		c.OriginalDue = 0
	} else {
		c.Interval = p.graduatingIvl(*c, conf, early, true)
		c.Due = int64(s.today + c.Interval)
		c.Factor = conf.initialFactor
	}
	c.Queue = models.QueueReview
	c.Type = models.CardTypeReview

	resched := s.resched(*c)
	if c.IsFiltered() {
		c.ClearFiltered()
		if !resched && !lapse {
			c.Queue = models.QueueNew
			c.Type = models.CardTypeNew
			c.Due = s.nextPos(a)
		}
	}
}

func (p *v1Policy) graduatingIvl(c models.Card, conf stepConf, early, fuzz bool) int {
	if c.Type == models.CardTypeReview {
		if c.IsFiltered() && p.s.resched(c) {
			return p.dynIvlBoost(c)
		}
		return c.Interval
	}
	ideal := graduatingInterval(conf.ints, early)
	if fuzz {
		ideal = fuzzedIvl(p.s.rnd, ideal)
	}
	return ideal
}

// dynIvlBoost credits a filtered review with the time elapsed since it was
// last seen, at the average of its ease and 1.2.
func (p *v1Policy) dynIvlBoost(c models.Card) int {
	elapsed := c.Interval - int(c.OriginalDue-int64(p.s.today))
	factor := (float64(c.Factor)/1000 + 1.2) / 2
	ivl := truncate(math.Max(math.Max(float64(c.Interval), float64(elapsed)*factor), 1))
	return min(p.s.revConf(c).MaxIvl, ivl)
}

func (p *v1Policy) answerRev(a *answerTx) {
	c := a.card
	lastIvl := c.Interval
	var delay int64
	if a.ease == models.EaseAgain {
		delay = p.rescheduleLapse(a)
	} else {
		p.rescheduleRev(a)
	}
	ivl := c.Interval
	if delay > 0 {
		ivl = -int(delay)
	}
	a.log(models.RevlogReview, ivl, lastIvl)
}

func (p *v1Policy) rescheduleLapse(a *answerTx) int64 {
	s, c := p.s, a.card
	conf := s.lapseConf(*c)

	if s.resched(*c) {
		c.Lapses++
		c.Interval = lapseInterval(c.Interval, conf)
		c.Factor = adjustFactor(c.Factor, -200)
		c.Due = int64(s.today + c.Interval)
		if c.IsFiltered() {
			c.OriginalDue = c.Due
		}
	}
	if s.checkLeech(a, true) && c.Queue == models.QueueSuspended {
		return 0
	}
	if len(conf.Delays) == 0 {
		return 0
	}
	if c.IsFiltered() && c.OriginalDue == 0 {
		c.OriginalDue = c.Due
	}

	lc := s.learnConf(*c)
	delay := stepDelay(lc.delays, 0)
	c.Left = startingLeft(lc.delays, a.nowUnix(), s.dayCutoff)
	p.queueLrn(a, a.nowUnix()+delay)
	return delay
}

func (p *v1Policy) rescheduleRev(a *answerTx) {
	s, c := p.s, a.card
	if s.resched(*c) {
		conf := s.revConf(*c)
		ivl := max(fuzzedIvl(s.rnd, p.nextRevIvl(*c, a.ease)), c.Interval+1)
		c.Interval = min(ivl, conf.MaxIvl)
		c.Factor = adjustFactor(c.Factor, factorStep(a.ease))
		c.Due = int64(s.today + c.Interval)
	} else {
		c.Due = c.OriginalDue
	}
	c.ClearFiltered()
}

func (p *v1Policy) nextRevIvl(c models.Card, ease models.Ease) int {
	conf := p.s.revConf(c)
	late := daysLate(c, p.s.today)
	fct := float64(c.Factor) / 1000
	ivlFct := ivlFactor(conf)
	constrained := func(ivl float64, prev int) int {
		return truncate(math.Max(ivl*ivlFct, float64(prev+1)))
	}

	ivl := constrained(float64(c.Interval+late/4)*1.2, c.Interval)
	if ease != models.EaseHard {
		ivl = constrained(float64(c.Interval+late/2)*fct, ivl)
		if ease == models.EaseEasy {
			ivl = constrained(float64(c.Interval+late)*fct*conf.Ease4, ivl)
		}
	}
	return min(ivl, conf.MaxIvl)
}

func (p *v1Policy) nextInterval(c models.Card, ease models.Ease) int64 {
	s := p.s
	switch c.Queue {
	case models.QueueNew, models.QueueLearning, models.QueueDayLearning:
		return p.nextLrnIvl(c, ease)
	}
	if ease == models.EaseAgain {
		conf := s.lapseConf(c)
		if len(conf.Delays) > 0 {
			return int64(conf.Delays[0] * 60)
		}
		return int64(lapseInterval(c.Interval, conf)) * secondsPerDay
	}
	return int64(p.nextRevIvl(c, ease)) * secondsPerDay
}

func (p *v1Policy) nextLrnIvl(c models.Card, ease models.Ease) int64 {
	s := p.s
	if c.Queue == models.QueueNew {
		c.Left = s.startingLeft(c)
	}
	conf := s.learnConf(c)
	switch ease {
	case models.EaseAgain:
		return stepDelay(conf.delays, len(conf.delays))
	case v1LrnEasy:
		if !s.resched(c) {
			return 0
		}
		return int64(p.graduatingIvl(c, conf, true, false)) * secondsPerDay
	}
	left := c.StepsLeft() - 1
	if left > 0 {
		return stepDelay(conf.delays, left)
	}
	if !s.resched(c) {
		return 0
	}
	return int64(p.graduatingIvl(c, conf, false, false)) * secondsPerDay
}
