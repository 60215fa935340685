package sched

import (
	"context"
	"fmt"
	"math"

	"github.com/vytor/cardsched/internal/models"
)

func (p *v2Policy) answer(ctx context.Context, a *answerTx) error {
	s, c := p.s, a.card
	if s.previewing(*c) {
		p.answerPreview(a)
		return nil
	}

	c.Reps++
	switch c.Queue {
	case models.QueueNew:
		c.Queue = models.QueueLearning
		c.Type = models.CardTypeLearning
		c.Left = s.startingLeft(*c)
		s.updateStats(a, models.CounterNew, 1)
		p.answerLrn(a)
	case models.QueueLearning, models.QueueDayLearning:
		p.answerLrn(a)
	case models.QueueReview:
		p.answerRev(a)
		s.updateStats(a, models.CounterReview, 1)
	default:
		return fmt.Errorf("%w: card %d is in queue %s", ErrInvalidState, c.ID, c.Queue)
	}

	// The original due stops applying once the card has been answered.
	c.OriginalDue = 0
	return nil
}

// answerPreview handles cards shown by a deck that does not reschedule.
func (p *v2Policy) answerPreview(a *answerTx) {
	s, c := p.s, a.card
	if a.ease == models.EaseAgain {
		c.Queue = models.QueuePreview
		c.Due = a.nowUnix() + s.previewDelay(*c)
		s.lrnCount++
		return
	}
	c.Due = c.OriginalDue
	c.Queue = p.restoreQueue(*c)
	c.ClearFiltered()
}

func isLapsed(c models.Card) bool {
	return c.Type == models.CardTypeReview || c.Type == models.CardTypeRelearning
}

// Learning

func (p *v2Policy) answerLrn(a *answerTx) {
	s, c := p.s, a.card
	conf := s.learnConf(*c)
	typ := models.RevlogLearn
	if isLapsed(*c) {
		typ = models.RevlogRelearn
	}
	lastLeft := c.Left

	leaving := false
	switch a.ease {
	case models.EaseEasy:
		p.rescheduleAsRev(a, conf, true)
		leaving = true
	case models.EaseGood:
		if c.StepsLeft()-1 <= 0 {
			p.rescheduleAsRev(a, conf, false)
			leaving = true
		} else {
			p.moveToNextStep(a, conf)
		}
	case models.EaseHard:
		delay := repeatStepDelay(conf.delays, c.Left)
		p.rescheduleLrnCard(a, delay)
	default:
		p.moveToFirstStep(a, conf)
	}

	ivl := -int(stepDelay(conf.delays, c.Left))
	if leaving {
		ivl = c.Interval
	}
	a.log(typ, ivl, -int(stepDelay(conf.delays, lastLeft)))
}

func (p *v2Policy) moveToFirstStep(a *answerTx, conf stepConf) int64 {
	s, c := p.s, a.card
	c.Left = startingLeft(conf.delays, a.nowUnix(), s.dayCutoff)
	if c.Type == models.CardTypeRelearning {
		c.Interval = lapseInterval(c.Interval, s.lapseConf(*c))
	}
	return p.rescheduleLrnCard(a, stepDelay(conf.delays, c.Left))
}

func (p *v2Policy) moveToNextStep(a *answerTx, conf stepConf) {
	s, c := p.s, a.card
	left := c.StepsLeft() - 1
	c.Left = models.PackLeft(left, stepsToday(conf.delays, left, a.nowUnix(), s.dayCutoff))
	p.rescheduleLrnCard(a, stepDelay(conf.delays, c.Left))
}

// rescheduleLrnCard schedules the next learning step delay seconds from now.
// Steps that end after today's cutoff move to the day learning queue.
func (p *v2Policy) rescheduleLrnCard(a *answerTx, delay int64) int64 {
	s, c := p.s, a.card
	now := a.nowUnix()
	c.Due = now + delay

	if c.Due < s.dayCutoff {
		if maxExtra := min(300, int(float64(delay)*0.25)); maxExtra > 0 {
			c.Due += int64(s.rnd.Intn(maxExtra))
		}
		c.Due = min(s.dayCutoff-1, c.Due)
		c.Queue = models.QueueLearning
		if c.Due < now+int64(s.col.Conf.CollapseTime) {
			s.lrnCount++
			s.pushLrn(c)
		}
		return delay
	}

	ahead := (c.Due-s.dayCutoff)/secondsPerDay + 1
	c.Due = int64(s.today) + ahead
	c.Queue = models.QueueDayLearning
	return delay
}

func (p *v2Policy) graduatingIvl(c models.Card, conf stepConf, early, fuzz bool) int {
	if isLapsed(c) {
		if early {
			return c.Interval + 1
		}
		return c.Interval
	}
	ideal := graduatingInterval(conf.ints, early)
	if fuzz {
		ideal = fuzzedIvl(p.s.rnd, ideal)
	}
	return ideal
}

func (p *v2Policy) rescheduleAsRev(a *answerTx, conf stepConf, early bool) {
	s, c := p.s, a.card
	if isLapsed(*c) {
		if early {
			c.Interval++
		}
	} else {
		c.Interval = p.graduatingIvl(*c, conf, early, true)
		c.Factor = conf.initialFactor
	}
	c.Due = int64(s.today + c.Interval)
	c.Type = models.CardTypeReview
	c.Queue = models.QueueReview
	c.ClearFiltered()
}

// Reviews

func (p *v2Policy) answerRev(a *answerTx) {
	s, c := p.s, a.card
	early := c.IsFiltered() && c.OriginalDue > int64(s.today)
	typ := models.RevlogReview
	if early {
		typ = models.RevlogEarly
	}
	lastIvl := c.Interval

	var delay int64
	if a.ease == models.EaseAgain {
		delay = p.rescheduleLapse(a)
	} else {
		p.rescheduleRev(a, early)
	}

	ivl := c.Interval
	if delay > 0 {
		ivl = -int(delay)
	}
	a.log(typ, ivl, lastIvl)
}

func (p *v2Policy) rescheduleLapse(a *answerTx) int64 {
	s, c := p.s, a.card
	conf := s.lapseConf(*c)

	c.Lapses++
	c.Factor = adjustFactor(c.Factor, -200)

	suspended := s.checkLeech(a, false) && c.Queue == models.QueueSuspended
	if len(conf.Delays) > 0 && !suspended {
		c.Type = models.CardTypeRelearning
		return p.moveToFirstStep(a, s.learnConf(*c))
	}

	c.Interval = lapseInterval(c.Interval, conf)
	p.rescheduleAsRev(a, s.learnConf(*c), false)
	if suspended {
		c.Queue = models.QueueSuspended
	}
	return 0
}

func (p *v2Policy) rescheduleRev(a *answerTx, early bool) {
	s, c := p.s, a.card
	if early {
		c.Interval = p.earlyReviewIvl(*c, a.ease)
	} else {
		c.Interval = p.nextRevIvl(*c, a.ease, true)
	}
	c.Factor = adjustFactor(c.Factor, factorStep(a.ease))
	c.Due = int64(s.today + c.Interval)
	c.ClearFiltered()
}

// nextRevIvl is the next review interval in days for a passed review.
func (p *v2Policy) nextRevIvl(c models.Card, ease models.Ease, fuzz bool) int {
	conf := p.s.revConf(c)
	late := daysLate(c, p.s.today)
	fct := float64(c.Factor) / 1000
	hf := hardFactor(conf)

	hardMin := 0
	if hf > 1 {
		hardMin = c.Interval
	}
	ivl2 := p.constrainedIvl(float64(c.Interval)*hf, conf, hardMin, fuzz)
	if ease == models.EaseHard {
		return ivl2
	}
	ivl3 := p.constrainedIvl(float64(c.Interval+late/2)*fct, conf, ivl2, fuzz)
	if ease == models.EaseGood {
		return ivl3
	}
	return p.constrainedIvl(float64(c.Interval+late)*fct*conf.Ease4, conf, ivl3, fuzz)
}

// earlyReviewIvl credits only the time that actually passed since the
// last review for cards studied ahead of schedule.
func (p *v2Policy) earlyReviewIvl(c models.Card, ease models.Ease) int {
	conf := p.s.revConf(c)
	elapsed := c.Interval - int(c.OriginalDue-int64(p.s.today))

	fct := float64(c.Factor) / 1000
	factor, minNewIvl, easyBonus := fct, 1.0, 1.0
	switch ease {
	case models.EaseHard:
		factor = hardFactor(conf)
		minNewIvl = factor / 2
	case models.EaseEasy:
		easyBonus = conf.Ease4 - (conf.Ease4-1)/2
	}

	ivl := math.Max(float64(elapsed)*factor, 1)
	ivl = math.Max(float64(c.Interval)*minNewIvl, ivl) * easyBonus
	return p.constrainedIvl(ivl, conf, 0, false)
}

func (p *v2Policy) constrainedIvl(ivl float64, conf models.ReviewConfig, prev int, fuzz bool) int {
	v := truncate(ivl * ivlFactor(conf))
	if fuzz {
		v = fuzzedIvl(p.s.rnd, v)
	}
	v = max(v, prev+1, 1)
	if conf.MaxIvl > 0 {
		v = min(v, conf.MaxIvl)
	}
	return v
}

// Button previews

func (p *v2Policy) nextInterval(c models.Card, ease models.Ease) int64 {
	s := p.s
	if s.previewing(c) {
		if ease == models.EaseAgain {
			return s.previewDelay(c)
		}
		return 0
	}

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
	if c.IsFiltered() && c.OriginalDue > int64(s.today) {
		return int64(p.earlyReviewIvl(c, ease)) * secondsPerDay
	}
	return int64(p.nextRevIvl(c, ease, false)) * secondsPerDay
}

func (p *v2Policy) nextLrnIvl(c models.Card, ease models.Ease) int64 {
	s := p.s
	if c.Queue == models.QueueNew {
		c.Left = s.startingLeft(c)
	}
	conf := s.learnConf(c)
	switch ease {
	case models.EaseAgain:
		return stepDelay(conf.delays, len(conf.delays))
	case models.EaseHard:
		return repeatStepDelay(conf.delays, c.Left)
	case models.EaseEasy:
		return int64(p.graduatingIvl(c, conf, true, false)) * secondsPerDay
	}
	left := c.StepsLeft() - 1
	if left <= 0 {
		return int64(p.graduatingIvl(c, conf, false, false)) * secondsPerDay
	}
	return stepDelay(conf.delays, left)
}
