package sched

import "github.com/vytor/cardsched/internal/models"

// stepConf is the learning configuration that applies to one card: the new
// card options while learning, the lapse options while relearning.
type stepConf struct {
	delays        []float64
	ints          []int
	initialFactor int
	lapse         bool
	mult          float64
	minInt        int
}

// homeDeck is the deck whose options govern the card.
func homeDeck(c models.Card) int64 {
	if c.IsFiltered() {
		return c.OriginalDeckID
	}
	return c.DeckID
}

func (s *Scheduler) cardConf(c models.Card) models.DeckConfig {
	return s.decks.ConfFor(homeDeck(c))
}

// filteredHost returns the filtered deck currently hosting c.
func (s *Scheduler) filteredHost(c models.Card) (*models.Deck, bool) {
	d, ok := s.decks.Get(c.DeckID)
	if !ok || !d.Dynamic {
		return nil, false
	}
	return d, true
}

// resched reports whether answers move the card's schedule. Only filtered
// decks built without rescheduling turn it off.
func (s *Scheduler) resched(c models.Card) bool {
	if d, ok := s.filteredHost(c); ok {
		return d.Resched
	}
	return true
}

// previewing reports whether c is shown by a filtered deck that does not reschedule.
func (s *Scheduler) previewing(c models.Card) bool {
	d, ok := s.filteredHost(c)
	return ok && !d.Resched
}

func (s *Scheduler) previewDelay(c models.Card) int64 {
	if d, ok := s.filteredHost(c); ok && d.PreviewDelay > 0 {
		return int64(d.PreviewDelay) * 60
	}
	return 10 * 60
}

// stepsFor applies the filtered deck step override of the active policy.
func (s *Scheduler) stepsFor(c models.Card, own []float64) []float64 {
	if d, ok := s.filteredHost(c); ok {
		if override := s.policy.filteredSteps(d); len(override) > 0 {
			return override
		}
	}
	return own
}

func (s *Scheduler) newConf(c models.Card) stepConf {
	conf := s.cardConf(c).New
	return stepConf{
		delays:        s.stepsFor(c, conf.Delays),
		ints:          conf.Ints,
		initialFactor: conf.InitialFactor,
	}
}

func (s *Scheduler) lapseConf(c models.Card) models.LapseConfig {
	conf := s.cardConf(c).Lapse
	conf.Delays = s.stepsFor(c, conf.Delays)
	return conf
}

func (s *Scheduler) revConf(c models.Card) models.ReviewConfig {
	return s.cardConf(c).Rev
}

// learnConf picks lapse options for cards that have been reviewed before.
func (s *Scheduler) learnConf(c models.Card) stepConf {
	if c.Type == models.CardTypeReview || c.Type == models.CardTypeRelearning {
		lc := s.lapseConf(c)
		return stepConf{delays: lc.Delays, lapse: true, mult: lc.Mult, minInt: lc.MinInt}
	}
	return s.newConf(c)
}

func (s *Scheduler) startingLeft(c models.Card) int {
	return startingLeft(s.learnConf(c).delays, s.nowUnix(), s.dayCutoff)
}
