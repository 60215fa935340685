package sched

import (
	"context"
	"time"

	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
)

// v1Policy counts days from the collection creation time and offers three
// buttons while learning. It has a single buried queue.
type v1Policy struct {
	s *Scheduler
}

func (p *v1Policy) version() int { return 1 }

func (p *v1Policy) dayBounds(crt int64, now time.Time) (int, int64) {
	return creationDayBounds(crt, now)
}

// filteredSteps lets a filtered deck override the learning steps.
func (p *v1Policy) filteredSteps(d *models.Deck) []float64 { return d.Delays }

func (p *v1Policy) filteredLimit() int { return reportLimit }

func (p *v1Policy) filterTerms(terms []models.FilterTerm) []models.FilterTerm {
	if len(terms) > 1 {
		return terms[:1]
	}
	return terms
}

func (p *v1Policy) moveToFiltered(c *models.Card, deck *models.Deck, rank int64) {
	trueDue := c.Due
	if !c.IsFiltered() {
		c.OriginalDeckID = c.DeckID
		c.OriginalDue = c.Due
	} else if c.OriginalDue != 0 {
		trueDue = c.OriginalDue
	}
	c.DeckID = deck.ID
	if c.Type == models.CardTypeReview && trueDue <= int64(p.s.today) {
		c.Queue = models.QueueReview
	} else {
		c.Queue = models.QueueNew
	}
	c.Due = rank
}

func (p *v1Policy) buryQueue(bool) models.Queue { return models.QueueSchedBuried }

func (p *v1Policy) buriedQueues(UnburyScope) []models.Queue {
	return []models.Queue{models.QueueSchedBuried}
}

func (p *v1Policy) restoreQueue(c models.Card) models.Queue { return models.Queue(c.Type) }

// detach takes the card out of its filtered deck and out of learning, so
// that suspended and buried cards never hold learning state.
func (p *v1Policy) detach(c *models.Card, t *cardTx) error {
	if c.IsFiltered() {
		if err := p.s.restoreFromFiltered(t, c); err != nil {
			return err
		}
	}
	return p.s.removeFromLearning(t, c)
}

func (p *v1Policy) lrnDayFilter() repository.CardFilter {
	return repository.CardFilter{
		Queues:    []models.Queue{models.QueueDayLearning},
		DueAtMost: ptr(int64(p.s.today)),
		Limit:     reportLimit,
	}
}

func (p *v1Policy) resetLrnCount(ctx context.Context, st repository.Store) (int, error) {
	s := p.s
	steps, err := st.Cards().SumStepsToday(ctx, repository.CardFilter{
		DeckIDs:   s.active(),
		Queues:    []models.Queue{models.QueueLearning},
		DueBefore: ptr(s.dayCutoff),
		Limit:     reportLimit,
	})
	if err != nil {
		return 0, err
	}
	day := p.lrnDayFilter()
	day.DeckIDs = s.active()
	days, err := st.Cards().Count(ctx, day)
	if err != nil {
		return 0, err
	}
	return steps + days, nil
}

func (p *v1Policy) lrnFilter() repository.CardFilter {
	return repository.CardFilter{
		Queues:    []models.Queue{models.QueueLearning},
		DueBefore: ptr(p.s.dayCutoff),
	}
}

func (p *v1Policy) maybeResetLrn(context.Context, repository.Store, bool) error { return nil }

// lrnPopCount is the number of steps a learning card still has today.
func (p *v1Policy) lrnPopCount(c models.Card) int { return c.StepsToday() }

func (p *v1Policy) lrnForDeck(ctx context.Context, st repository.Store, did int64) (int, error) {
	s := p.s
	steps, err := st.Cards().SumStepsToday(ctx, repository.CardFilter{
		DeckIDs:   []int64{did},
		Queues:    []models.Queue{models.QueueLearning},
		DueBefore: ptr(s.nowUnix() + int64(s.col.Conf.CollapseTime)),
		Limit:     reportLimit,
	})
	if err != nil {
		return 0, err
	}
	day := p.lrnDayFilter()
	day.DeckIDs = []int64{did}
	days, err := st.Cards().Count(ctx, day)
	if err != nil {
		return 0, err
	}
	return steps + days, nil
}

func (p *v1Policy) dayLearnFirst() bool { return false }

func (p *v1Policy) resetRev(ctx context.Context, st repository.Store) error {
	s := p.s
	s.revQueue = nil
	s.revDids = append([]int64(nil), s.active()...)
	count, err := s.walkingCount(s.revLimitSingle, func(did int64, lim int) (int, error) {
		return p.revForDeck(ctx, st, did, lim)
	})
	if err != nil {
		return err
	}
	s.revCount = count
	return nil
}

func (p *v1Policy) fillRev(ctx context.Context, st repository.Store) (bool, error) {
	return p.fillRevOnce(ctx, st, false)
}

func (p *v1Policy) fillRevOnce(ctx context.Context, st repository.Store, retried bool) (bool, error) {
	s := p.s
	if len(s.revQueue) > 0 {
		return true, nil
	}
	if s.revCount <= 0 {
		return false, nil
	}
	for len(s.revDids) > 0 {
		did := s.revDids[0]
		lim := min(queueLimit, s.pathLimit(did, s.revLimitSingle))
		if lim > 0 {
			ids, err := st.Cards().IDs(ctx, repository.CardFilter{
				DeckIDs:   []int64{did},
				Queues:    []models.Queue{models.QueueReview},
				DueAtMost: ptr(int64(s.today)),
				Order:     repository.OrderDueID,
				Limit:     lim,
			})
			if err != nil {
				return false, err
			}
			if len(ids) > 0 {
				if d, ok := s.decks.Get(did); ok && d.Dynamic {
					// Filtered decks keep their build order.
					reverse(ids)
				} else {
					shuffleForDay(ids, s.today)
				}
				s.revQueue = ids
				if len(ids) < lim {
					s.revDids = s.revDids[1:]
				}
				return true, nil
			}
		}
		s.revDids = s.revDids[1:]
	}
	if retried {
		return false, nil
	}
	if err := p.resetRev(ctx, st); err != nil {
		return false, err
	}
	return p.fillRevOnce(ctx, st, true)
}

// revForDeck counts did on its own; children are counted separately.
func (p *v1Policy) revForDeck(ctx context.Context, st repository.Store, did int64, lim int) (int, error) {
	lim = min(lim, reportLimit)
	if lim <= 0 {
		return 0, nil
	}
	return st.Cards().Count(ctx, repository.CardFilter{
		DeckIDs:   []int64{did},
		Queues:    []models.Queue{models.QueueReview},
		DueAtMost: ptr(int64(p.s.today)),
		Limit:     lim,
	})
}

func (p *v1Policy) answerButtons(c models.Card) int {
	switch {
	case c.Queue == models.QueueReview:
		return 4
	case c.Type == models.CardTypeReview && (c.IsFiltered() || p.relearning(c)) && len(p.s.lapseConf(c).Delays) <= 1:
		return 2
	default:
		return 3
	}
}

// relearning reports whether c is a lapsed review working through its
// relearning steps. Regular decks keep no due shadow for these cards.
func (p *v1Policy) relearning(c models.Card) bool {
	return c.Type == models.CardTypeReview &&
		(c.Queue == models.QueueLearning || c.Queue == models.QueueDayLearning)
}

func (p *v1Policy) countCurrent(counts *models.Counts, c models.Card) {
	switch c.Queue {
	case models.QueueLearning, models.QueueDayLearning:
		counts.Learning += c.StepsToday()
	case models.QueueNew:
		counts.New++
	case models.QueueReview:
		counts.Review++
	}
}
