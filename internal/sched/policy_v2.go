package sched

import (
	"context"
	"time"

	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
)

// learnDueCutoff separates epoch-second learning dues from day indexes.
const learnDueCutoff = 1_000_000_000

// v2Policy starts days at the rollover hour, offers four buttons in
// learning, and supports preview decks and user burying.
type v2Policy struct {
	s *Scheduler
}

func (p *v2Policy) version() int { return 2 }

func (p *v2Policy) dayBounds(crt int64, now time.Time) (int, int64) {
	return rolloverDayBounds(crt, now, p.s.col.Conf.Rollover, p.s.loc)
}

func (p *v2Policy) filteredSteps(*models.Deck) []float64 { return nil }

func (p *v2Policy) filteredLimit() int { return dynReportLimit }

func (p *v2Policy) filterTerms(terms []models.FilterTerm) []models.FilterTerm { return terms }

func (p *v2Policy) moveToFiltered(c *models.Card, deck *models.Deck, rank int64) {
	if !c.IsFiltered() {
		c.OriginalDeckID = c.DeckID
		c.OriginalDue = c.Due
	}
	c.DeckID = deck.ID
	if c.Due > 0 {
		c.Due = rank
	}
	if !deck.Resched {
		c.Queue = models.QueueReview
	}
}

func (p *v2Policy) buryQueue(manual bool) models.Queue {
	if manual {
		return models.QueueUserBuried
	}
	return models.QueueSchedBuried
}

func (p *v2Policy) buriedQueues(scope UnburyScope) []models.Queue {
	switch scope {
	case UnburyManual:
		return []models.Queue{models.QueueUserBuried}
	case UnburySiblings:
		return []models.Queue{models.QueueSchedBuried}
	default:
		return []models.Queue{models.QueueSchedBuried, models.QueueUserBuried}
	}
}

// restoreQueue puts learning cards back into the intraday or day learning
// queue depending on whether their due is a timestamp.
func (p *v2Policy) restoreQueue(c models.Card) models.Queue {
	switch c.Type {
	case models.CardTypeLearning, models.CardTypeRelearning:
		due := c.Due
		if c.OriginalDue != 0 {
			due = c.OriginalDue
		}
		if due > learnDueCutoff {
			return models.QueueLearning
		}
		return models.QueueDayLearning
	default:
		return models.Queue(c.Type)
	}
}

func (p *v2Policy) detach(*models.Card, *cardTx) error { return nil }

func (p *v2Policy) updateLrnCutoff(force bool) bool {
	next := p.s.nowUnix() + int64(p.s.col.Conf.CollapseTime)
	if next-p.s.lrnCutoff > 60 || force {
		p.s.lrnCutoff = next
		return true
	}
	return false
}

func (p *v2Policy) resetLrnCount(ctx context.Context, st repository.Store) (int, error) {
	p.updateLrnCutoff(true)
	return p.countLrn(ctx, st, p.s.active())
}

func (p *v2Policy) countLrn(ctx context.Context, st repository.Store, dids []int64) (int, error) {
	s := p.s
	intraday, err := st.Cards().Count(ctx, repository.CardFilter{
		DeckIDs:   dids,
		Queues:    []models.Queue{models.QueueLearning},
		DueBefore: ptr(s.lrnCutoff),
		Limit:     reportLimit,
	})
	if err != nil {
		return 0, err
	}
	interday, err := st.Cards().Count(ctx, repository.CardFilter{
		DeckIDs:   dids,
		Queues:    []models.Queue{models.QueueDayLearning},
		DueAtMost: ptr(int64(s.today)),
		Limit:     reportLimit,
	})
	if err != nil {
		return 0, err
	}
	// Previews are counted whatever their due.
	previews, err := st.Cards().Count(ctx, repository.CardFilter{
		DeckIDs: dids,
		Queues:  []models.Queue{models.QueuePreview},
		Limit:   reportLimit,
	})
	if err != nil {
		return 0, err
	}
	return intraday + interday + previews, nil
}

func (p *v2Policy) lrnFilter() repository.CardFilter {
	return repository.CardFilter{
		Queues:    []models.Queue{models.QueueLearning, models.QueuePreview},
		DueBefore: ptr(p.s.nowUnix() + int64(p.s.col.Conf.CollapseTime)),
	}
}

func (p *v2Policy) maybeResetLrn(ctx context.Context, st repository.Store, force bool) error {
	if p.updateLrnCutoff(force) {
		return p.s.resetLrn(ctx, st)
	}
	return nil
}

func (p *v2Policy) lrnPopCount(models.Card) int { return 1 }

func (p *v2Policy) lrnForDeck(ctx context.Context, st repository.Store, did int64) (int, error) {
	return p.countLrn(ctx, st, []int64{did})
}

func (p *v2Policy) dayLearnFirst() bool { return p.s.col.Conf.DayLearnFirst }

// currentRevLimit is the tightest review limit between the current deck
// and the root.
func (p *v2Policy) currentRevLimit() int {
	return p.s.pathLimit(p.s.active()[0], p.s.revLimitSingle)
}

func (p *v2Policy) resetRev(ctx context.Context, st repository.Store) error {
	s := p.s
	s.revQueue = nil
	s.revCount = 0
	lim := p.currentRevLimit()
	if lim <= 0 {
		return nil
	}
	n, err := st.Cards().Count(ctx, repository.CardFilter{
		DeckIDs:   s.active(),
		Queues:    []models.Queue{models.QueueReview},
		DueAtMost: ptr(int64(s.today)),
		Limit:     lim,
	})
	if err != nil {
		return err
	}
	s.revCount = n
	return nil
}

func (p *v2Policy) fillRev(ctx context.Context, st repository.Store) (bool, error) {
	return p.fillRevOnce(ctx, st, false)
}

func (p *v2Policy) fillRevOnce(ctx context.Context, st repository.Store, retried bool) (bool, error) {
	s := p.s
	if len(s.revQueue) > 0 {
		return true, nil
	}
	if s.revCount <= 0 {
		return false, nil
	}
	if lim := min(queueLimit, p.currentRevLimit()); lim > 0 {
		ids, err := st.Cards().IDs(ctx, repository.CardFilter{
			DeckIDs:   s.active(),
			Queues:    []models.Queue{models.QueueReview},
			DueAtMost: ptr(int64(s.today)),
			Order:     repository.OrderDueRandom,
			Limit:     lim,
		})
		if err != nil {
			return false, err
		}
		if len(ids) > 0 {
			reverse(ids)
			s.revQueue = ids
			return true, nil
		}
	}
	if retried {
		return false, nil
	}
	// The count was stale, probably because cards were buried.
	if err := p.resetRev(ctx, st); err != nil {
		return false, err
	}
	return p.fillRevOnce(ctx, st, true)
}

// revForDeck counts did and its children together.
func (p *v2Policy) revForDeck(ctx context.Context, st repository.Store, did int64, lim int) (int, error) {
	lim = min(lim, reportLimit)
	if lim <= 0 {
		return 0, nil
	}
	return st.Cards().Count(ctx, repository.CardFilter{
		DeckIDs:   append([]int64{did}, p.s.decks.ChildIDs(did)...),
		Queues:    []models.Queue{models.QueueReview},
		DueAtMost: ptr(int64(p.s.today)),
		Limit:     lim,
	})
}

func (p *v2Policy) answerButtons(c models.Card) int {
	if p.s.previewing(c) {
		return 2
	}
	return 4
}

func (p *v2Policy) countCurrent(counts *models.Counts, c models.Card) {
	switch c.Queue {
	case models.QueueLearning, models.QueueDayLearning, models.QueuePreview:
		counts.Learning++
	case models.QueueNew:
		counts.New++
	case models.QueueReview:
		counts.Review++
	}
}
