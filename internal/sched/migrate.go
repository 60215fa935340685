package sched

import (
	"context"
	"fmt"

	"github.com/vytor/cardsched/internal/logger"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
)

// ChangeSchedulerVersion switches the collection to version 1 or 2. Filtered
// decks are emptied, learning cards leave learning, and the answer buttons
// recorded in the review log are renumbered for the new layout.
func (s *Scheduler) ChangeSchedulerVersion(ctx context.Context, version int) error {
	log := logger.FromContext(ctx).WithPrefix("sched")

	next, err := newPolicy(s, version)
	if err != nil {
		return err
	}
	from := s.policy.version()
	if version == from {
		log.Debug("scheduler already at version %d", version)
		return nil
	}
	if _, err := s.CheckDay(ctx); err != nil {
		return err
	}
	log.Info("changing scheduler version: from=%d, to=%d", from, version)

	err = s.store.InTx(ctx, func(st repository.Store) error {
		t := s.newCardTx(ctx, st)
		emptied, err := s.emptyAllFiltered(t)
		if err != nil {
			return err
		}
		learning, err := s.updateQueues(t, []models.Queue{models.QueueLearning, models.QueueDayLearning}, nil,
			func(t *cardTx, c *models.Card) error { return s.removeFromLearning(t, c) })
		if err != nil {
			return err
		}
		log.Debug("version change: emptied %d filtered cards, %d left learning", emptied, learning)

		var shifted int64
		if version == 1 {
			if _, err := s.updateQueues(t, []models.Queue{models.QueueUserBuried}, nil,
				func(_ *cardTx, c *models.Card) error {
					c.Queue = models.QueueSchedBuried
					return nil
				}); err != nil {
				return err
			}
			if _, err := s.updateQueues(t,
				[]models.Queue{models.QueueSuspended, models.QueueSchedBuried},
				[]models.CardType{models.CardTypeLearning, models.CardTypeRelearning},
				s.resetHiddenLearning); err != nil {
				return err
			}
			shifted, err = st.Revlog().ShiftEase(ctx, []models.Ease{models.EaseGood, models.EaseEasy}, -1)
		} else {
			shifted, err = st.Revlog().ShiftEase(ctx, []models.Ease{models.EaseHard, models.EaseGood}, 1)
		}
		if err != nil {
			return fmt.Errorf("remap review log answers: %w", err)
		}
		log.Debug("version change: remapped %d review log rows", shifted)

		s.col.Conf.SchedVer = version
		s.col.Scm = s.now().UnixMilli()
		return s.saveCollection(ctx, st)
	})
	if err != nil {
		log.Error("failed to change scheduler version: %v", err)
		if rerr := s.load(ctx); rerr != nil {
			log.Error("failed to reload after failed version change: %v", rerr)
		}
		return err
	}

	s.policy = next
	s.Checkpoint()
	s.lrnCutoff = 0
	return s.Reset(ctx)
}

// updateQueues applies fn to every card in queues, optionally limited to types.
func (s *Scheduler) updateQueues(t *cardTx, queues []models.Queue, types []models.CardType, fn func(*cardTx, *models.Card) error) (int, error) {
	ids, err := t.st.Cards().IDs(t.ctx, repository.CardFilter{Queues: queues, Types: types})
	if err != nil {
		return 0, fmt.Errorf("list cards: %w", err)
	}
	res, err := s.mutateCardsTx(t, ids, func(t *cardTx, c *models.Card) (string, error) {
		return "", fn(t, c)
	})
	return len(res.Changed), err
}

// resetHiddenLearning drops the learning state of a suspended or buried
// card. The card stays hidden.
func (s *Scheduler) resetHiddenLearning(t *cardTx, c *models.Card) error {
	switch c.Type {
	case models.CardTypeLearning:
		pos, err := t.newPosition()
		if err != nil {
			return err
		}
		queue := c.Queue
		resetToNew(c, pos)
		c.Queue = queue
	case models.CardTypeRelearning:
		c.Type = models.CardTypeReview
		if c.Due > learnDueCutoff || c.Due <= 0 {
			c.Due = int64(s.today + c.Interval)
		}
		c.OriginalDue = 0
	}
	return nil
}
