package sched

import (
	"context"
	"fmt"

	"github.com/vytor/cardsched/internal/logger"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
)

// resetToNew wipes the review history fields of c and places it at pos.
func resetToNew(c *models.Card, pos int64) {
	c.Type = models.CardTypeNew
	c.Queue = models.QueueNew
	c.Interval = 0
	c.Factor = models.StartingFactor
	c.Left = 0
	c.Due = pos
	c.OriginalDue = 0
}

// forget sends one card to the end of the new queue.
func (s *Scheduler) forget(t *cardTx, c *models.Card) error {
	pos, err := t.newPosition()
	if err != nil {
		return err
	}
	resetToNew(c, pos)
	return nil
}

// ForgetCards turns cards back into new cards at the end of the new queue.
// Cards of the same note share a position.
func (s *Scheduler) ForgetCards(ctx context.Context, ids []int64) (models.BatchResult, error) {
	positions := make(map[int64]int64)
	return s.mutateCards(ctx, "forget cards", ids, func(t *cardTx, c *models.Card) (string, error) {
		if err := s.restoreFromFiltered(t, c); err != nil {
			return "", err
		}
		pos, ok := positions[c.NoteID]
		if !ok {
			var err error
			if pos, err = t.newPosition(); err != nil {
				return "", err
			}
			positions[c.NoteID] = pos
		}
		resetToNew(c, pos)
		return "", nil
	})
}

// RepositionNewCards gives new cards the positions start, start+step, ...
// one note at a time, in the order of ids. With shift, the other new cards
// at or after start move down to make room.
func (s *Scheduler) RepositionNewCards(ctx context.Context, ids []int64, start, step int64, shift bool) (models.BatchResult, error) {
	log := logger.FromContext(ctx).WithPrefix("sched")
	if start < 0 || step < 1 {
		return models.BatchResult{}, fmt.Errorf("%w: start %d, step %d", ErrInvalidArgument, start, step)
	}
	if _, err := s.CheckDay(ctx); err != nil {
		return models.BatchResult{}, err
	}

	var res models.BatchResult
	err := s.store.InTx(ctx, func(st repository.Store) error {
		cards, err := st.Cards().List(ctx, repository.CardFilter{
			IDs:   ids,
			Types: []models.CardType{models.CardTypeNew},
		})
		if err != nil {
			return fmt.Errorf("load new cards: %w", err)
		}
		noteOf := make(map[int64]int64, len(cards))
		for _, c := range cards {
			noteOf[c.ID] = c.NoteID
		}
		positions := make(map[int64]int64)
		high := start - step
		for _, id := range ids {
			nid, ok := noteOf[id]
			if !ok {
				continue
			}
			if _, seen := positions[nid]; !seen {
				high += step
				positions[nid] = high
			}
		}

		if shift && len(positions) > 0 {
			if err := s.shiftNewCards(ctx, st, ids, start, high); err != nil {
				return err
			}
		}

		res, err = s.mutateCardsTx(s.newCardTx(ctx, st), ids, func(_ *cardTx, c *models.Card) (string, error) {
			pos, ok := positions[c.NoteID]
			if c.Type != models.CardTypeNew || !ok {
				return "not a new card", nil
			}
			c.Due = pos
			return "", nil
		})
		if err != nil {
			return err
		}
		if len(positions) > 0 && high+1 > s.col.Conf.NextPos {
			s.col.Conf.NextPos = high + 1
			return s.saveCollection(ctx, st)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to reposition cards: %v", err)
		return models.BatchResult{}, err
	}
	s.Checkpoint()
	s.haveQueues = false
	log.Info("repositioned %d new cards from %d", len(res.Changed), start)
	return res, nil
}

// shiftNewCards moves new cards outside ids that sit at or after start
// below high.
func (s *Scheduler) shiftNewCards(ctx context.Context, st repository.Store, ids []int64, start, high int64) error {
	others, err := st.Cards().List(ctx, repository.CardFilter{
		Types:      []models.CardType{models.CardTypeNew},
		DueAtLeast: ptr(start),
	})
	if err != nil {
		return fmt.Errorf("load cards to shift: %w", err)
	}
	moving := make(map[int64]bool, len(ids))
	for _, id := range ids {
		moving[id] = true
	}
	var rest []models.Card
	low := int64(-1)
	for _, c := range others {
		if moving[c.ID] {
			continue
		}
		rest = append(rest, c)
		if low < 0 || c.Due < low {
			low = c.Due
		}
	}
	if low < 0 {
		return nil
	}

	by := high - low + 1
	var shifted []models.Card
	for _, c := range rest {
		if c.Queue != models.QueueNew {
			continue
		}
		c.Due += by
		c.Mod = s.nowUnix()
		c.USN = s.usn()
		shifted = append(shifted, c)
	}
	if err := st.Cards().UpdateBatch(ctx, shifted); err != nil {
		return fmt.Errorf("shift new cards: %w", err)
	}
	return nil
}

// RescheduleCards makes cards reviews due in a random number of days
// between minDays and maxDays.
func (s *Scheduler) RescheduleCards(ctx context.Context, ids []int64, minDays, maxDays int) (models.BatchResult, error) {
	if minDays < 0 || maxDays < minDays {
		return models.BatchResult{}, fmt.Errorf("%w: days %d..%d", ErrInvalidArgument, minDays, maxDays)
	}
	return s.mutateCards(ctx, "reschedule cards", ids, func(t *cardTx, c *models.Card) (string, error) {
		if err := s.restoreFromFiltered(t, c); err != nil {
			return "", err
		}
		days := minDays + s.rnd.Intn(maxDays-minDays+1)
		c.Type = models.CardTypeReview
		c.Queue = models.QueueReview
		c.Interval = max(1, days)
		c.Due = int64(s.today + days)
		c.OriginalDue = 0
		if c.Factor == 0 {
			c.Factor = models.StartingFactor
		}
		return "", nil
	})
}

// SetUserFlag sets the color flag of cards. Zero clears it.
func (s *Scheduler) SetUserFlag(ctx context.Context, ids []int64, flag int) (models.BatchResult, error) {
	if flag < 0 || flag > 7 {
		return models.BatchResult{}, fmt.Errorf("%w: flag %d", ErrInvalidArgument, flag)
	}
	return s.mutateCards(ctx, "flag cards", ids, func(_ *cardTx, c *models.Card) (string, error) {
		c.SetUserFlag(flag)
		return "", nil
	})
}
