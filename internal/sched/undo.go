package sched

import (
	"context"
	"fmt"

	"github.com/vytor/cardsched/internal/logger"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
)

// undoEntry is the state needed to revert one answer.
type undoEntry struct {
	card     models.Card
	wasLeech bool
	logged   bool
	deckID   int64
	counted  []models.CounterKind
}

// Checkpoint forgets every recorded answer. Any change other than an
// answer calls it, so undo never crosses a bulk operation.
func (s *Scheduler) Checkpoint() { s.undo = nil }

// CanUndo reports whether an answer can be reverted.
func (s *Scheduler) CanUndo() bool { return len(s.undo) > 0 }

// Undo reverts the most recent answer and returns the id of its card.
func (s *Scheduler) Undo(ctx context.Context) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("sched")
	if len(s.undo) == 0 {
		return 0, ErrNothingToUndo
	}
	entry := s.undo[len(s.undo)-1]
	c := entry.card
	log.Debug("undoing answer: card=%d", c.ID)

	err := s.store.InTx(ctx, func(st repository.Store) error {
		if !entry.wasLeech {
			note, err := st.Notes().Get(ctx, c.NoteID)
			if err != nil {
				return fmt.Errorf("load note %d: %w", c.NoteID, err)
			}
			if note.RemoveTag(models.LeechTag) {
				note.Mod = s.nowUnix()
				note.USN = s.usn()
				if err := st.Notes().UpdateTags(ctx, *note); err != nil {
					return fmt.Errorf("save note tags: %w", err)
				}
			}
		}

		restored := c
		restored.Mod = s.nowUnix()
		restored.USN = s.usn()
		if err := st.Cards().Update(ctx, restored); err != nil {
			return fmt.Errorf("restore card: %w", err)
		}
		if entry.logged {
			if err := st.Revlog().DeleteLatestForCard(ctx, c.ID); err != nil {
				return fmt.Errorf("delete review log: %w", err)
			}
		}

		buried, err := st.Cards().List(ctx, repository.CardFilter{
			NoteID:    c.NoteID,
			ExcludeID: c.ID,
			Queues:    []models.Queue{models.QueueSchedBuried},
		})
		if err != nil {
			return fmt.Errorf("load buried siblings: %w", err)
		}
		for i := range buried {
			buried[i].Queue = s.policy.restoreQueue(buried[i])
			buried[i].Mod = s.nowUnix()
			buried[i].USN = s.usn()
		}
		if err := st.Cards().UpdateBatch(ctx, buried); err != nil {
			return fmt.Errorf("unbury siblings: %w", err)
		}

		return s.uncount(ctx, st, entry)
	})
	if err != nil {
		log.Error("failed to undo answer of card %d: %v", c.ID, err)
		if rerr := s.load(ctx); rerr != nil {
			log.Error("failed to reload after failed undo: %v", rerr)
		}
		s.haveQueues = false
		return 0, err
	}

	s.undo = s.undo[:len(s.undo)-1]
	s.reps = max(0, s.reps-1)
	if err := s.Reset(ctx); err != nil {
		return 0, err
	}
	log.Info("undid answer of card %d", c.ID)
	return c.ID, nil
}

// uncount takes back the daily counters an answer bumped.
func (s *Scheduler) uncount(ctx context.Context, st repository.Store, entry undoEntry) error {
	d, ok := s.decks.Get(entry.deckID)
	if !ok || len(entry.counted) == 0 {
		return nil
	}
	targets := append([]*models.Deck{d}, s.decks.Parents(d.ID)...)
	for _, t := range targets {
		for _, kind := range entry.counted {
			if counter := t.Counter(kind); counter.Day == s.today {
				counter.Count--
			}
		}
		t.Mod = s.nowUnix()
		t.USN = s.usn()
	}
	return s.decks.Save(ctx, st.Decks(), targets...)
}
