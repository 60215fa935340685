package sched

import (
	"context"
	"fmt"

	"github.com/vytor/cardsched/internal/logger"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
	"github.com/vytor/cardsched/internal/search"
)

// firstFilteredRank is the due given to the first card moved into a filtered deck.
const firstFilteredRank int64 = -100000

// filterExclusions keeps cards out of filtered decks when they are
// suspended, buried, already filtered or in learning.
var filterExclusions = search.And{Nodes: []search.Node{
	search.Not{Node: search.State{Kind: search.StateSuspended}},
	search.Not{Node: search.State{Kind: search.StateBuried}},
	search.Not{Node: search.Deck{Name: "filtered"}},
	search.Not{Node: search.State{Kind: search.StateLearn}},
}}

func (s *Scheduler) filteredDeck(did int64) (*models.Deck, error) {
	d, ok := s.decks.Get(did)
	if !ok {
		return nil, fmt.Errorf("deck %d: %w", did, repository.ErrNotFound)
	}
	if !d.Dynamic {
		return nil, fmt.Errorf("%w: deck %d is not a filtered deck", ErrInvalidArgument, did)
	}
	return d, nil
}

// RebuildFiltered empties the filtered deck did and fills it again from its
// search terms. It returns the number of cards moved in and makes the deck
// current when that number is positive.
func (s *Scheduler) RebuildFiltered(ctx context.Context, did int64) (int, error) {
	log := logger.FromContext(ctx).WithPrefix("sched")
	log.Debug("rebuilding filtered deck: id=%d", did)
	if _, err := s.CheckDay(ctx); err != nil {
		return 0, err
	}

	d, err := s.filteredDeck(did)
	if err != nil {
		return 0, err
	}
	if err := d.ValidateTerms(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	terms := s.policy.filterTerms(d.Terms)
	queries := make([]search.Node, len(terms))
	for i, term := range terms {
		q, err := search.Parse(term.Search)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		queries[i] = search.Combine(q, filterExclusions)
	}

	total := 0
	err = s.store.InTx(ctx, func(st repository.Store) error {
		total = 0
		t := s.newCardTx(ctx, st)
		if _, err := s.emptyFilteredTx(t, d.ID); err != nil {
			return err
		}

		rank := firstFilteredRank
		for i, term := range terms {
			ids, err := st.Cards().Find(ctx, queries[i], repository.FindOptions{
				Order:     term.Order,
				Limit:     term.Limit,
				Today:     s.today,
				DayCutoff: s.dayCutoff,
				Now:       s.nowUnix(),
			})
			if err != nil {
				return fmt.Errorf("search term %d: %w", i+1, err)
			}
			res, err := s.mutateCardsTx(t, ids, func(_ *cardTx, c *models.Card) (string, error) {
				s.policy.moveToFiltered(c, d, rank)
				rank++
				return "", nil
			})
			if err != nil {
				return err
			}
			total += len(res.Changed)
		}
		if total == 0 {
			return nil
		}
		return s.selectDeck(ctx, st, d.ID)
	})
	if err != nil {
		log.Error("failed to rebuild filtered deck %d: %v", did, err)
		s.haveQueues = false
		if rerr := s.load(ctx); rerr != nil {
			log.Error("failed to reload after failed rebuild: %v", rerr)
		}
		return 0, err
	}
	s.Checkpoint()
	s.haveQueues = false
	log.Info("rebuilt filtered deck %d (%s): %d cards", d.ID, d.Name, total)
	return total, nil
}

// EmptyFiltered returns every card of the filtered deck did to its home deck.
func (s *Scheduler) EmptyFiltered(ctx context.Context, did int64) (int, error) {
	log := logger.FromContext(ctx).WithPrefix("sched")
	if _, err := s.CheckDay(ctx); err != nil {
		return 0, err
	}
	if _, err := s.filteredDeck(did); err != nil {
		return 0, err
	}
	var n int
	err := s.store.InTx(ctx, func(st repository.Store) error {
		var err error
		n, err = s.emptyFilteredTx(s.newCardTx(ctx, st), did)
		return err
	})
	if err != nil {
		log.Error("failed to empty filtered deck %d: %v", did, err)
		return 0, err
	}
	s.Checkpoint()
	s.haveQueues = false
	log.Info("emptied filtered deck %d: %d cards", did, n)
	return n, nil
}

// RemoveFromFiltered returns the given cards to their home decks.
func (s *Scheduler) RemoveFromFiltered(ctx context.Context, ids []int64) (models.BatchResult, error) {
	return s.mutateCards(ctx, "remove from filtered", ids, func(t *cardTx, c *models.Card) (string, error) {
		if !c.IsFiltered() {
			return "not in a filtered deck", nil
		}
		return "", s.restoreFromFiltered(t, c)
	})
}

func (s *Scheduler) emptyFilteredTx(t *cardTx, did int64) (int, error) {
	ids, err := t.st.Cards().IDs(t.ctx, repository.CardFilter{DeckIDs: []int64{did}, Filtered: ptr(true)})
	if err != nil {
		return 0, fmt.Errorf("list filtered cards: %w", err)
	}
	res, err := s.mutateCardsTx(t, ids, func(t *cardTx, c *models.Card) (string, error) {
		return "", s.restoreFromFiltered(t, c)
	})
	return len(res.Changed), err
}

// emptyAllFiltered empties every filtered deck.
func (s *Scheduler) emptyAllFiltered(t *cardTx) (int, error) {
	total := 0
	for _, did := range s.decks.FilteredIDs() {
		n, err := s.emptyFilteredTx(t, did)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// restoreFromFiltered moves c back to its home deck. Learning state does
// not survive the move: learning cards become new and relearning cards
// become reviews. Suspended and buried cards stay where they are.
func (s *Scheduler) restoreFromFiltered(t *cardTx, c *models.Card) error {
	if !c.IsFiltered() {
		return nil
	}
	shadow := c.OriginalDue
	dayDue := shadow > 0 && shadow < learnDueCutoff
	keepQueue := c.Queue < models.QueueNew

	switch c.Type {
	case models.CardTypeLearning:
		c.Type = models.CardTypeNew
		if dayDue {
			c.Due = shadow
		} else {
			pos, err := t.newPosition()
			if err != nil {
				return err
			}
			c.Due = pos
		}
	case models.CardTypeRelearning:
		c.Type = models.CardTypeReview
		if dayDue {
			c.Due = shadow
		} else {
			c.Due = int64(s.today + c.Interval)
		}
	default:
		if shadow != 0 {
			c.Due = shadow
		} else if c.Due < 0 {
			c.Due = 0
		}
	}
	if !keepQueue {
		c.Queue = models.Queue(c.Type)
	}
	c.ClearFiltered()
	return nil
}
