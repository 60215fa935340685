package sched

import (
	"context"
	"fmt"

	"github.com/vytor/cardsched/internal/logger"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
)

// UnburyScope selects which buried cards UnburyCardsForDeck restores.
type UnburyScope string

const (
	UnburyAll      UnburyScope = "all"
	UnburyManual   UnburyScope = "manual"
	UnburySiblings UnburyScope = "siblings"
)

// ParseUnburyScope validates a scope name. An empty name means all.
func ParseUnburyScope(name string) (UnburyScope, error) {
	switch scope := UnburyScope(name); scope {
	case "":
		return UnburyAll, nil
	case UnburyAll, UnburyManual, UnburySiblings:
		return scope, nil
	default:
		return "", fmt.Errorf("%w: unbury scope %q", ErrInvalidArgument, name)
	}
}

// cardTx is the context of a bulk card change running in one transaction.
type cardTx struct {
	ctx context.Context
	st  repository.Store
	s   *Scheduler

	nextNew  int64
	haveNext bool
}

// newPosition hands out positions after every existing new card.
func (t *cardTx) newPosition() (int64, error) {
	if !t.haveNext {
		high, err := t.st.Cards().MaxNewDue(t.ctx)
		if err != nil {
			return 0, fmt.Errorf("load last new position: %w", err)
		}
		t.nextNew = high + 1
		t.haveNext = true
	}
	pos := t.nextNew
	t.nextNew++
	return pos, nil
}

// finish advances the collection position counter past every position handed out.
func (t *cardTx) finish() error {
	if !t.haveNext || t.nextNew <= t.s.col.Conf.NextPos {
		return nil
	}
	t.s.col.Conf.NextPos = t.nextNew
	return t.s.saveCollection(t.ctx, t.st)
}

func (s *Scheduler) newCardTx(ctx context.Context, st repository.Store) *cardTx {
	return &cardTx{ctx: ctx, st: st, s: s}
}

// cardChange is applied to one card of a bulk operation. It returns a
// non-empty reason to skip the card unchanged.
type cardChange func(t *cardTx, c *models.Card) (skip string, err error)

// mutateCards applies change to every card in ids inside one transaction.
// Unknown ids are skipped. Queues are rebuilt on the next study call.
func (s *Scheduler) mutateCards(ctx context.Context, op string, ids []int64, change cardChange) (models.BatchResult, error) {
	log := logger.FromContext(ctx).WithPrefix("sched")
	log.Debug("%s: %d cards", op, len(ids))
	if _, err := s.CheckDay(ctx); err != nil {
		return models.BatchResult{}, err
	}

	var res models.BatchResult
	err := s.store.InTx(ctx, func(st repository.Store) error {
		var err error
		res, err = s.mutateCardsTx(s.newCardTx(ctx, st), ids, change)
		return err
	})
	if err != nil {
		log.Error("failed to %s: %v", op, err)
		return models.BatchResult{}, err
	}
	s.Checkpoint()
	s.haveQueues = false
	if len(res.Changed) > 0 {
		log.Info("%s: changed %d cards, skipped %d", op, len(res.Changed), len(res.Skipped))
	}
	return res, nil
}

func (s *Scheduler) mutateCardsTx(t *cardTx, ids []int64, change cardChange) (models.BatchResult, error) {
	var res models.BatchResult
	if len(ids) == 0 {
		return res, nil
	}
	cards, err := t.st.Cards().List(t.ctx, repository.CardFilter{IDs: ids})
	if err != nil {
		return res, fmt.Errorf("load cards: %w", err)
	}
	byID := make(map[int64]models.Card, len(cards))
	for _, c := range cards {
		byID[c.ID] = c
	}

	var changed []models.Card
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		c, ok := byID[id]
		if !ok {
			res.Skip(id, "not found")
			continue
		}
		reason, err := change(t, &c)
		if err != nil {
			return res, err
		}
		if reason != "" {
			res.Skip(id, reason)
			continue
		}
		c.Mod = s.nowUnix()
		c.USN = s.usn()
		if err := c.CheckInvariants(); err != nil {
			return res, fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		changed = append(changed, c)
		res.Changed = append(res.Changed, id)
	}
	if len(changed) > 0 {
		if err := t.st.Cards().UpdateBatch(t.ctx, changed); err != nil {
			return res, fmt.Errorf("save cards: %w", err)
		}
	}
	return res, t.finish()
}

// SuspendCards moves cards to the suspended queue.
func (s *Scheduler) SuspendCards(ctx context.Context, ids []int64) (models.BatchResult, error) {
	return s.mutateCards(ctx, "suspend cards", ids, func(t *cardTx, c *models.Card) (string, error) {
		if c.Queue == models.QueueSuspended {
			return "already suspended", nil
		}
		if err := s.policy.detach(c, t); err != nil {
			return "", err
		}
		c.Queue = models.QueueSuspended
		return "", nil
	})
}

// UnsuspendCards restores suspended cards to the queue their type implies.
func (s *Scheduler) UnsuspendCards(ctx context.Context, ids []int64) (models.BatchResult, error) {
	return s.mutateCards(ctx, "unsuspend cards", ids, func(_ *cardTx, c *models.Card) (string, error) {
		if c.Queue != models.QueueSuspended {
			return "not suspended", nil
		}
		c.Queue = s.policy.restoreQueue(*c)
		return "", nil
	})
}

// BuryCards hides cards until the next day. Manual burying is kept apart
// from sibling burying where the version supports it.
func (s *Scheduler) BuryCards(ctx context.Context, ids []int64, manual bool) (models.BatchResult, error) {
	queue := s.policy.buryQueue(manual)
	return s.mutateCards(ctx, "bury cards", ids, func(t *cardTx, c *models.Card) (string, error) {
		switch {
		case c.Queue == models.QueueSuspended:
			return "suspended", nil
		case c.Queue == queue:
			return "already buried", nil
		}
		if err := s.policy.detach(c, t); err != nil {
			return "", err
		}
		c.Queue = queue
		return "", nil
	})
}

// UnburyCards restores the given buried cards.
func (s *Scheduler) UnburyCards(ctx context.Context, ids []int64) (models.BatchResult, error) {
	return s.mutateCards(ctx, "unbury cards", ids, func(_ *cardTx, c *models.Card) (string, error) {
		if !c.Queue.IsBuried() {
			return "not buried", nil
		}
		c.Queue = s.policy.restoreQueue(*c)
		return "", nil
	})
}

// UnburyCardsForDeck restores buried cards of the active decks.
func (s *Scheduler) UnburyCardsForDeck(ctx context.Context, scope UnburyScope) (models.BatchResult, error) {
	if _, err := ParseUnburyScope(string(scope)); err != nil {
		return models.BatchResult{}, err
	}
	if _, err := s.CheckDay(ctx); err != nil {
		return models.BatchResult{}, err
	}
	log := logger.FromContext(ctx).WithPrefix("sched")

	var res models.BatchResult
	err := s.store.InTx(ctx, func(st repository.Store) error {
		var err error
		res, err = s.unbury(ctx, st, s.policy.buriedQueues(scope), s.active())
		return err
	})
	if err != nil {
		log.Error("failed to unbury cards: %v", err)
		return models.BatchResult{}, err
	}
	s.Checkpoint()
	s.haveQueues = false
	log.Info("unburied %d cards: scope=%s", len(res.Changed), scope)
	return res, nil
}

// unbury restores every card in queues, limited to deckIDs when given.
func (s *Scheduler) unbury(ctx context.Context, st repository.Store, queues []models.Queue, deckIDs []int64) (models.BatchResult, error) {
	ids, err := st.Cards().IDs(ctx, repository.CardFilter{DeckIDs: deckIDs, Queues: queues})
	if err != nil {
		return models.BatchResult{}, fmt.Errorf("find buried cards: %w", err)
	}
	return s.mutateCardsTx(s.newCardTx(ctx, st), ids, func(_ *cardTx, c *models.Card) (string, error) {
		c.Queue = s.policy.restoreQueue(*c)
		return "", nil
	})
}

// HaveBuried reports whether the active decks hold buried cards.
func (s *Scheduler) HaveBuried(ctx context.Context) (bool, error) {
	if _, err := s.CheckDay(ctx); err != nil {
		return false, err
	}
	n, err := s.store.Cards().Count(ctx, repository.CardFilter{
		DeckIDs: s.active(),
		Queues:  s.policy.buriedQueues(UnburyAll),
		Limit:   1,
	})
	if err != nil {
		return false, fmt.Errorf("count buried cards: %w", err)
	}
	return n > 0, nil
}

// removeFromLearning returns a card in learning to where it came from:
// reviews go back to the review queue, new cards to the end of the new queue.
func (s *Scheduler) removeFromLearning(t *cardTx, c *models.Card) error {
	if c.Queue != models.QueueLearning && c.Queue != models.QueueDayLearning {
		return nil
	}
	if isLapsed(*c) {
		c.Due = c.OriginalDue
		if c.Due == 0 || c.Due > learnDueCutoff {
			c.Due = int64(s.today + c.Interval)
		}
		c.OriginalDue = 0
		c.Type = models.CardTypeReview
		c.Queue = models.QueueReview
		return nil
	}
	return s.forget(t, c)
}
