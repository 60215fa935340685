package sched

import (
	"container/heap"
	"context"
	"fmt"
	"math/rand"

	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
)

// lrnHeap is a min-heap of learning cards keyed by due time.
type lrnHeap []models.DueEntry

func (h lrnHeap) Len() int { return len(h) }
func (h lrnHeap) Less(i, j int) bool {
	if h[i].Due != h[j].Due {
		return h[i].Due < h[j].Due
	}
	return h[i].ID < h[j].ID
}
func (h lrnHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *lrnHeap) Push(x any)   { *h = append(*h, x.(models.DueEntry)) }
func (h *lrnHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// shuffleForDay shuffles ids in an order that is stable for the given day.
func shuffleForDay(ids []int64, today int) {
	r := rand.New(rand.NewSource(int64(today)))
	r.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}

func reverse(ids []int64) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}

func removeID(ids []int64, id int64) []int64 {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func ptr[T any](v T) *T { return &v }

func (s *Scheduler) loadCard(ctx context.Context, st repository.Store, id int64) (*models.Card, error) {
	c, err := st.Cards().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load queued card: %w", err)
	}
	return c, nil
}

// nextCard applies the study order: due learning cards, an interleaved new
// card, reviews and day learning, remaining new cards, then learning cards
// that fall due within the collapse window.
func (s *Scheduler) nextCard(ctx context.Context, st repository.Store) (*models.Card, error) {
	steps := []func() (*models.Card, error){
		func() (*models.Card, error) { return s.getLrnCard(ctx, st, false) },
		func() (*models.Card, error) {
			if !s.timeForNewCard() {
				return nil, nil
			}
			return s.getNewCard(ctx, st)
		},
	}
	dayFirst := s.policy.dayLearnFirst()
	if dayFirst {
		steps = append(steps, func() (*models.Card, error) { return s.getLrnDayCard(ctx, st) })
	}
	steps = append(steps, func() (*models.Card, error) { return s.getRevCard(ctx, st) })
	if !dayFirst {
		steps = append(steps, func() (*models.Card, error) { return s.getLrnDayCard(ctx, st) })
	}
	steps = append(steps,
		func() (*models.Card, error) { return s.getNewCard(ctx, st) },
		func() (*models.Card, error) { return s.getLrnCard(ctx, st, true) },
	)

	for _, step := range steps {
		c, err := step()
		if err != nil || c != nil {
			return c, err
		}
	}
	return nil, nil
}

// New cards

func (s *Scheduler) resetNew(ctx context.Context, st repository.Store) error {
	count, err := s.walkingCount(s.newLimitSingle, func(did int64, lim int) (int, error) {
		return st.Cards().Count(ctx, repository.CardFilter{
			DeckIDs: []int64{did},
			Queues:  []models.Queue{models.QueueNew},
			Limit:   lim,
		})
	})
	if err != nil {
		return fmt.Errorf("count new cards: %w", err)
	}
	s.newCount = count
	s.newDids = append([]int64(nil), s.active()...)
	s.newQueue = nil
	s.updateNewCardRatio()
	return nil
}

func (s *Scheduler) fillNew(ctx context.Context, st repository.Store, retried bool) (bool, error) {
	if len(s.newQueue) > 0 {
		return true, nil
	}
	if s.newCount <= 0 {
		return false, nil
	}
	for len(s.newDids) > 0 {
		did := s.newDids[0]
		lim := min(queueLimit, s.pathLimit(did, s.newLimitSingle))
		if lim > 0 {
			ids, err := st.Cards().IDs(ctx, repository.CardFilter{
				DeckIDs: []int64{did},
				Queues:  []models.Queue{models.QueueNew},
				Order:   repository.OrderDueOrd,
				Limit:   lim,
			})
			if err != nil {
				return false, fmt.Errorf("fill new queue: %w", err)
			}
			if len(ids) > 0 {
				reverse(ids)
				s.newQueue = ids
				return true, nil
			}
		}
		s.newDids = s.newDids[1:]
	}
	if s.newCount > 0 && !retried {
		// Cards may have left the queue without being buried; recount once.
		if err := s.resetNew(ctx, st); err != nil {
			return false, err
		}
		return s.fillNew(ctx, st, true)
	}
	return false, nil
}

func (s *Scheduler) getNewCard(ctx context.Context, st repository.Store) (*models.Card, error) {
	ok, err := s.fillNew(ctx, st, false)
	if err != nil || !ok {
		return nil, err
	}
	s.newCount--
	id := s.newQueue[len(s.newQueue)-1]
	s.newQueue = s.newQueue[:len(s.newQueue)-1]
	return s.loadCard(ctx, st, id)
}

func (s *Scheduler) updateNewCardRatio() {
	s.newCardModulus = 0
	if s.col.Conf.NewSpread != models.NewCardsDistribute || s.newCount <= 0 {
		return
	}
	s.newCardModulus = (s.newCount + s.revCount) / s.newCount
	if s.revCount > 0 {
		s.newCardModulus = max(2, s.newCardModulus)
	}
}

func (s *Scheduler) timeForNewCard() bool {
	if s.newCount <= 0 {
		return false
	}
	switch s.col.Conf.NewSpread {
	case models.NewCardsLast:
		return false
	case models.NewCardsFirst:
		return true
	}
	return s.newCardModulus != 0 && s.reps != 0 && s.reps%s.newCardModulus == 0
}

// Learning cards

func (s *Scheduler) resetLrn(ctx context.Context, st repository.Store) error {
	count, err := s.policy.resetLrnCount(ctx, st)
	if err != nil {
		return fmt.Errorf("count learning cards: %w", err)
	}
	s.lrnCount = count
	s.lrnQueue = nil
	s.lrnDayQueue = nil
	s.lrnDids = append([]int64(nil), s.active()...)
	return nil
}

func (s *Scheduler) fillLrn(ctx context.Context, st repository.Store) (bool, error) {
	if s.lrnCount <= 0 {
		return false, nil
	}
	if len(s.lrnQueue) > 0 {
		return true, nil
	}
	filter := s.policy.lrnFilter()
	filter.DeckIDs = s.active()
	filter.Limit = reportLimit
	entries, err := st.Cards().DueEntries(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("fill learning queue: %w", err)
	}
	s.lrnQueue = entries
	heap.Init(&s.lrnQueue)
	return len(s.lrnQueue) > 0, nil
}

func (s *Scheduler) getLrnCard(ctx context.Context, st repository.Store, collapse bool) (*models.Card, error) {
	if err := s.policy.maybeResetLrn(ctx, st, collapse && s.lrnCount == 0); err != nil {
		return nil, err
	}
	ok, err := s.fillLrn(ctx, st)
	if err != nil || !ok {
		return nil, err
	}
	cutoff := s.nowUnix()
	if collapse {
		cutoff += int64(s.col.Conf.CollapseTime)
	}
	if s.lrnQueue[0].Due >= cutoff {
		return nil, nil
	}
	entry := heap.Pop(&s.lrnQueue).(models.DueEntry)
	c, err := s.loadCard(ctx, st, entry.ID)
	if err != nil {
		return nil, err
	}
	s.lrnCount -= s.policy.lrnPopCount(*c)
	return c, nil
}

// pushLrn queues a card that is due again later today.
func (s *Scheduler) pushLrn(c *models.Card) {
	// With nothing else left to study, never put the card back at the head
	// of the queue, or it would be shown twice in a row.
	if len(s.lrnQueue) > 0 && s.revCount <= 0 && s.newCount <= 0 {
		c.Due = max(c.Due, s.lrnQueue[0].Due+1)
	}
	heap.Push(&s.lrnQueue, models.DueEntry{Due: c.Due, ID: c.ID})
}

func (s *Scheduler) fillLrnDay(ctx context.Context, st repository.Store) (bool, error) {
	if s.lrnCount <= 0 {
		return false, nil
	}
	if len(s.lrnDayQueue) > 0 {
		return true, nil
	}
	for len(s.lrnDids) > 0 {
		did := s.lrnDids[0]
		ids, err := st.Cards().IDs(ctx, repository.CardFilter{
			DeckIDs:   []int64{did},
			Queues:    []models.Queue{models.QueueDayLearning},
			DueAtMost: ptr(int64(s.today)),
			Order:     repository.OrderID,
			Limit:     queueLimit,
		})
		if err != nil {
			return false, fmt.Errorf("fill day learning queue: %w", err)
		}
		if len(ids) > 0 {
			shuffleForDay(ids, s.today)
			s.lrnDayQueue = ids
			if len(ids) < queueLimit {
				s.lrnDids = s.lrnDids[1:]
			}
			return true, nil
		}
		s.lrnDids = s.lrnDids[1:]
	}
	return false, nil
}

func (s *Scheduler) getLrnDayCard(ctx context.Context, st repository.Store) (*models.Card, error) {
	ok, err := s.fillLrnDay(ctx, st)
	if err != nil || !ok {
		return nil, err
	}
	s.lrnCount--
	id := s.lrnDayQueue[len(s.lrnDayQueue)-1]
	s.lrnDayQueue = s.lrnDayQueue[:len(s.lrnDayQueue)-1]
	return s.loadCard(ctx, st, id)
}

// Reviews

func (s *Scheduler) getRevCard(ctx context.Context, st repository.Store) (*models.Card, error) {
	ok, err := s.policy.fillRev(ctx, st)
	if err != nil || !ok {
		return nil, err
	}
	s.revCount--
	id := s.revQueue[len(s.revQueue)-1]
	s.revQueue = s.revQueue[:len(s.revQueue)-1]
	return s.loadCard(ctx, st, id)
}

// dropFromQueues removes a sibling from the in-memory new and review stacks.
func (s *Scheduler) dropFromQueues(id int64) {
	s.newQueue = removeID(s.newQueue, id)
	s.revQueue = removeID(s.revQueue, id)
}
