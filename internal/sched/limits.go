package sched

import (
	"context"
	"fmt"

	"github.com/vytor/cardsched/internal/logger"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
)

// walkingCount sums per-deck counts over the active decks while charging
// each deck's consumption against every ancestor's remaining budget, so a
// deck never yields more than the tightest limit on its path to the root.
func (s *Scheduler) walkingCount(limit func(*models.Deck) int, count func(did int64, lim int) (int, error)) (int, error) {
	total := 0
	budgets := make(map[int64]int)
	for _, did := range s.active() {
		d, ok := s.decks.Get(did)
		if !ok {
			continue
		}
		lim := limit(d)
		if lim <= 0 {
			continue
		}
		parents := s.decks.Parents(did)
		for _, p := range parents {
			if _, seen := budgets[p.ID]; !seen {
				budgets[p.ID] = limit(p)
			}
			lim = min(budgets[p.ID], lim)
		}
		cnt := 0
		if lim > 0 {
			var err error
			if cnt, err = count(did, lim); err != nil {
				return 0, err
			}
		}
		for _, p := range parents {
			budgets[p.ID] -= cnt
		}
		budgets[did] = lim - cnt
		total += cnt
	}
	return total, nil
}

func (s *Scheduler) newLimitSingle(d *models.Deck) int {
	if d.Dynamic {
		return s.policy.filteredLimit()
	}
	conf := s.decks.ConfFor(d.ID)
	return max(0, conf.New.PerDay-d.NewToday.Count)
}

func (s *Scheduler) revLimitSingle(d *models.Deck) int {
	if d.Dynamic {
		return s.policy.filteredLimit()
	}
	conf := s.decks.ConfFor(d.ID)
	return max(0, conf.Rev.PerDay-d.RevToday.Count)
}

// pathLimit is the tightest limit on the deck and its ancestors.
func (s *Scheduler) pathLimit(did int64, limit func(*models.Deck) int) int {
	d, ok := s.decks.Get(did)
	if !ok {
		return 0
	}
	lim := limit(d)
	for _, p := range s.decks.Parents(did) {
		lim = min(lim, limit(p))
	}
	return lim
}

// DeckDueList returns the new, learning and review counts of every deck.
// Each deck is limited by its own options and by its parents' limits.
func (s *Scheduler) DeckDueList(ctx context.Context) ([]models.DeckDue, error) {
	log := logger.FromContext(ctx).WithPrefix("sched")
	if _, err := s.CheckDay(ctx); err != nil {
		return nil, err
	}

	type limits struct{ newLim, revLim int }
	byName := make(map[string]limits)
	var out []models.DeckDue

	for _, d := range s.decks.All() {
		nlim := s.newLimitSingle(d)
		rlim := s.revLimitSingle(d)
		if parent, ok := s.decks.Parent(d.ID); ok {
			if pl, seen := byName[parent.Name]; seen {
				nlim = min(nlim, pl.newLim)
				rlim = min(rlim, pl.revLim)
			}
		}

		row := models.DeckDue{ID: d.ID, Name: d.Name}
		var err error
		if lim := min(nlim, reportLimit); lim > 0 {
			row.New, err = s.store.Cards().Count(ctx, repository.CardFilter{
				DeckIDs: []int64{d.ID},
				Queues:  []models.Queue{models.QueueNew},
				Limit:   lim,
			})
			if err != nil {
				return nil, fmt.Errorf("count new cards of deck %d: %w", d.ID, err)
			}
		}
		if row.Learning, err = s.policy.lrnForDeck(ctx, s.store, d.ID); err != nil {
			return nil, fmt.Errorf("count learning cards of deck %d: %w", d.ID, err)
		}
		if row.Review, err = s.policy.revForDeck(ctx, s.store, d.ID, rlim); err != nil {
			return nil, fmt.Errorf("count reviews of deck %d: %w", d.ID, err)
		}

		out = append(out, row)
		byName[d.Name] = limits{newLim: nlim, revLim: rlim}
	}
	log.Debug("computed due list for %d decks", len(out))
	return out, nil
}
