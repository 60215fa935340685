package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
)

// policy holds everything that differs between scheduler versions. The
// Scheduler owns the shared queue machinery and calls into its policy for
// day boundaries, counting, answering and queue restoration.
type policy interface {
	version() int
	dayBounds(crt int64, now time.Time) (int, int64)

	// Filtered decks.
	filteredSteps(d *models.Deck) []float64
	filteredLimit() int
	filterTerms(terms []models.FilterTerm) []models.FilterTerm
	moveToFiltered(c *models.Card, deck *models.Deck, rank int64)

	// Burying and suspending.
	buryQueue(manual bool) models.Queue
	buriedQueues(scope UnburyScope) []models.Queue
	restoreQueue(c models.Card) models.Queue
	// detach takes a card out of filtered decks and learning before it is
	// suspended or buried, where the version requires it.
	detach(c *models.Card, t *cardTx) error

	// Learning queue.
	resetLrnCount(ctx context.Context, st repository.Store) (int, error)
	lrnFilter() repository.CardFilter
	maybeResetLrn(ctx context.Context, st repository.Store, force bool) error
	lrnPopCount(c models.Card) int
	lrnForDeck(ctx context.Context, st repository.Store, did int64) (int, error)
	dayLearnFirst() bool

	// Review queue.
	resetRev(ctx context.Context, st repository.Store) error
	fillRev(ctx context.Context, st repository.Store) (bool, error)
	// revForDeck counts the reviews shown for did in the deck overview.
	revForDeck(ctx context.Context, st repository.Store, did int64, lim int) (int, error)

	// Answering.
	answer(ctx context.Context, a *answerTx) error
	nextInterval(c models.Card, ease models.Ease) int64
	answerButtons(c models.Card) int
	countCurrent(counts *models.Counts, c models.Card)
}

func newPolicy(s *Scheduler, version int) (policy, error) {
	switch version {
	case 1:
		return &v1Policy{s: s}, nil
	case 2:
		return &v2Policy{s: s}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
}
