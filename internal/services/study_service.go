package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vytor/cardsched/internal/errors"
	"github.com/vytor/cardsched/internal/logger"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
	"github.com/vytor/cardsched/internal/sched"
)

// fieldSeparator splits the stored note fields.
const fieldSeparator = "\x1f"

// StudyCard is a card handed out for study together with what a client
// needs to render its answer buttons.
type StudyCard struct {
	Card      models.Card   `json:"card"`
	Fields    []string      `json:"fields"`
	Counts    models.Counts `json:"counts"`
	Buttons   int           `json:"buttons"`
	Intervals []int64       `json:"intervals"`
	Timebox   Timebox       `json:"timebox"`
}

// Timebox reports progress through the study time limit.
type Timebox struct {
	Reached        bool `json:"reached"`
	ElapsedSeconds int  `json:"elapsed_seconds"`
	Reps           int  `json:"reps"`
}

// StudyService serialises every use of the scheduler. It remembers the card
// currently shown so that answers can be checked against it.
type StudyService interface {
	Next(ctx context.Context) (*StudyCard, error)
	Counts(ctx context.Context) (models.Counts, error)
	Answer(ctx context.Context, cardID int64, ease int) (*models.Card, error)
	Undo(ctx context.Context) (int64, error)

	Suspend(ctx context.Context, ids []int64) (models.BatchResult, error)
	Unsuspend(ctx context.Context, ids []int64) (models.BatchResult, error)
	Bury(ctx context.Context, ids []int64) (models.BatchResult, error)
	Unbury(ctx context.Context, scope string) (models.BatchResult, error)
	Forget(ctx context.Context, ids []int64) (models.BatchResult, error)
	Reposition(ctx context.Context, ids []int64, start, step int64, shift bool) (models.BatchResult, error)
	Reschedule(ctx context.Context, ids []int64, minDays, maxDays int) (models.BatchResult, error)
	SetFlag(ctx context.Context, ids []int64, flag int) (models.BatchResult, error)

	Decks(ctx context.Context) ([]models.DeckDue, error)
	SelectDeck(ctx context.Context, deckID int64) error
	CreateFilteredDeck(ctx context.Context, deck models.Deck) (int64, error)
	RebuildFiltered(ctx context.Context, deckID int64) (int, error)
	EmptyFiltered(ctx context.Context, deckID int64) (int, error)

	SetVersion(ctx context.Context, version int) error
	CheckDay(ctx context.Context) (bool, error)
}

type studyService struct {
	mu      sync.Mutex
	sched   *sched.Scheduler
	notes   repository.NoteRepository
	current *models.Card
}

// NewStudyService creates a new StudyService
func NewStudyService(s *sched.Scheduler, notes repository.NoteRepository) StudyService {
	return &studyService{sched: s, notes: notes}
}

func (s *studyService) Next(ctx context.Context) (*StudyCard, error) {
	log := logger.FromContext(ctx).WithPrefix("study_service")
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		card, err := s.sched.GetCard(ctx)
		if err != nil {
			log.Error("failed to get next card: %v", err)
			return nil, mapError(err)
		}
		if card == nil {
			log.Debug("nothing left to study")
			return nil, nil
		}
		s.current = card
	}
	card := *s.current

	note, err := s.notes.Get(ctx, card.NoteID)
	if err != nil {
		log.Error("failed to load note %d: %v", card.NoteID, err)
		return nil, mapError(err)
	}
	counts, err := s.sched.Counts(ctx, &card)
	if err != nil {
		return nil, mapError(err)
	}

	buttons := s.sched.AnswerButtons(card)
	intervals := make([]int64, buttons)
	for i := range intervals {
		intervals[i] = s.sched.NextInterval(card, models.Ease(i+1))
	}
	reached, elapsed, reps := s.sched.TimeboxReached()

	return &StudyCard{
		Card:      card,
		Fields:    strings.Split(note.Fields, fieldSeparator),
		Counts:    counts,
		Buttons:   buttons,
		Intervals: intervals,
		Timebox:   Timebox{Reached: reached, ElapsedSeconds: int(elapsed / time.Second), Reps: reps},
	}, nil
}

func (s *studyService) Counts(ctx context.Context) (models.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts, err := s.sched.Counts(ctx, s.current)
	if err != nil {
		return models.Counts{}, mapError(err)
	}
	return counts, nil
}

func (s *studyService) Answer(ctx context.Context, cardID int64, ease int) (*models.Card, error) {
	log := logger.FromContext(ctx).WithPrefix("study_service")
	log.Debug("answering: card_id=%d, ease=%d", cardID, ease)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.ID != cardID {
		return nil, errors.NewConflictError("card is not the one being studied")
	}
	card := *s.current
	if err := s.sched.AnswerCard(ctx, &card, models.Ease(ease)); err != nil {
		return nil, mapError(err)
	}
	s.current = nil
	return &card, nil
}

func (s *studyService) Undo(ctx context.Context) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("study_service")
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.sched.Undo(ctx)
	if err != nil {
		return 0, mapError(err)
	}
	s.current = nil
	log.Info("undid review of card %d", id)
	return id, nil
}

// batch runs a bulk card operation. The shown card is dropped afterwards
// because the queues are rebuilt.
func (s *studyService) batch(ctx context.Context, name string, fn func() (models.BatchResult, error)) (models.BatchResult, error) {
	log := logger.FromContext(ctx).WithPrefix("study_service")
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := fn()
	if err != nil {
		log.Error("%s failed: %v", name, err)
		return models.BatchResult{}, mapError(err)
	}
	s.current = nil
	log.Debug("%s: changed=%d, skipped=%d", name, len(res.Changed), len(res.Skipped))
	return res, nil
}

func (s *studyService) Suspend(ctx context.Context, ids []int64) (models.BatchResult, error) {
	return s.batch(ctx, "suspend", func() (models.BatchResult, error) { return s.sched.SuspendCards(ctx, ids) })
}

func (s *studyService) Unsuspend(ctx context.Context, ids []int64) (models.BatchResult, error) {
	return s.batch(ctx, "unsuspend", func() (models.BatchResult, error) { return s.sched.UnsuspendCards(ctx, ids) })
}

func (s *studyService) Bury(ctx context.Context, ids []int64) (models.BatchResult, error) {
	return s.batch(ctx, "bury", func() (models.BatchResult, error) { return s.sched.BuryCards(ctx, ids, true) })
}

func (s *studyService) Unbury(ctx context.Context, scope string) (models.BatchResult, error) {
	parsed, err := sched.ParseUnburyScope(scope)
	if err != nil {
		return models.BatchResult{}, errors.NewValidationError("scope", "must be all, manual or siblings")
	}
	return s.batch(ctx, "unbury", func() (models.BatchResult, error) { return s.sched.UnburyCardsForDeck(ctx, parsed) })
}

func (s *studyService) Forget(ctx context.Context, ids []int64) (models.BatchResult, error) {
	return s.batch(ctx, "forget", func() (models.BatchResult, error) { return s.sched.ForgetCards(ctx, ids) })
}

func (s *studyService) Reposition(ctx context.Context, ids []int64, start, step int64, shift bool) (models.BatchResult, error) {
	return s.batch(ctx, "reposition", func() (models.BatchResult, error) {
		return s.sched.RepositionNewCards(ctx, ids, start, step, shift)
	})
}

func (s *studyService) Reschedule(ctx context.Context, ids []int64, minDays, maxDays int) (models.BatchResult, error) {
	return s.batch(ctx, "reschedule", func() (models.BatchResult, error) {
		return s.sched.RescheduleCards(ctx, ids, minDays, maxDays)
	})
}

func (s *studyService) SetFlag(ctx context.Context, ids []int64, flag int) (models.BatchResult, error) {
	return s.batch(ctx, "set flag", func() (models.BatchResult, error) { return s.sched.SetUserFlag(ctx, ids, flag) })
}

func (s *studyService) Decks(ctx context.Context) ([]models.DeckDue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.sched.DeckDueList(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return list, nil
}

func (s *studyService) SelectDeck(ctx context.Context, deckID int64) error {
	log := logger.FromContext(ctx).WithPrefix("study_service")
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sched.SelectDeck(ctx, deckID); err != nil {
		return mapError(err)
	}
	s.current = nil
	log.Info("selected deck %d", deckID)
	return nil
}

func (s *studyService) CreateFilteredDeck(ctx context.Context, deck models.Deck) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("study_service")
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.sched.CreateFilteredDeck(ctx, deck)
	if err != nil {
		return 0, mapError(err)
	}
	log.Info("created filtered deck %d: %s", id, deck.Name)
	return id, nil
}

func (s *studyService) RebuildFiltered(ctx context.Context, deckID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.sched.RebuildFiltered(ctx, deckID)
	if err != nil {
		return 0, mapError(err)
	}
	s.current = nil
	return n, nil
}

func (s *studyService) EmptyFiltered(ctx context.Context, deckID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.sched.EmptyFiltered(ctx, deckID)
	if err != nil {
		return 0, mapError(err)
	}
	s.current = nil
	return n, nil
}

func (s *studyService) SetVersion(ctx context.Context, version int) error {
	log := logger.FromContext(ctx).WithPrefix("study_service")
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sched.ChangeSchedulerVersion(ctx, version); err != nil {
		if errors.Is(err, sched.ErrUnsupportedVersion) {
			return errors.NewUnsupportedVersionError(version)
		}
		return mapError(err)
	}
	s.current = nil
	log.Info("scheduler version is now %d", version)
	return nil
}

// CheckDay rolls the scheduler over to a new day when the cutoff has passed.
// The shown card is kept unless the day changed.
func (s *studyService) CheckDay(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rolled, err := s.sched.CheckDay(ctx)
	if err != nil {
		return false, mapError(err)
	}
	if rolled {
		s.current = nil
	}
	return rolled, nil
}
