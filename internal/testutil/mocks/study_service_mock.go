package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/services"
)

// MockStudyService is a mock implementation of services.StudyService
type MockStudyService struct {
	mock.Mock
}

func (m *MockStudyService) Next(ctx context.Context) (*services.StudyCard, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.StudyCard), args.Error(1)
}

func (m *MockStudyService) Counts(ctx context.Context) (models.Counts, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Counts), args.Error(1)
}

func (m *MockStudyService) Answer(ctx context.Context, cardID int64, ease int) (*models.Card, error) {
	args := m.Called(ctx, cardID, ease)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Card), args.Error(1)
}

func (m *MockStudyService) Undo(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStudyService) batch(args mock.Arguments) (models.BatchResult, error) {
	return args.Get(0).(models.BatchResult), args.Error(1)
}

func (m *MockStudyService) Suspend(ctx context.Context, ids []int64) (models.BatchResult, error) {
	return m.batch(m.Called(ctx, ids))
}

func (m *MockStudyService) Unsuspend(ctx context.Context, ids []int64) (models.BatchResult, error) {
	return m.batch(m.Called(ctx, ids))
}

func (m *MockStudyService) Bury(ctx context.Context, ids []int64) (models.BatchResult, error) {
	return m.batch(m.Called(ctx, ids))
}

func (m *MockStudyService) Unbury(ctx context.Context, scope string) (models.BatchResult, error) {
	return m.batch(m.Called(ctx, scope))
}

func (m *MockStudyService) Forget(ctx context.Context, ids []int64) (models.BatchResult, error) {
	return m.batch(m.Called(ctx, ids))
}

func (m *MockStudyService) Reposition(ctx context.Context, ids []int64, start, step int64, shift bool) (models.BatchResult, error) {
	return m.batch(m.Called(ctx, ids, start, step, shift))
}

func (m *MockStudyService) Reschedule(ctx context.Context, ids []int64, minDays, maxDays int) (models.BatchResult, error) {
	return m.batch(m.Called(ctx, ids, minDays, maxDays))
}

func (m *MockStudyService) SetFlag(ctx context.Context, ids []int64, flag int) (models.BatchResult, error) {
	return m.batch(m.Called(ctx, ids, flag))
}

func (m *MockStudyService) Decks(ctx context.Context) ([]models.DeckDue, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DeckDue), args.Error(1)
}

func (m *MockStudyService) SelectDeck(ctx context.Context, deckID int64) error {
	args := m.Called(ctx, deckID)
	return args.Error(0)
}

func (m *MockStudyService) CreateFilteredDeck(ctx context.Context, deck models.Deck) (int64, error) {
	args := m.Called(ctx, deck)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStudyService) RebuildFiltered(ctx context.Context, deckID int64) (int, error) {
	args := m.Called(ctx, deckID)
	return args.Int(0), args.Error(1)
}

func (m *MockStudyService) EmptyFiltered(ctx context.Context, deckID int64) (int, error) {
	args := m.Called(ctx, deckID)
	return args.Int(0), args.Error(1)
}

func (m *MockStudyService) SetVersion(ctx context.Context, version int) error {
	args := m.Called(ctx, version)
	return args.Error(0)
}

func (m *MockStudyService) CheckDay(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}
