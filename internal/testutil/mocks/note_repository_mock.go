package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/cardsched/internal/models"
)

// MockNoteRepository is a mock implementation of repository.NoteRepository
type MockNoteRepository struct {
	mock.Mock
}

func (m *MockNoteRepository) Get(ctx context.Context, id int64) (*models.Note, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Note), args.Error(1)
}

func (m *MockNoteRepository) Insert(ctx context.Context, note models.Note) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}

func (m *MockNoteRepository) UpdateTags(ctx context.Context, note models.Note) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}
