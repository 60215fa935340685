package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vytor/cardsched/internal/logger"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
)

type noteRepository struct {
	db DBTX
}

// NewNoteRepository creates a new NoteRepository implementation
func NewNoteRepository(db DBTX) repository.NoteRepository {
	return &noteRepository{db: db}
}

func (r *noteRepository) Get(ctx context.Context, id int64) (*models.Note, error) {
	log := logger.FromContext(ctx).WithPrefix("note_repo")

	var n models.Note
	var tags string
	err := r.db.QueryRowContext(ctx, `
SELECT id, guid, mid, mod, usn, tags, flds FROM notes WHERE id = ?
`, id).Scan(&n.ID, &n.GUID, &n.ModelID, &n.Mod, &n.USN, &tags, &n.Fields)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("note not found: id=%d", id)
		return nil, fmt.Errorf("note %d: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		log.Error("failed to get note: %v", err)
		return nil, err
	}
	n.Tags = models.SplitTags(tags)
	return &n, nil
}

func (r *noteRepository) Insert(ctx context.Context, n models.Note) error {
	log := logger.FromContext(ctx).WithPrefix("note_repo")
	log.Debug("inserting note: id=%d", n.ID)

	_, err := r.db.ExecContext(ctx, `
INSERT INTO notes (id, guid, mid, mod, usn, tags, flds) VALUES (?, ?, ?, ?, ?, ?, ?)
`, n.ID, n.GUID, n.ModelID, n.Mod, n.USN, models.JoinTags(n.Tags), n.Fields)
	if err != nil {
		log.Error("failed to insert note: %v", err)
	}
	return err
}

func (r *noteRepository) UpdateTags(ctx context.Context, n models.Note) error {
	log := logger.FromContext(ctx).WithPrefix("note_repo")
	log.Debug("updating note tags: id=%d, tags=%v", n.ID, n.Tags)

	_, err := r.db.ExecContext(ctx, `
UPDATE notes SET tags = ?, mod = ?, usn = ? WHERE id = ?
`, models.JoinTags(n.Tags), n.Mod, n.USN, n.ID)
	if err != nil {
		log.Error("failed to update note tags: %v", err)
	}
	return err
}
