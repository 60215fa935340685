package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vytor/cardsched/internal/logger"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
)

type collectionRepository struct {
	db DBTX
}

// NewCollectionRepository creates a new CollectionRepository implementation
func NewCollectionRepository(db DBTX) repository.CollectionRepository {
	return &collectionRepository{db: db}
}

func (r *collectionRepository) Load(ctx context.Context) (*models.Collection, error) {
	log := logger.FromContext(ctx).WithPrefix("collection_repo")

	var c models.Collection
	var server int
	var raw string
	err := r.db.QueryRowContext(ctx, `
SELECT crt, mod, scm, usn, server, conf FROM col WHERE id = 1
`).Scan(&c.Crt, &c.Mod, &c.Scm, &c.USN, &server, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection: %w", repository.ErrNotFound)
	}
	if err != nil {
		log.Error("failed to load collection: %v", err)
		return nil, err
	}
	c.Server = server != 0
	c.Conf = models.DefaultCollectionConf()
	if err := json.Unmarshal([]byte(raw), &c.Conf); err != nil {
		return nil, fmt.Errorf("collection conf: %w", err)
	}
	return &c, nil
}

func (r *collectionRepository) Save(ctx context.Context, c models.Collection) error {
	log := logger.FromContext(ctx).WithPrefix("collection_repo")

	raw, err := json.Marshal(c.Conf)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
UPDATE col SET crt = ?, mod = ?, scm = ?, usn = ?, server = ?, conf = ? WHERE id = 1
`, c.Crt, c.Mod, c.Scm, c.USN, boolInt(c.Server), string(raw))
	if err != nil {
		log.Error("failed to save collection: %v", err)
	}
	return err
}
