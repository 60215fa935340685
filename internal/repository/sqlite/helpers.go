package sqlite

import (
	"context"
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/vytor/cardsched/internal/logger"
	"github.com/vytor/cardsched/internal/repository"
)

var sqlBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Store is the SQLite implementation of repository.Store.
type Store struct {
	db *sql.DB
	q  DBTX
}

// NewStore wraps an open collection database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Cards() repository.CardRepository             { return NewCardRepository(s.q) }
func (s *Store) Revlog() repository.RevlogRepository          { return NewRevlogRepository(s.q) }
func (s *Store) Notes() repository.NoteRepository             { return NewNoteRepository(s.q) }
func (s *Store) Decks() repository.DeckRepository             { return NewDeckRepository(s.q) }
func (s *Store) Collection() repository.CollectionRepository { return NewCollectionRepository(s.q) }

// InTx runs fn in a transaction. Calls nested inside an open transaction
// join it instead of starting a new one.
func (s *Store) InTx(ctx context.Context, fn func(repository.Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}
	return tx(ctx, s.db, func(t *sql.Tx) error {
		return fn(&Store{db: s.db, q: t})
	})
}

func tx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	log := logger.FromContext(ctx).WithPrefix("repo")
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction: %v", err)
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		log.Debug("transaction rolled back due to error: %v", err)
		return err
	}
	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction: %v", err)
		return err
	}
	log.Debug("transaction committed")
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
