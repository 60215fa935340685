package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/vytor/cardsched/internal/logger"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
	"github.com/vytor/cardsched/internal/search"
)

var cardColumns = []string{
	"c.id", "c.nid", "c.did", "c.ord", "c.mod", "c.usn", "c.type", "c.queue", "c.due",
	"c.ivl", "c.factor", "c.reps", "c.lapses", "c.left_steps", "c.odue", "c.odid", "c.flags", "c.data",
}

const updateCardSQL = `
UPDATE cards
SET nid = ?, did = ?, ord = ?, mod = ?, usn = ?, type = ?, queue = ?, due = ?, ivl = ?, factor = ?,
    reps = ?, lapses = ?, left_steps = ?, odue = ?, odid = ?, flags = ?, data = ?
WHERE id = ?
`

type cardRepository struct {
	db DBTX
}

// NewCardRepository creates a new CardRepository implementation
func NewCardRepository(db DBTX) repository.CardRepository {
	return &cardRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (models.Card, error) {
	var c models.Card
	err := row.Scan(&c.ID, &c.NoteID, &c.DeckID, &c.Ord, &c.Mod, &c.USN, &c.Type, &c.Queue, &c.Due,
		&c.Interval, &c.Factor, &c.Reps, &c.Lapses, &c.Left, &c.OriginalDue, &c.OriginalDeckID, &c.Flags, &c.Data)
	return c, err
}

func updateArgs(c models.Card) []any {
	return []any{c.NoteID, c.DeckID, c.Ord, c.Mod, c.USN, c.Type, c.Queue, c.Due, c.Interval, c.Factor,
		c.Reps, c.Lapses, c.Left, c.OriginalDue, c.OriginalDeckID, c.Flags, c.Data, c.ID}
}

func (r *cardRepository) Get(ctx context.Context, id int64) (*models.Card, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("getting card: id=%d", id)

	query, args, err := sqlBuilder.Select(cardColumns...).From("cards c").Where(squirrel.Eq{"c.id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	c, err := scanCard(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("card not found: id=%d", id)
		return nil, fmt.Errorf("card %d: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		log.Error("failed to get card: %v", err)
		return nil, err
	}
	return &c, nil
}

func (r *cardRepository) Insert(ctx context.Context, c models.Card) error {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("inserting card: id=%d, nid=%d, did=%d", c.ID, c.NoteID, c.DeckID)

	_, err := r.db.ExecContext(ctx, `
INSERT INTO cards (id, nid, did, ord, mod, usn, type, queue, due, ivl, factor, reps, lapses, left_steps, odue, odid, flags, data)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, c.ID, c.NoteID, c.DeckID, c.Ord, c.Mod, c.USN, c.Type, c.Queue, c.Due, c.Interval, c.Factor,
		c.Reps, c.Lapses, c.Left, c.OriginalDue, c.OriginalDeckID, c.Flags, c.Data)
	if err != nil {
		log.Error("failed to insert card: %v", err)
	}
	return err
}

func (r *cardRepository) Update(ctx context.Context, c models.Card) error {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("updating card: id=%d, queue=%s, due=%d, ivl=%d", c.ID, c.Queue, c.Due, c.Interval)

	res, err := r.db.ExecContext(ctx, updateCardSQL, updateArgs(c)...)
	if err != nil {
		log.Error("failed to update card: %v", err)
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("card %d: %w", c.ID, repository.ErrNotFound)
	}
	return nil
}

// UpdateBatch writes every card with one prepared statement. Callers wrap it
// in Store.InTx so the batch lands atomically.
func (r *cardRepository) UpdateBatch(ctx context.Context, cards []models.Card) error {
	if len(cards) == 0 {
		return nil
	}
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("updating %d cards", len(cards))

	stmt, err := r.db.PrepareContext(ctx, updateCardSQL)
	if err != nil {
		log.Error("failed to prepare card update: %v", err)
		return err
	}
	defer stmt.Close()

	for _, c := range cards {
		if _, err := stmt.ExecContext(ctx, updateArgs(c)...); err != nil {
			log.Error("failed to update card %d: %v", c.ID, err)
			return fmt.Errorf("update card %d: %w", c.ID, err)
		}
	}
	return nil
}

func applyFilter(q squirrel.SelectBuilder, f repository.CardFilter) squirrel.SelectBuilder {
	if f.IDs != nil {
		q = q.Where(squirrel.Eq{"c.id": f.IDs})
	}
	if f.DeckIDs != nil {
		q = q.Where(squirrel.Eq{"c.did": f.DeckIDs})
	}
	if f.NoteID != 0 {
		q = q.Where(squirrel.Eq{"c.nid": f.NoteID})
	}
	if f.ExcludeID != 0 {
		q = q.Where(squirrel.NotEq{"c.id": f.ExcludeID})
	}
	if f.Queues != nil {
		q = q.Where(squirrel.Eq{"c.queue": f.Queues})
	}
	if f.Types != nil {
		q = q.Where(squirrel.Eq{"c.type": f.Types})
	}
	if f.DueBefore != nil {
		q = q.Where(squirrel.Lt{"c.due": *f.DueBefore})
	}
	if f.DueAtMost != nil {
		q = q.Where(squirrel.LtOrEq{"c.due": *f.DueAtMost})
	}
	if f.DueAtLeast != nil {
		q = q.Where(squirrel.GtOrEq{"c.due": *f.DueAtLeast})
	}
	if f.Filtered != nil {
		if *f.Filtered {
			q = q.Where(squirrel.NotEq{"c.odid": 0})
		} else {
			q = q.Where(squirrel.Eq{"c.odid": 0})
		}
	}
	switch f.Order {
	case repository.OrderID:
		q = q.OrderBy("c.id")
	case repository.OrderDueOrd:
		q = q.OrderBy("c.due", "c.ord")
	case repository.OrderDueID:
		q = q.OrderBy("c.due", "c.id")
	case repository.OrderDueRandom:
		q = q.OrderBy("c.due", "random()")
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	return q
}

func (r *cardRepository) List(ctx context.Context, filter repository.CardFilter) ([]models.Card, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")

	query, args, err := applyFilter(sqlBuilder.Select(cardColumns...).From("cards c"), filter).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list cards: %v", err)
		return nil, err
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			log.Error("failed to scan card row: %v", err)
			return nil, err
		}
		cards = append(cards, c)
	}
	log.Debug("listed %d cards", len(cards))
	return cards, rows.Err()
}

func (r *cardRepository) IDs(ctx context.Context, filter repository.CardFilter) ([]int64, error) {
	query, args, err := applyFilter(sqlBuilder.Select("c.id").From("cards c"), filter).ToSql()
	if err != nil {
		return nil, err
	}
	return r.queryIDs(ctx, query, args)
}

func (r *cardRepository) queryIDs(ctx context.Context, query string, args []any) ([]int64, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query card ids: %v", err)
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *cardRepository) DueEntries(ctx context.Context, filter repository.CardFilter) ([]models.DueEntry, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")

	query, args, err := applyFilter(sqlBuilder.Select("c.due", "c.id").From("cards c"), filter).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query due entries: %v", err)
		return nil, err
	}
	defer rows.Close()

	var out []models.DueEntry
	for rows.Next() {
		var e models.DueEntry
		if err := rows.Scan(&e.Due, &e.ID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *cardRepository) Count(ctx context.Context, filter repository.CardFilter) (int, error) {
	inner := applyFilter(sqlBuilder.Select("1").From("cards c"), filter)
	return r.scalar(ctx, sqlBuilder.Select("COUNT(*)").FromSelect(inner, "sub"))
}

func (r *cardRepository) SumStepsToday(ctx context.Context, filter repository.CardFilter) (int, error) {
	inner := applyFilter(sqlBuilder.Select("c.left_steps").From("cards c"), filter)
	return r.scalar(ctx, sqlBuilder.Select("COALESCE(SUM(left_steps / 1000), 0)").FromSelect(inner, "sub"))
}

func (r *cardRepository) scalar(ctx context.Context, b squirrel.SelectBuilder) (int, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		log.Error("failed to count cards: %v", err)
		return 0, err
	}
	return n, nil
}

func (r *cardRepository) MaxNewDue(ctx context.Context) (int64, error) {
	var due int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(due), 0) FROM cards WHERE type = ?`, models.CardTypeNew).Scan(&due)
	return due, err
}

func (r *cardRepository) Find(ctx context.Context, query search.Node, opts repository.FindOptions) ([]int64, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("searching cards: query=%v, order=%d, limit=%d", query, opts.Order, opts.Limit)

	b := sqlBuilder.Select("c.id").From("cards c").Join("notes n ON n.id = c.nid")
	if query != nil {
		where, err := compileSearch(query, opts)
		if err != nil {
			return nil, err
		}
		b = b.Where(where)
	}
	b = orderForFilter(b, opts)
	if opts.Limit > 0 {
		b = b.Limit(uint64(opts.Limit))
	}

	sqlText, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	ids, err := r.queryIDs(ctx, sqlText, args)
	if err != nil {
		return nil, err
	}
	log.Debug("search matched %d cards", len(ids))
	return ids, nil
}
