package sqlite

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/vytor/cardsched/internal/logger"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
)

type revlogRepository struct {
	db DBTX
}

// NewRevlogRepository creates a new RevlogRepository implementation
func NewRevlogRepository(db DBTX) repository.RevlogRepository {
	return &revlogRepository{db: db}
}

func (r *revlogRepository) Insert(ctx context.Context, e models.ReviewLog) error {
	log := logger.FromContext(ctx).WithPrefix("revlog_repo")
	log.Debug("inserting review log: id=%d, card_id=%d, ease=%d, type=%s", e.ID, e.CardID, e.Ease, e.Type)

	_, err := r.db.ExecContext(ctx, `
INSERT INTO revlog (id, cid, usn, ease, ivl, last_ivl, factor, time, type)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, e.ID, e.CardID, e.USN, e.Ease, e.Interval, e.LastInterval, e.Factor, e.TimeTaken, e.Type)
	if err != nil {
		log.Error("failed to insert review log: %v", err)
	}
	return err
}

func (r *revlogRepository) ListForCard(ctx context.Context, cardID int64) ([]models.ReviewLog, error) {
	log := logger.FromContext(ctx).WithPrefix("revlog_repo")

	rows, err := r.db.QueryContext(ctx, `
SELECT id, cid, usn, ease, ivl, last_ivl, factor, time, type
FROM revlog
WHERE cid = ?
ORDER BY id
`, cardID)
	if err != nil {
		log.Error("failed to list review logs: %v", err)
		return nil, err
	}
	defer rows.Close()

	var out []models.ReviewLog
	for rows.Next() {
		var e models.ReviewLog
		if err := rows.Scan(&e.ID, &e.CardID, &e.USN, &e.Ease, &e.Interval, &e.LastInterval, &e.Factor, &e.TimeTaken, &e.Type); err != nil {
			log.Error("failed to scan review log: %v", err)
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *revlogRepository) DeleteLatestForCard(ctx context.Context, cardID int64) error {
	log := logger.FromContext(ctx).WithPrefix("revlog_repo")
	log.Debug("deleting latest review log: card_id=%d", cardID)

	_, err := r.db.ExecContext(ctx, `
DELETE FROM revlog WHERE id = (SELECT MAX(id) FROM revlog WHERE cid = ?)
`, cardID)
	if err != nil {
		log.Error("failed to delete review log: %v", err)
	}
	return err
}

func (r *revlogRepository) MaxID(ctx context.Context) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM revlog`).Scan(&id)
	return id, err
}

func (r *revlogRepository) ShiftEase(ctx context.Context, eases []models.Ease, delta int) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("revlog_repo")

	query, args, err := sqlBuilder.Update("revlog").
		Set("ease", squirrel.Expr("ease + ?", delta)).
		Where(squirrel.Eq{
			"ease": eases,
			"type": []models.RevlogType{models.RevlogLearn, models.RevlogRelearn},
		}).
		ToSql()
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to remap review log eases: %v", err)
		return 0, err
	}
	n, _ := res.RowsAffected()
	log.Info("remapped %d review log eases by %+d", n, delta)
	return n, nil
}
