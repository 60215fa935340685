package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vytor/cardsched/internal/logger"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
)

type deckRepository struct {
	db DBTX
}

// NewDeckRepository creates a new DeckRepository implementation
func NewDeckRepository(db DBTX) repository.DeckRepository {
	return &deckRepository{db: db}
}

// configBlob is the JSON stored in deck_config.conf.
type configBlob struct {
	New      models.NewConfig    `json:"new"`
	Lapse    models.LapseConfig  `json:"lapse"`
	Rev      models.ReviewConfig `json:"rev"`
	MaxTaken int                 `json:"max_taken"`
}

func (r *deckRepository) List(ctx context.Context) ([]models.Deck, error) {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")

	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, conf_id, dyn, mod, usn,
       new_day, new_count, rev_day, rev_count, lrn_day, lrn_count, time_day, time_count,
       terms, resched, preview_delay, delays
FROM decks
ORDER BY name
`)
	if err != nil {
		log.Error("failed to list decks: %v", err)
		return nil, err
	}
	defer rows.Close()

	var decks []models.Deck
	for rows.Next() {
		var d models.Deck
		var terms, delays string
		var dyn, resched int
		if err := rows.Scan(&d.ID, &d.Name, &d.ConfID, &dyn, &d.Mod, &d.USN,
			&d.NewToday.Day, &d.NewToday.Count, &d.RevToday.Day, &d.RevToday.Count,
			&d.LrnToday.Day, &d.LrnToday.Count, &d.TimeToday.Day, &d.TimeToday.Count,
			&terms, &resched, &d.PreviewDelay, &delays); err != nil {
			log.Error("failed to scan deck row: %v", err)
			return nil, err
		}
		d.Dynamic = dyn != 0
		d.Resched = resched != 0
		if err := json.Unmarshal([]byte(terms), &d.Terms); err != nil {
			return nil, fmt.Errorf("deck %d terms: %w", d.ID, err)
		}
		if err := json.Unmarshal([]byte(delays), &d.Delays); err != nil {
			return nil, fmt.Errorf("deck %d delays: %w", d.ID, err)
		}
		decks = append(decks, d)
	}
	log.Debug("loaded %d decks", len(decks))
	return decks, rows.Err()
}

func encodeDeckJSON(d models.Deck) (string, string, error) {
	terms := d.Terms
	if terms == nil {
		terms = []models.FilterTerm{}
	}
	delays := d.Delays
	if delays == nil {
		delays = []float64{}
	}
	t, err := json.Marshal(terms)
	if err != nil {
		return "", "", err
	}
	dl, err := json.Marshal(delays)
	if err != nil {
		return "", "", err
	}
	return string(t), string(dl), nil
}

func (r *deckRepository) Insert(ctx context.Context, d models.Deck) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("inserting deck: name=%s, dyn=%t", d.Name, d.Dynamic)

	terms, delays, err := encodeDeckJSON(d)
	if err != nil {
		return 0, err
	}
	var id any
	if d.ID != 0 {
		id = d.ID
	}
	res, err := r.db.ExecContext(ctx, `
INSERT INTO decks (id, name, conf_id, dyn, mod, usn,
                   new_day, new_count, rev_day, rev_count, lrn_day, lrn_count, time_day, time_count,
                   terms, resched, preview_delay, delays)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, id, d.Name, d.ConfID, boolInt(d.Dynamic), d.Mod, d.USN,
		d.NewToday.Day, d.NewToday.Count, d.RevToday.Day, d.RevToday.Count,
		d.LrnToday.Day, d.LrnToday.Count, d.TimeToday.Day, d.TimeToday.Count,
		terms, boolInt(d.Resched), d.PreviewDelay, delays)
	if err != nil {
		log.Error("failed to insert deck: %v", err)
		return 0, err
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	log.Debug("deck inserted: id=%d", newID)
	return newID, nil
}

func (r *deckRepository) Update(ctx context.Context, d models.Deck) error {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("updating deck: id=%d, name=%s", d.ID, d.Name)

	terms, delays, err := encodeDeckJSON(d)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE decks
SET name = ?, conf_id = ?, dyn = ?, mod = ?, usn = ?,
    new_day = ?, new_count = ?, rev_day = ?, rev_count = ?, lrn_day = ?, lrn_count = ?, time_day = ?, time_count = ?,
    terms = ?, resched = ?, preview_delay = ?, delays = ?
WHERE id = ?
`, d.Name, d.ConfID, boolInt(d.Dynamic), d.Mod, d.USN,
		d.NewToday.Day, d.NewToday.Count, d.RevToday.Day, d.RevToday.Count,
		d.LrnToday.Day, d.LrnToday.Count, d.TimeToday.Day, d.TimeToday.Count,
		terms, boolInt(d.Resched), d.PreviewDelay, delays, d.ID)
	if err != nil {
		log.Error("failed to update deck: %v", err)
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("deck %d: %w", d.ID, repository.ErrNotFound)
	}
	return nil
}

func (r *deckRepository) ListConfigs(ctx context.Context) ([]models.DeckConfig, error) {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")

	rows, err := r.db.QueryContext(ctx, `SELECT id, name, conf, mod, usn FROM deck_config ORDER BY id`)
	if err != nil {
		log.Error("failed to list deck configs: %v", err)
		return nil, err
	}
	defer rows.Close()

	var confs []models.DeckConfig
	for rows.Next() {
		var c models.DeckConfig
		var raw string
		if err := rows.Scan(&c.ID, &c.Name, &raw, &c.Mod, &c.USN); err != nil {
			return nil, err
		}
		var blob configBlob
		if err := json.Unmarshal([]byte(raw), &blob); err != nil {
			return nil, fmt.Errorf("deck config %d: %w", c.ID, err)
		}
		c.New, c.Lapse, c.Rev, c.MaxTaken = blob.New, blob.Lapse, blob.Rev, blob.MaxTaken
		confs = append(confs, c)
	}
	return confs, rows.Err()
}

func (r *deckRepository) InsertConfig(ctx context.Context, c models.DeckConfig) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")

	raw, err := json.Marshal(configBlob{New: c.New, Lapse: c.Lapse, Rev: c.Rev, MaxTaken: c.MaxTaken})
	if err != nil {
		return 0, err
	}
	var id any
	if c.ID != 0 {
		id = c.ID
	}
	res, err := r.db.ExecContext(ctx, `
INSERT INTO deck_config (id, name, conf, mod, usn) VALUES (?, ?, ?, ?, ?)
`, id, c.Name, string(raw), c.Mod, c.USN)
	if err != nil {
		log.Error("failed to insert deck config: %v", err)
		return 0, err
	}
	return res.LastInsertId()
}

func (r *deckRepository) UpdateConfig(ctx context.Context, c models.DeckConfig) error {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")

	raw, err := json.Marshal(configBlob{New: c.New, Lapse: c.Lapse, Rev: c.Rev, MaxTaken: c.MaxTaken})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
UPDATE deck_config SET name = ?, conf = ?, mod = ?, usn = ? WHERE id = ?
`, c.Name, string(raw), c.Mod, c.USN, c.ID)
	if err != nil {
		log.Error("failed to update deck config: %v", err)
	}
	return err
}
