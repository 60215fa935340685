package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
	"github.com/vytor/cardsched/internal/repository/sqlite"
	"github.com/vytor/cardsched/internal/testutil"
)

type CollectionRepositorySuite struct {
	suite.Suite
	db    *sql.DB
	store *sqlite.Store
}

func (s *CollectionRepositorySuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.store = sqlite.NewStore(s.db)
}

func (s *CollectionRepositorySuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *CollectionRepositorySuite) TestDefaultsSeeded() {
	ctx := context.Background()

	col, err := s.store.Collection().Load(ctx)
	s.Require().NoError(err)
	s.Assert().Equal(2, col.Conf.SchedVer)
	s.Assert().Equal(4, col.Conf.Rollover)
	s.Assert().Equal([]int64{models.DefaultDeckID}, col.Conf.ActiveDecks)

	decks, err := s.store.Decks().List(ctx)
	s.Require().NoError(err)
	s.Require().Len(decks, 1)
	s.Assert().Equal("Default", decks[0].Name)

	confs, err := s.store.Decks().ListConfigs(ctx)
	s.Require().NoError(err)
	s.Require().Len(confs, 1)
	s.Assert().Equal([]float64{1, 10}, confs[0].New.Delays)
	s.Assert().Equal(8, confs[0].Lapse.LeechFails)
	s.Assert().NoError(confs[0].Validate())
}

func (s *CollectionRepositorySuite) TestConfigIgnoresRetiredKeys() {
	ctx := context.Background()
	raw := `{"new":{"delays":[2],"ints":[1,4,7],"initial_factor":2500,"per_day":30},` +
		`"lapse":{"delays":[10],"min_int":1,"leech_fails":8},` +
		`"rev":{"per_day":100,"ease4":1.3,"fuzz":0.05,"ivl_fct":1,"max_ivl":36500,"hard_factor":1.2},"max_taken":60}`
	_, err := s.db.ExecContext(ctx, `INSERT INTO deck_config (id, name, conf, mod, usn) VALUES (5, 'Old', ?, 0, 0)`, raw)
	s.Require().NoError(err)

	confs, err := s.store.Decks().ListConfigs(ctx)
	s.Require().NoError(err)
	var old *models.DeckConfig
	for i := range confs {
		if confs[i].ID == 5 {
			old = &confs[i]
		}
	}
	s.Require().NotNil(old)
	s.Assert().Equal(100, old.Rev.PerDay)
	s.Assert().Equal([]float64{2}, old.New.Delays)
	s.Assert().NoError(old.Validate())
}

func (s *CollectionRepositorySuite) TestCollectionSave() {
	ctx := context.Background()
	col, err := s.store.Collection().Load(ctx)
	s.Require().NoError(err)

	col.Crt = 1_700_000_000
	col.Conf.CurDeck = 7
	col.Conf.NextPos = 42
	s.Require().NoError(s.store.Collection().Save(ctx, *col))

	again, err := s.store.Collection().Load(ctx)
	s.Require().NoError(err)
	s.Assert().Equal(int64(1_700_000_000), again.Crt)
	s.Assert().Equal(int64(7), again.Conf.CurDeck)
	s.Assert().Equal(int64(42), again.Conf.NextPos)
}

func (s *CollectionRepositorySuite) TestFilteredDeckRoundTrip() {
	ctx := context.Background()
	d := models.NewFilteredDeck("Cram")
	d.Delays = []float64{5}
	d.Terms = []models.FilterTerm{{Search: "is:due", Limit: 50, Order: models.FilterOrderDue}}

	id, err := s.store.Decks().Insert(ctx, d)
	s.Require().NoError(err)

	d.ID = id
	d.NewToday = models.DayCount{Day: 3, Count: 2}
	s.Require().NoError(s.store.Decks().Update(ctx, d))

	decks, err := s.store.Decks().List(ctx)
	s.Require().NoError(err)
	var got *models.Deck
	for i := range decks {
		if decks[i].ID == id {
			got = &decks[i]
		}
	}
	s.Require().NotNil(got)
	s.Assert().True(got.Dynamic)
	s.Assert().True(got.Resched)
	s.Assert().Equal(d.Terms, got.Terms)
	s.Assert().Equal([]float64{5}, got.Delays)
	s.Assert().Equal(models.DayCount{Day: 3, Count: 2}, got.NewToday)

	err = s.store.Decks().Update(ctx, models.Deck{ID: 999, Name: "missing"})
	s.Assert().ErrorIs(err, repository.ErrNotFound)
}

func (s *CollectionRepositorySuite) TestRevlog() {
	ctx := context.Background()
	revlog := s.store.Revlog()

	entries := []models.ReviewLog{
		{ID: 1, CardID: 5, Ease: models.EaseGood, Interval: -600, LastInterval: -60, Type: models.RevlogLearn},
		{ID: 2, CardID: 5, Ease: models.EaseEasy, Interval: 4, LastInterval: -600, Type: models.RevlogLearn},
		{ID: 3, CardID: 5, Ease: models.EaseGood, Interval: 10, LastInterval: 4, Type: models.RevlogReview},
	}
	for _, e := range entries {
		s.Require().NoError(revlog.Insert(ctx, e))
	}

	maxID, err := revlog.MaxID(ctx)
	s.Require().NoError(err)
	s.Assert().Equal(int64(3), maxID)

	n, err := revlog.ShiftEase(ctx, []models.Ease{models.EaseGood, models.EaseEasy}, -1)
	s.Require().NoError(err)
	s.Assert().Equal(int64(2), n, "only learning answers are remapped")

	s.Require().NoError(revlog.DeleteLatestForCard(ctx, 5))
	got, err := revlog.ListForCard(ctx, 5)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Assert().Equal(models.EaseHard, got[0].Ease)
	s.Assert().Equal(models.EaseGood, got[1].Ease)
}

func (s *CollectionRepositorySuite) TestNoteTags() {
	ctx := context.Background()
	notes := s.store.Notes()
	s.Require().NoError(notes.Insert(ctx, models.Note{ID: 9, GUID: "x", Tags: []string{"verbs"}}))

	n, err := notes.Get(ctx, 9)
	s.Require().NoError(err)
	s.Require().True(n.AddTag(models.LeechTag))
	s.Require().NoError(notes.UpdateTags(ctx, *n))

	n, err = notes.Get(ctx, 9)
	s.Require().NoError(err)
	s.Assert().Equal([]string{"verbs", "leech"}, n.Tags)

	_, err = notes.Get(ctx, 10)
	s.Assert().ErrorIs(err, repository.ErrNotFound)
}

func TestCollectionRepositorySuite(t *testing.T) {
	suite.Run(t, new(CollectionRepositorySuite))
}
