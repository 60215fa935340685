package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
	"github.com/vytor/cardsched/internal/repository/sqlite"
	"github.com/vytor/cardsched/internal/search"
	"github.com/vytor/cardsched/internal/testutil"
)

type CardRepositorySuite struct {
	suite.Suite
	db    *sql.DB
	store *sqlite.Store
	repo  repository.CardRepository
}

func (s *CardRepositorySuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.store = sqlite.NewStore(s.db)
	s.repo = s.store.Cards()
}

func (s *CardRepositorySuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *CardRepositorySuite) addNote(id int64, tags ...string) {
	err := s.store.Notes().Insert(context.Background(), models.Note{ID: id, GUID: "g", Tags: tags, Fields: "front\x1fback"})
	s.Require().NoError(err)
}

func (s *CardRepositorySuite) addCard(c models.Card) models.Card {
	if c.DeckID == 0 {
		c.DeckID = models.DefaultDeckID
	}
	s.Require().NoError(s.repo.Insert(context.Background(), c))
	return c
}

func (s *CardRepositorySuite) TestInsertGetUpdate() {
	ctx := context.Background()
	s.addNote(10)
	card := s.addCard(models.Card{ID: 100, NoteID: 10, Type: models.CardTypeNew, Queue: models.QueueNew, Due: 4, Factor: 2500})

	got, err := s.repo.Get(ctx, card.ID)
	s.Require().NoError(err)
	s.Assert().Equal(int64(4), got.Due)
	s.Assert().Equal(models.QueueNew, got.Queue)

	got.Queue = models.QueueReview
	got.Type = models.CardTypeReview
	got.Interval = 3
	got.Left = models.PackLeft(2, 1)
	s.Require().NoError(s.repo.Update(ctx, *got))

	again, err := s.repo.Get(ctx, card.ID)
	s.Require().NoError(err)
	s.Assert().Equal(models.QueueReview, again.Queue)
	s.Assert().Equal(3, again.Interval)
	s.Assert().Equal(1002, again.Left)
}

func (s *CardRepositorySuite) TestGetMissing() {
	_, err := s.repo.Get(context.Background(), 12345)
	s.Assert().ErrorIs(err, repository.ErrNotFound)

	err = s.repo.Update(context.Background(), models.Card{ID: 12345})
	s.Assert().ErrorIs(err, repository.ErrNotFound)
}

func (s *CardRepositorySuite) TestFilters() {
	ctx := context.Background()
	s.addNote(10)
	s.addCard(models.Card{ID: 1, NoteID: 10, Type: models.CardTypeNew, Queue: models.QueueNew, Due: 3})
	s.addCard(models.Card{ID: 2, NoteID: 10, Ord: 1, Type: models.CardTypeReview, Queue: models.QueueReview, Due: 5})
	s.addCard(models.Card{ID: 3, NoteID: 10, Ord: 2, Type: models.CardTypeReview, Queue: models.QueueReview, Due: 9})
	s.addCard(models.Card{ID: 4, NoteID: 10, Ord: 3, Type: models.CardTypeNew, Queue: models.QueueSuspended, Due: 1})

	ids, err := s.repo.IDs(ctx, repository.CardFilter{
		Queues:    []models.Queue{models.QueueReview},
		DueAtMost: ptr(int64(5)),
	})
	s.Require().NoError(err)
	s.Assert().Equal([]int64{2}, ids)

	ids, err = s.repo.IDs(ctx, repository.CardFilter{
		Types:      []models.CardType{models.CardTypeReview},
		DueAtLeast: ptr(int64(6)),
	})
	s.Require().NoError(err)
	s.Assert().Equal([]int64{3}, ids)

	ids, err = s.repo.IDs(ctx, repository.CardFilter{NoteID: 10, ExcludeID: 1, Order: repository.OrderID})
	s.Require().NoError(err)
	s.Assert().Equal([]int64{2, 3, 4}, ids)

	ids, err = s.repo.IDs(ctx, repository.CardFilter{Order: repository.OrderDueOrd, Limit: 2})
	s.Require().NoError(err)
	s.Assert().Equal([]int64{4, 1}, ids)

	n, err := s.repo.Count(ctx, repository.CardFilter{Queues: []models.Queue{models.QueueReview}, Limit: 1})
	s.Require().NoError(err)
	s.Assert().Equal(1, n, "count honours the limit")

	high, err := s.repo.MaxNewDue(ctx)
	s.Require().NoError(err)
	s.Assert().Equal(int64(3), high)
}

func (s *CardRepositorySuite) TestSumStepsToday() {
	ctx := context.Background()
	s.addNote(10)
	s.addCard(models.Card{ID: 1, NoteID: 10, Type: models.CardTypeLearning, Queue: models.QueueLearning, Due: 100, Left: 2002})
	s.addCard(models.Card{ID: 2, NoteID: 10, Ord: 1, Type: models.CardTypeLearning, Queue: models.QueueLearning, Due: 200, Left: 1001})

	n, err := s.repo.SumStepsToday(ctx, repository.CardFilter{Queues: []models.Queue{models.QueueLearning}})
	s.Require().NoError(err)
	s.Assert().Equal(3, n)

	entries, err := s.repo.DueEntries(ctx, repository.CardFilter{DueBefore: ptr(int64(150))})
	s.Require().NoError(err)
	s.Assert().Equal([]models.DueEntry{{Due: 100, ID: 1}}, entries)
}

func (s *CardRepositorySuite) TestFind() {
	ctx := context.Background()
	s.addNote(10, "verbs")
	s.addNote(11)
	s.addCard(models.Card{ID: 1, NoteID: 10, Type: models.CardTypeReview, Queue: models.QueueReview, Due: 2, Interval: 20})
	s.addCard(models.Card{ID: 2, NoteID: 11, Type: models.CardTypeReview, Queue: models.QueueReview, Due: 2, Interval: 5})
	s.addCard(models.Card{ID: 3, NoteID: 11, Ord: 1, Type: models.CardTypeNew, Queue: models.QueueSuspended, Due: 1})

	find := func(q string, order models.FilterOrder) []int64 {
		node, err := search.Parse(q)
		s.Require().NoError(err)
		ids, err := s.repo.Find(ctx, node, repository.FindOptions{Order: order, Limit: 10, Today: 2})
		s.Require().NoError(err)
		return ids
	}

	s.Assert().Equal([]int64{1}, find("tag:verbs", models.FilterOrderAdded))
	s.Assert().Equal([]int64{3}, find("is:suspended", models.FilterOrderAdded))
	s.Assert().Equal([]int64{2, 1}, find("is:due", models.FilterOrderIntervalAsc))
	s.Assert().Equal([]int64{1}, find("prop:ivl>10", models.FilterOrderAdded))
	s.Assert().ElementsMatch([]int64{1, 2}, find("-is:suspended", models.FilterOrderRandom))
	s.Assert().Equal([]int64{1, 2, 3}, find("", models.FilterOrderAdded))
}

func (s *CardRepositorySuite) TestUpdateBatchInTx() {
	ctx := context.Background()
	s.addNote(10)
	a := s.addCard(models.Card{ID: 1, NoteID: 10, Type: models.CardTypeNew, Queue: models.QueueNew, Due: 1})
	b := s.addCard(models.Card{ID: 2, NoteID: 10, Ord: 1, Type: models.CardTypeNew, Queue: models.QueueNew, Due: 2})

	a.Queue, b.Queue = models.QueueSuspended, models.QueueSuspended
	err := s.store.InTx(ctx, func(st repository.Store) error {
		return st.Cards().UpdateBatch(ctx, []models.Card{a, b})
	})
	s.Require().NoError(err)

	n, err := s.repo.Count(ctx, repository.CardFilter{Queues: []models.Queue{models.QueueSuspended}})
	s.Require().NoError(err)
	s.Assert().Equal(2, n)
}

func (s *CardRepositorySuite) TestInTxRollsBack() {
	ctx := context.Background()
	s.addNote(10)
	a := s.addCard(models.Card{ID: 1, NoteID: 10, Type: models.CardTypeNew, Queue: models.QueueNew, Due: 1})

	a.Due = 50
	err := s.store.InTx(ctx, func(st repository.Store) error {
		if err := st.Cards().Update(ctx, a); err != nil {
			return err
		}
		return repository.ErrNotFound
	})
	s.Require().ErrorIs(err, repository.ErrNotFound)

	got, err := s.repo.Get(ctx, a.ID)
	s.Require().NoError(err)
	s.Assert().Equal(int64(1), got.Due)
}

func TestCardRepositorySuite(t *testing.T) {
	suite.Run(t, new(CardRepositorySuite))
}

func ptr[T any](v T) *T { return &v }
