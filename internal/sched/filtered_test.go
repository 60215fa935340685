package sched_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository"
	"github.com/vytor/cardsched/internal/sched"
	"github.com/vytor/cardsched/internal/search"
	"github.com/vytor/cardsched/internal/testutil"
)

func cramDeck(name string, resched bool, query string) models.Deck {
	return models.Deck{
		Name:    name,
		Resched: resched,
		Terms:   []models.FilterTerm{{Search: query, Limit: 100, Order: models.FilterOrderAdded}},
	}
}

func TestRebuildFiltered_RoundTrip(t *testing.T) {
	f := testutil.NewFixture(t)
	rev := f.ReviewCard(models.DefaultDeckID, 5, 10)
	fresh := f.NewCard(models.DefaultDeckID, 1)
	suspended := f.ReviewCard(models.DefaultDeckID, 0, 3)
	suspended.Queue = models.QueueSuspended
	f.SetCard(suspended)
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	did, err := s.CreateFilteredDeck(ctx, cramDeck("Cram", true, ""))
	require.NoError(t, err)

	n, err := s.RebuildFiltered(ctx, did)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, did, s.Collection().Conf.CurDeck, "a built deck becomes current")

	got := f.Card(rev.ID)
	assert.Equal(t, did, got.DeckID)
	assert.Equal(t, models.DefaultDeckID, got.OriginalDeckID)
	assert.Equal(t, int64(5), got.OriginalDue)
	assert.Equal(t, int64(-100000), got.Due)

	got = f.Card(fresh.ID)
	assert.Equal(t, did, got.DeckID)
	assert.Equal(t, int64(1), got.OriginalDue)
	assert.Equal(t, int64(-99999), got.Due)

	assert.Equal(t, models.DefaultDeckID, f.Card(suspended.ID).DeckID, "suspended cards stay home")

	n, err = s.EmptyFiltered(ctx, did)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	for _, want := range []models.Card{rev, fresh} {
		got := f.Card(want.ID)
		assert.Equal(t, want.DeckID, got.DeckID)
		assert.Equal(t, want.Due, got.Due)
		assert.Equal(t, want.Queue, got.Queue)
		assert.Zero(t, got.OriginalDeckID)
		assert.Zero(t, got.OriginalDue)
	}
}

func TestRebuildFiltered_RebuildReplacesCards(t *testing.T) {
	f := testutil.NewFixture(t)
	rev := f.ReviewCard(models.DefaultDeckID, 5, 10)
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	did, err := s.CreateFilteredDeck(ctx, cramDeck("Cram", true, ""))
	require.NoError(t, err)
	_, err = s.RebuildFiltered(ctx, did)
	require.NoError(t, err)
	n, err := s.RebuildFiltered(ctx, did)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(5), f.Card(rev.ID).OriginalDue, "shadow survives a rebuild")
}

func TestRebuildFiltered_EarlyReview(t *testing.T) {
	f := testutil.NewFixture(t)
	rev := f.ReviewCard(models.DefaultDeckID, 5, 10)
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	did, err := s.CreateFilteredDeck(ctx, cramDeck("Ahead", true, "prop:ivl>=5"))
	require.NoError(t, err)
	_, err = s.RebuildFiltered(ctx, did)
	require.NoError(t, err)

	card, err := s.GetCard(ctx)
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, rev.ID, card.ID)
	require.NoError(t, s.AnswerCard(ctx, card, models.EaseGood))

	got := f.Card(rev.ID)
	assert.Equal(t, models.DefaultDeckID, got.DeckID)
	assert.Zero(t, got.OriginalDeckID)
	assert.Equal(t, 12, got.Interval)
	assert.Equal(t, int64(12), got.Due)

	logs, err := f.Store.Revlog().ListForCard(ctx, rev.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.RevlogEarly, logs[0].Type)
}

func TestRebuildFiltered_PreviewDoesNotReschedule(t *testing.T) {
	f := testutil.NewFixture(t)
	fresh := f.NewCard(models.DefaultDeckID, 1)
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	did, err := s.CreateFilteredDeck(ctx, cramDeck("Preview", false, "is:new"))
	require.NoError(t, err)
	_, err = s.RebuildFiltered(ctx, did)
	require.NoError(t, err)

	card, err := s.GetCard(ctx)
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, 2, s.AnswerButtons(*card))
	require.NoError(t, s.AnswerCard(ctx, card, models.EaseHard))

	got := f.Card(fresh.ID)
	assert.Equal(t, models.DefaultDeckID, got.DeckID)
	assert.Equal(t, models.QueueNew, got.Queue)
	assert.Equal(t, int64(1), got.Due)
	assert.Equal(t, 0, got.Reps)

	logs, err := f.Store.Revlog().ListForCard(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestEmptyFiltered_LearningBecomesNew(t *testing.T) {
	f := testutil.NewFixture(t)
	fresh := f.NewCard(models.DefaultDeckID, 1)
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	did, err := s.CreateFilteredDeck(ctx, cramDeck("Cram", true, ""))
	require.NoError(t, err)
	_, err = s.RebuildFiltered(ctx, did)
	require.NoError(t, err)

	card, err := s.GetCard(ctx)
	require.NoError(t, err)
	require.NotNil(t, card)
	require.NoError(t, s.AnswerCard(ctx, card, models.EaseGood))
	require.Equal(t, models.QueueLearning, f.Card(fresh.ID).Queue)

	_, err = s.EmptyFiltered(ctx, did)
	require.NoError(t, err)
	got := f.Card(fresh.ID)
	assert.Equal(t, models.CardTypeNew, got.Type)
	assert.Equal(t, models.QueueNew, got.Queue)
	assert.Equal(t, models.DefaultDeckID, got.DeckID)
	assert.Positive(t, got.Due)
}

func TestRebuildFiltered_Errors(t *testing.T) {
	f := testutil.NewFixture(t)
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	_, err := s.RebuildFiltered(ctx, models.DefaultDeckID)
	assert.ErrorIs(t, err, sched.ErrInvalidArgument)

	_, err = s.RebuildFiltered(ctx, 424242)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	did, err := s.CreateFilteredDeck(ctx, cramDeck("Broken", true, "is:sleeping"))
	require.NoError(t, err)
	_, err = s.RebuildFiltered(ctx, did)
	assert.ErrorIs(t, err, sched.ErrInvalidArgument)
	var syntax *search.SyntaxError
	assert.True(t, errors.As(err, &syntax))

	_, err = s.CreateFilteredDeck(ctx, models.Deck{
		Name:  "Zero",
		Terms: []models.FilterTerm{{Search: "", Limit: 0}},
	})
	assert.ErrorIs(t, err, sched.ErrInvalidArgument)
}

func TestRemoveFromFiltered(t *testing.T) {
	f := testutil.NewFixture(t)
	rev := f.ReviewCard(models.DefaultDeckID, 5, 10)
	home := f.ReviewCard(models.DefaultDeckID, 5, 10)
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	did, err := s.CreateFilteredDeck(ctx, cramDeck("Cram", true, "note:"+strconv.FormatInt(rev.NoteID, 10)))
	require.NoError(t, err)
	_, err = s.RebuildFiltered(ctx, did)
	require.NoError(t, err)

	res, err := s.RemoveFromFiltered(ctx, []int64{rev.ID, home.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{rev.ID}, res.Changed)
	assert.Equal(t, "not in a filtered deck", res.Skipped[home.ID])
	assert.Equal(t, int64(5), f.Card(rev.ID).Due)
}

func TestRebuildFiltered_AfterMidnight(t *testing.T) {
	f := testutil.NewFixture(t)
	tomorrow := f.ReviewCard(models.DefaultDeckID, 1, 3)
	s, clock := newScheduler(t, f)
	ctx := context.Background()

	did, err := s.CreateFilteredDeck(ctx, cramDeck("Due", true, "is:due"))
	require.NoError(t, err)
	n, err := s.RebuildFiltered(ctx, did)
	require.NoError(t, err)
	require.Zero(t, n)

	clock.Advance(24 * time.Hour)
	n, err = s.RebuildFiltered(ctx, did)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, did, f.Card(tomorrow.ID).DeckID)
	assert.Equal(t, 1, s.Today())
}

func TestRebuildFiltered_FailedPreviewCountsUntilDue(t *testing.T) {
	f := testutil.NewFixture(t)
	fresh := f.NewCard(models.DefaultDeckID, 1)
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	deck := cramDeck("Preview", false, "is:new")
	deck.PreviewDelay = 60
	did, err := s.CreateFilteredDeck(ctx, deck)
	require.NoError(t, err)
	_, err = s.RebuildFiltered(ctx, did)
	require.NoError(t, err)

	card, err := s.GetCard(ctx)
	require.NoError(t, err)
	require.NotNil(t, card)
	require.NoError(t, s.AnswerCard(ctx, card, models.EaseAgain))
	require.Equal(t, models.QueuePreview, f.Card(fresh.ID).Queue)

	require.NoError(t, s.Reset(ctx))
	counts, err := s.Counts(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Learning, "previews an hour away are still counted")
}
