package sched_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/sched"
	"github.com/vytor/cardsched/internal/testutil"
)

func TestChangeSchedulerVersion_ToV1AndBack(t *testing.T) {
	f := testutil.NewFixture(t)
	fresh := f.NewCard(models.DefaultDeckID, 1)
	buried := f.ReviewCard(models.DefaultDeckID, 2, 3)
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	card, err := s.GetCard(ctx)
	require.NoError(t, err)
	require.NotNil(t, card)
	require.NoError(t, s.AnswerCard(ctx, card, models.EaseGood))
	_, err = s.BuryCards(ctx, []int64{buried.ID}, true)
	require.NoError(t, err)

	require.NoError(t, s.ChangeSchedulerVersion(ctx, 1))
	assert.Equal(t, 1, s.Version())
	assert.Equal(t, 1, s.Collection().Conf.SchedVer)
	assert.NotZero(t, s.Collection().Scm)

	got := f.Card(fresh.ID)
	assert.Equal(t, models.QueueNew, got.Queue, "learning cards leave learning")
	assert.Equal(t, models.CardTypeNew, got.Type)
	assert.Equal(t, models.QueueSchedBuried, f.Card(buried.ID).Queue)

	logs, err := f.Store.Revlog().ListForCard(ctx, fresh.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.EaseHard, logs[0].Ease, "good becomes the second button")

	require.NoError(t, s.ChangeSchedulerVersion(ctx, 2))
	assert.Equal(t, 2, s.Version())
	logs, err = f.Store.Revlog().ListForCard(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EaseGood, logs[0].Ease)
}

func TestChangeSchedulerVersion_EmptiesFilteredDecks(t *testing.T) {
	f := testutil.NewFixture(t)
	rev := f.ReviewCard(models.DefaultDeckID, 5, 10)
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	did, err := s.CreateFilteredDeck(ctx, cramDeck("Cram", true, ""))
	require.NoError(t, err)
	_, err = s.RebuildFiltered(ctx, did)
	require.NoError(t, err)
	require.True(t, f.Card(rev.ID).IsFiltered())

	require.NoError(t, s.ChangeSchedulerVersion(ctx, 1))
	got := f.Card(rev.ID)
	assert.False(t, got.IsFiltered())
	assert.Equal(t, int64(5), got.Due)
}

func TestChangeSchedulerVersion_SuspendedRelearningToV1(t *testing.T) {
	f := testutil.NewFixture(t)
	nid := f.AddNote()
	relearn := f.AddCard(models.Card{
		NoteID: nid, Type: models.CardTypeRelearning, Queue: models.QueueSuspended,
		Due: 1_772_450_000, Interval: 4, Factor: 2300, Lapses: 1,
	})
	s, _ := newScheduler(t, f)

	require.NoError(t, s.ChangeSchedulerVersion(context.Background(), 1))
	got := f.Card(relearn.ID)
	assert.Equal(t, models.CardTypeReview, got.Type)
	assert.Equal(t, models.QueueSuspended, got.Queue)
	assert.Equal(t, int64(s.Today()+4), got.Due)
}

func TestChangeSchedulerVersion_Invalid(t *testing.T) {
	f := testutil.NewFixture(t)
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	assert.ErrorIs(t, s.ChangeSchedulerVersion(ctx, 3), sched.ErrUnsupportedVersion)
	assert.NoError(t, s.ChangeSchedulerVersion(ctx, 2), "same version is a no-op")
	assert.Equal(t, 2, s.Version())
}
