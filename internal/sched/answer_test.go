package sched_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/sched"
	"github.com/vytor/cardsched/internal/testutil"
)

func TestAnswerCard_NewCardGraduates(t *testing.T) {
	f := testutil.NewFixture(t)
	stored := f.NewCard(models.DefaultDeckID, 1)
	s, clock := newScheduler(t, f)
	ctx := context.Background()

	card, err := s.GetCard(ctx)
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, stored.ID, card.ID)
	assert.Equal(t, 4, s.AnswerButtons(*card))

	require.NoError(t, s.AnswerCard(ctx, card, models.EaseGood))
	assert.Equal(t, models.QueueLearning, card.Queue)
	assert.Equal(t, models.CardTypeLearning, card.Type)
	assert.Equal(t, 1, card.StepsLeft())
	assert.GreaterOrEqual(t, card.Due, testStart.Unix()+600)

	clock.Advance(15 * time.Minute)
	card, err = s.GetCard(ctx)
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, stored.ID, card.ID)

	require.NoError(t, s.AnswerCard(ctx, card, models.EaseGood))
	got := f.Card(stored.ID)
	assert.Equal(t, models.QueueReview, got.Queue)
	assert.Equal(t, models.CardTypeReview, got.Type)
	assert.Equal(t, 1, got.Interval)
	assert.Equal(t, int64(s.Today()+1), got.Due)
	assert.Equal(t, models.StartingFactor, got.Factor)
	assert.Equal(t, 2, got.Reps)

	logs, err := f.Store.Revlog().ListForCard(ctx, stored.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.RevlogLearn, logs[0].Type)
	assert.Equal(t, -600, logs[0].Interval)
	assert.Equal(t, -60, logs[0].LastInterval)
	assert.Equal(t, 1, logs[1].Interval)
	assert.Less(t, logs[0].ID, logs[1].ID)

	d, ok := s.Decks().Get(models.DefaultDeckID)
	require.True(t, ok)
	assert.Equal(t, 1, d.NewToday.Count)
}

func TestAnswerCard_EasyGraduatesEarly(t *testing.T) {
	f := testutil.NewFixture(t)
	stored := f.NewCard(models.DefaultDeckID, 1)
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	card, err := s.GetCard(ctx)
	require.NoError(t, err)
	require.NoError(t, s.AnswerCard(ctx, card, models.EaseEasy))

	got := f.Card(stored.ID)
	assert.Equal(t, models.QueueReview, got.Queue)
	assert.GreaterOrEqual(t, got.Interval, 3)
	assert.LessOrEqual(t, got.Interval, 5)
}

func TestAnswerCard_V1NewCardGraduates(t *testing.T) {
	f := testutil.NewFixture(t)
	useV1(f)
	stored := f.NewCard(models.DefaultDeckID, 1)
	s, clock := newScheduler(t, f)
	ctx := context.Background()
	require.Equal(t, 1, s.Version())

	card, err := s.GetCard(ctx)
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, 3, s.AnswerButtons(*card))

	require.NoError(t, s.AnswerCard(ctx, card, models.EaseHard))
	assert.Equal(t, models.QueueLearning, card.Queue)

	clock.Advance(20 * time.Minute)
	card, err = s.GetCard(ctx)
	require.NoError(t, err)
	require.NotNil(t, card)
	require.NoError(t, s.AnswerCard(ctx, card, models.EaseHard))

	got := f.Card(stored.ID)
	assert.Equal(t, models.QueueReview, got.Queue)
	assert.Equal(t, 1, got.Interval)
	assert.Equal(t, models.StartingFactor, got.Factor)
}

func TestAnswerButtons_V1Relearning(t *testing.T) {
	for _, tc := range []struct {
		name   string
		delays []float64
		want   int
	}{
		{"single step", []float64{10}, 2},
		{"two steps", []float64{10, 20}, 3},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := testutil.NewFixture(t)
			useV1(f)
			f.UpdateDefaultConfig(func(c *models.DeckConfig) { c.Lapse.Delays = tc.delays })
			rev := f.ReviewCard(models.DefaultDeckID, 0, 10)
			s, _ := newScheduler(t, f)
			ctx := context.Background()

			card, err := s.GetCard(ctx)
			require.NoError(t, err)
			require.NotNil(t, card)
			require.NoError(t, s.AnswerCard(ctx, card, models.EaseAgain))

			got := f.Card(rev.ID)
			require.Equal(t, models.QueueLearning, got.Queue)
			require.Equal(t, models.CardTypeReview, got.Type)
			assert.Zero(t, got.OriginalDue, "regular decks keep no due shadow")
			assert.Equal(t, tc.want, s.AnswerButtons(got))
		})
	}
}

func TestAnswerCard_InvalidEase(t *testing.T) {
	f := testutil.NewFixture(t)
	useV1(f)
	f.NewCard(models.DefaultDeckID, 1)
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	card, err := s.GetCard(ctx)
	require.NoError(t, err)
	err = s.AnswerCard(ctx, card, models.EaseEasy)
	assert.ErrorIs(t, err, sched.ErrInvalidEase)
	assert.Equal(t, models.QueueNew, f.Card(card.ID).Queue, "nothing is written")
}

func TestAnswerCard_InvalidQueue(t *testing.T) {
	f := testutil.NewFixture(t)
	stored := f.ReviewCard(models.DefaultDeckID, 0, 3)
	stored.Queue = models.QueueSuspended
	f.SetCard(stored)
	s, _ := newScheduler(t, f)

	card := f.Card(stored.ID)
	err := s.AnswerCard(context.Background(), &card, models.EaseGood)
	assert.ErrorIs(t, err, sched.ErrInvalidState)
}

func TestAnswerCard_ReviewPassed(t *testing.T) {
	f := testutil.NewFixture(t)
	stored := f.ReviewCard(models.DefaultDeckID, 0, 10)
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	card, err := s.GetCard(ctx)
	require.NoError(t, err)
	require.NotNil(t, card)
	require.NoError(t, s.AnswerCard(ctx, card, models.EaseHard))

	got := f.Card(stored.ID)
	assert.Equal(t, models.QueueReview, got.Queue)
	assert.GreaterOrEqual(t, got.Interval, 11)
	assert.Equal(t, 2350, got.Factor)
	assert.Equal(t, int64(got.Interval), got.Due)

	d, _ := s.Decks().Get(models.DefaultDeckID)
	assert.Equal(t, 1, d.RevToday.Count)
}

func TestAnswerCard_LapseEntersRelearning(t *testing.T) {
	f := testutil.NewFixture(t)
	stored := f.ReviewCard(models.DefaultDeckID, 0, 10)
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	card, err := s.GetCard(ctx)
	require.NoError(t, err)
	require.NoError(t, s.AnswerCard(ctx, card, models.EaseAgain))

	got := f.Card(stored.ID)
	assert.Equal(t, models.CardTypeRelearning, got.Type)
	assert.Equal(t, models.QueueLearning, got.Queue)
	assert.Equal(t, 1, got.Lapses)
	assert.Equal(t, 2300, got.Factor)
	assert.Equal(t, 1, got.Interval)

	logs, err := f.Store.Revlog().ListForCard(ctx, stored.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.RevlogReview, logs[0].Type)
	assert.Equal(t, -600, logs[0].Interval)
}

func TestAnswerCard_LeechIsSuspended(t *testing.T) {
	f := testutil.NewFixture(t)
	stored := f.ReviewCard(models.DefaultDeckID, 0, 10)
	stored.Lapses = 7
	f.SetCard(stored)

	var leeches []int64
	s, _ := newScheduler(t, f, sched.WithHooks(sched.Hooks{
		Leech: func(_ context.Context, c models.Card) { leeches = append(leeches, c.ID) },
	}))
	ctx := context.Background()

	card := f.Card(stored.ID)
	require.NoError(t, s.AnswerCard(ctx, &card, models.EaseAgain))

	got := f.Card(stored.ID)
	assert.Equal(t, 8, got.Lapses)
	assert.Equal(t, models.QueueSuspended, got.Queue)
	assert.Equal(t, models.CardTypeReview, got.Type)
	assert.True(t, f.Note(stored.NoteID).HasTag(models.LeechTag))
	assert.Equal(t, []int64{stored.ID}, leeches)
}

func TestAnswerCard_LeechTagOnly(t *testing.T) {
	f := testutil.NewFixture(t)
	f.UpdateDefaultConfig(func(c *models.DeckConfig) { c.Lapse.LeechAction = models.LeechTagOnly })
	stored := f.ReviewCard(models.DefaultDeckID, 0, 10)
	stored.Lapses = 11
	f.SetCard(stored)
	s, _ := newScheduler(t, f)

	card := f.Card(stored.ID)
	require.NoError(t, s.AnswerCard(context.Background(), &card, models.EaseAgain))

	got := f.Card(stored.ID)
	assert.Equal(t, 12, got.Lapses)
	assert.Equal(t, models.QueueLearning, got.Queue, "tag-only leeches keep relearning")
	assert.True(t, f.Note(stored.NoteID).HasTag(models.LeechTag))
}

func TestAnswerCard_BuriesSiblings(t *testing.T) {
	f := testutil.NewFixture(t)
	f.UpdateDefaultConfig(func(c *models.DeckConfig) { c.New.Bury = true })
	nid := f.AddNote()
	first := f.AddCard(models.Card{NoteID: nid, Type: models.CardTypeNew, Queue: models.QueueNew, Due: 1})
	second := f.AddCard(models.Card{NoteID: nid, Ord: 1, Type: models.CardTypeNew, Queue: models.QueueNew, Due: 1})
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	card, err := s.GetCard(ctx)
	require.NoError(t, err)
	require.NotNil(t, card)
	require.NoError(t, s.AnswerCard(ctx, card, models.EaseGood))

	sibling := second.ID
	if card.ID == second.ID {
		sibling = first.ID
	}
	assert.Equal(t, models.QueueSchedBuried, f.Card(sibling).Queue)

	buried, err := s.HaveBuried(ctx)
	require.NoError(t, err)
	assert.True(t, buried)
}

func TestAnswerCard_LogIDsStrictlyIncrease(t *testing.T) {
	f := testutil.NewFixture(t)
	a := f.ReviewCard(models.DefaultDeckID, 0, 5)
	b := f.ReviewCard(models.DefaultDeckID, 0, 5)
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	// The clock does not move, so both answers land in the same millisecond.
	for _, id := range []int64{a.ID, b.ID} {
		card := f.Card(id)
		require.NoError(t, s.AnswerCard(ctx, &card, models.EaseGood))
	}
	la, err := f.Store.Revlog().ListForCard(ctx, a.ID)
	require.NoError(t, err)
	lb, err := f.Store.Revlog().ListForCard(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, la, 1)
	require.Len(t, lb, 1)
	assert.Equal(t, testStart.UnixMilli(), la[0].ID)
	assert.Equal(t, la[0].ID+1, lb[0].ID)
}

func TestNextInterval(t *testing.T) {
	f := testutil.NewFixture(t)
	f.NewCard(models.DefaultDeckID, 1)
	s, _ := newScheduler(t, f)

	card, err := s.GetCard(context.Background())
	require.NoError(t, err)
	require.NotNil(t, card)

	assert.Equal(t, int64(60), s.NextInterval(*card, models.EaseAgain))
	assert.Equal(t, int64(330), s.NextInterval(*card, models.EaseHard))
	assert.Equal(t, int64(600), s.NextInterval(*card, models.EaseGood))
	assert.Equal(t, int64(4*86400), s.NextInterval(*card, models.EaseEasy))
	assert.Equal(t, models.QueueNew, card.Queue, "card is not modified")
}

func TestUndo_RestoresAnswer(t *testing.T) {
	f := testutil.NewFixture(t)
	stored := f.NewCard(models.DefaultDeckID, 1)
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	_, err := s.Undo(ctx)
	assert.ErrorIs(t, err, sched.ErrNothingToUndo)

	card, err := s.GetCard(ctx)
	require.NoError(t, err)
	require.NoError(t, s.AnswerCard(ctx, card, models.EaseGood))
	assert.True(t, s.CanUndo())

	id, err := s.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, id)
	assert.False(t, s.CanUndo())

	got := f.Card(stored.ID)
	assert.Equal(t, models.QueueNew, got.Queue)
	assert.Equal(t, models.CardTypeNew, got.Type)
	assert.Equal(t, stored.Due, got.Due)
	assert.Equal(t, 0, got.Reps)

	logs, err := f.Store.Revlog().ListForCard(ctx, stored.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)

	d, _ := s.Decks().Get(models.DefaultDeckID)
	assert.Equal(t, 0, d.NewToday.Count)

	counts, err := s.Counts(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.New)
}

func TestUndo_RemovesLeechTag(t *testing.T) {
	f := testutil.NewFixture(t)
	stored := f.ReviewCard(models.DefaultDeckID, 0, 10)
	stored.Lapses = 7
	f.SetCard(stored)
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	card := f.Card(stored.ID)
	require.NoError(t, s.AnswerCard(ctx, &card, models.EaseAgain))
	require.True(t, f.Note(stored.NoteID).HasTag(models.LeechTag))

	_, err := s.Undo(ctx)
	require.NoError(t, err)
	assert.False(t, f.Note(stored.NoteID).HasTag(models.LeechTag))
	assert.Equal(t, models.QueueReview, f.Card(stored.ID).Queue)
	assert.Equal(t, 7, f.Card(stored.ID).Lapses)
}

func TestUndo_ClearedByBulkChange(t *testing.T) {
	f := testutil.NewFixture(t)
	stored := f.ReviewCard(models.DefaultDeckID, 0, 10)
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	card := f.Card(stored.ID)
	require.NoError(t, s.AnswerCard(ctx, &card, models.EaseGood))
	_, err := s.SuspendCards(ctx, []int64{stored.ID})
	require.NoError(t, err)
	assert.False(t, s.CanUndo())
}
