package sched_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/sched"
	"github.com/vytor/cardsched/internal/testutil"
)

var testStart = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newScheduler(t *testing.T, f *testutil.Fixture, opts ...sched.Option) (*sched.Scheduler, *testutil.Clock) {
	t.Helper()
	clock := testutil.NewClock(testStart)
	base := []sched.Option{
		sched.WithClock(clock.Now),
		sched.WithLocation(time.UTC),
		sched.WithRand(rand.New(rand.NewSource(42))),
	}
	s, err := sched.New(context.Background(), f.Store, append(base, opts...)...)
	require.NoError(t, err)
	return s, clock
}

func useV1(f *testutil.Fixture) {
	f.UpdateCollection(func(c *models.Collection) { c.Conf.SchedVer = 1 })
}

func TestNew_InitialisesCreationTime(t *testing.T) {
	f := testutil.NewFixture(t)
	s, _ := newScheduler(t, f)

	assert.Equal(t, 2, s.Version())
	assert.Equal(t, 0, s.Today())
	assert.Equal(t, time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC).Unix(), s.Collection().Crt)
	assert.Equal(t, time.Date(2026, 3, 3, 4, 0, 0, 0, time.UTC).Unix(), s.DayCutoff())
}

func TestNew_UnsupportedVersion(t *testing.T) {
	f := testutil.NewFixture(t)
	f.UpdateCollection(func(c *models.Collection) { c.Conf.SchedVer = 3 })

	_, err := sched.New(context.Background(), f.Store, sched.WithClock(func() time.Time { return testStart }))
	assert.ErrorIs(t, err, sched.ErrUnsupportedVersion)
}

func TestCheckDay_RollsOver(t *testing.T) {
	f := testutil.NewFixture(t)
	s, clock := newScheduler(t, f)
	ctx := context.Background()

	rolled, err := s.CheckDay(ctx)
	require.NoError(t, err)
	assert.False(t, rolled)

	clock.Advance(24 * time.Hour)
	rolled, err = s.CheckDay(ctx)
	require.NoError(t, err)
	assert.True(t, rolled)
	assert.Equal(t, 1, s.Today())
}

func TestCounts_Idempotent(t *testing.T) {
	f := testutil.NewFixture(t)
	for i := int64(1); i <= 3; i++ {
		f.NewCard(models.DefaultDeckID, i)
	}
	f.ReviewCard(models.DefaultDeckID, 0, 5)
	f.ReviewCard(models.DefaultDeckID, 0, 8)
	f.ReviewCard(models.DefaultDeckID, 4, 5)
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	first, err := s.Counts(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, models.Counts{New: 3, Learning: 0, Review: 2}, first)

	second, err := s.Counts(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	card, err := s.GetCard(ctx)
	require.NoError(t, err)
	require.NotNil(t, card)
	withCurrent, err := s.Counts(ctx, card)
	require.NoError(t, err)
	assert.Equal(t, first, withCurrent, "the shown card is added back")
}

func TestCounts_ParentLimitCapsChild(t *testing.T) {
	f := testutil.NewFixture(t)
	parentConf := f.AddConfig("parent", func(c *models.DeckConfig) { c.New.PerDay = 5 })
	childConf := f.AddConfig("child", func(c *models.DeckConfig) { c.New.PerDay = 20 })
	parent := f.AddDeck("Parent", parentConf)
	child := f.AddDeck("Parent::Child", childConf)
	for i := int64(1); i <= 10; i++ {
		f.NewCard(child, i)
	}
	s, _ := newScheduler(t, f)
	ctx := context.Background()
	require.NoError(t, s.SelectDeck(ctx, parent))

	counts, err := s.Counts(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, counts.New)

	due, err := s.DeckDueList(ctx)
	require.NoError(t, err)
	byID := make(map[int64]models.DeckDue)
	for _, d := range due {
		byID[d.ID] = d
	}
	assert.Equal(t, 0, byID[parent].New)
	assert.Equal(t, 5, byID[child].New, "child is limited by its parent")
}

func TestGetCard_StudyOrderAndLimits(t *testing.T) {
	f := testutil.NewFixture(t)
	f.UpdateDefaultConfig(func(c *models.DeckConfig) { c.Rev.PerDay = 1 })
	f.ReviewCard(models.DefaultDeckID, 0, 3)
	f.ReviewCard(models.DefaultDeckID, 0, 3)
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	counts, err := s.Counts(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Review)

	card, err := s.GetCard(ctx)
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, models.QueueReview, card.Queue)
	require.NoError(t, s.AnswerCard(ctx, card, models.EaseGood))

	next, err := s.GetCard(ctx)
	require.NoError(t, err)
	assert.Nil(t, next, "review limit reached")
}

func TestGetCard_EmptyCollection(t *testing.T) {
	f := testutil.NewFixture(t)
	s, _ := newScheduler(t, f)

	card, err := s.GetCard(context.Background())
	require.NoError(t, err)
	assert.Nil(t, card)
}

func TestExtendLimits(t *testing.T) {
	f := testutil.NewFixture(t)
	f.UpdateDefaultConfig(func(c *models.DeckConfig) { c.New.PerDay = 1 })
	for i := int64(1); i <= 4; i++ {
		f.NewCard(models.DefaultDeckID, i)
	}
	s, _ := newScheduler(t, f)
	ctx := context.Background()

	require.NoError(t, s.ExtendLimits(ctx, 2, 0))
	counts, err := s.Counts(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.New)
}

func TestSelectDeck_Unknown(t *testing.T) {
	f := testutil.NewFixture(t)
	s, _ := newScheduler(t, f)

	err := s.SelectDeck(context.Background(), 999)
	assert.Error(t, err)
}

func TestTimebox(t *testing.T) {
	f := testutil.NewFixture(t)
	f.UpdateCollection(func(c *models.Collection) { c.Conf.TimeLim = 60 })
	s, clock := newScheduler(t, f)

	s.StartTimebox()
	reached, _, _ := s.TimeboxReached()
	assert.False(t, reached)

	clock.Advance(2 * time.Minute)
	reached, limit, _ := s.TimeboxReached()
	assert.True(t, reached)
	assert.Equal(t, time.Minute, limit)
}
