package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vytor/cardsched/internal/worker"
)

type funcJob struct {
	name string
	fn   func(context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Run(ctx context.Context) error { return j.fn(ctx) }

type mockMaintainer struct {
	mock.Mock
}

func (m *mockMaintainer) CheckDay(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockMaintainer) RebuildFiltered(ctx context.Context, deckID int64) (int, error) {
	args := m.Called(ctx, deckID)
	return args.Int(0), args.Error(1)
}

func TestPool_RunsJobs(t *testing.T) {
	pool := worker.NewPool(2, 4)
	pool.Start(context.Background())
	defer pool.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ran := 0
	for i := 0; i < 4; i++ {
		wg.Add(1)
		require.NoError(t, pool.Submit(funcJob{name: "count", fn: func(context.Context) error {
			defer wg.Done()
			mu.Lock()
			ran++
			mu.Unlock()
			return nil
		}}))
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("jobs did not run")
	}
	assert.Equal(t, 4, ran)
}

func TestPool_FailingJobKeepsWorkerAlive(t *testing.T) {
	pool := worker.NewPool(1, 2)
	pool.Start(context.Background())
	defer pool.Stop()

	done := make(chan struct{})
	require.NoError(t, pool.Submit(funcJob{name: "fail", fn: func(context.Context) error { return errors.New("boom") }}))
	require.NoError(t, pool.Submit(funcJob{name: "after", fn: func(context.Context) error { close(done); return nil }}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker stopped after a failing job")
	}
}

func TestPool_SubmitNeverBlocks(t *testing.T) {
	pool := worker.NewPool(1, 1)
	noop := funcJob{name: "noop", fn: func(context.Context) error { return nil }}

	require.NoError(t, pool.Submit(noop))
	assert.Equal(t, 1, pool.QueueSize())
	assert.ErrorIs(t, pool.Submit(noop), worker.ErrQueueFull)

	pool.Stop()
	pool.Stop()
	assert.ErrorIs(t, pool.Submit(noop), worker.ErrStopped)
}

func TestPool_Defaults(t *testing.T) {
	pool := worker.NewPool(0, 0)
	noop := funcJob{name: "noop", fn: func(context.Context) error { return nil }}
	for i := 0; i < 16; i++ {
		require.NoError(t, pool.Submit(noop))
	}
	assert.ErrorIs(t, pool.Submit(noop), worker.ErrQueueFull)
	pool.Stop()
}

func TestRolloverJob(t *testing.T) {
	m := new(mockMaintainer)
	m.On("CheckDay", mock.Anything).Return(true, nil).Once()
	m.On("CheckDay", mock.Anything).Return(false, errors.New("locked")).Once()

	job := &worker.RolloverJob{Study: m}
	assert.Equal(t, "day_rollover", job.Name())
	assert.NoError(t, job.Run(context.Background()))
	assert.EqualError(t, job.Run(context.Background()), "locked")
	m.AssertExpectations(t)
}

func TestRebuildFilteredJob(t *testing.T) {
	m := new(mockMaintainer)
	m.On("RebuildFiltered", mock.Anything, int64(7)).Return(12, nil)

	job := &worker.RebuildFilteredJob{Study: m, DeckID: 7}
	assert.Equal(t, "rebuild_filtered", job.Name())
	assert.NoError(t, job.Run(context.Background()))
	m.AssertExpectations(t)
}
