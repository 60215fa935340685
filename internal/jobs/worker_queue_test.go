package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/cardsched/internal/jobs"
	"github.com/vytor/cardsched/internal/worker"
)

type recorder struct {
	rebuilt chan int64
	checked chan struct{}
}

func (r *recorder) CheckDay(context.Context) (bool, error) {
	r.checked <- struct{}{}
	return false, nil
}

func (r *recorder) RebuildFiltered(_ context.Context, deckID int64) (int, error) {
	r.rebuilt <- deckID
	return 0, nil
}

func TestWorkerQueue(t *testing.T) {
	rec := &recorder{rebuilt: make(chan int64, 1), checked: make(chan struct{}, 1)}
	pool := worker.NewPool(1, 4)
	pool.Start(context.Background())
	defer pool.Stop()

	q := jobs.NewWorkerQueue(pool, rec)
	require.NoError(t, q.EnqueueRebuild(5))
	require.NoError(t, q.EnqueueRollover())

	select {
	case id := <-rec.rebuilt:
		assert.Equal(t, int64(5), id)
	case <-time.After(5 * time.Second):
		t.Fatal("rebuild did not run")
	}
	select {
	case <-rec.checked:
	case <-time.After(5 * time.Second):
		t.Fatal("rollover did not run")
	}
}

func TestWorkerQueue_Stopped(t *testing.T) {
	pool := worker.NewPool(1, 1)
	pool.Stop()

	q := jobs.NewWorkerQueue(pool, &recorder{})
	assert.ErrorIs(t, q.EnqueueRollover(), worker.ErrStopped)
}
