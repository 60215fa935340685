package jobs

import (
	"github.com/vytor/cardsched/internal/worker"
)

// WorkerQueue implements JobQueue using a worker pool
type WorkerQueue struct {
	pool  *worker.Pool
	study worker.Maintainer
}

// NewWorkerQueue creates a new WorkerQueue implementation
func NewWorkerQueue(pool *worker.Pool, study worker.Maintainer) JobQueue {
	return &WorkerQueue{pool: pool, study: study}
}

func (q *WorkerQueue) EnqueueRebuild(deckID int64) error {
	return q.pool.Submit(&worker.RebuildFilteredJob{Study: q.study, DeckID: deckID})
}

func (q *WorkerQueue) EnqueueRollover() error {
	return q.pool.Submit(&worker.RolloverJob{Study: q.study})
}
