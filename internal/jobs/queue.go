package jobs

// JobQueue provides an abstraction for enqueueing background jobs
type JobQueue interface {
	EnqueueRebuild(deckID int64) error
	EnqueueRollover() error
}
