package worker

import (
	"context"

	"github.com/vytor/cardsched/internal/logger"
)

// Maintainer is the part of the study service that maintenance jobs use.
// It is declared here so that this package does not import services.
type Maintainer interface {
	CheckDay(ctx context.Context) (bool, error)
	RebuildFiltered(ctx context.Context, deckID int64) (int, error)
}

// RolloverJob moves the collection to a new day once the cutoff has passed.
type RolloverJob struct {
	Study Maintainer
}

func (j *RolloverJob) Name() string { return "day_rollover" }

func (j *RolloverJob) Run(ctx context.Context) error {
	rolled, err := j.Study.CheckDay(ctx)
	if err != nil {
		return err
	}
	if rolled {
		logger.FromContext(ctx).Info("rolled over to a new day")
	}
	return nil
}

// RebuildFilteredJob refills a filtered deck in the background.
type RebuildFilteredJob struct {
	Study  Maintainer
	DeckID int64
}

func (j *RebuildFilteredJob) Name() string { return "rebuild_filtered" }

func (j *RebuildFilteredJob) Run(ctx context.Context) error {
	n, err := j.Study.RebuildFiltered(ctx, j.DeckID)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("rebuilt filtered deck %d with %d cards", j.DeckID, n)
	return nil
}
