package api

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/vytor/cardsched/internal/jobs"
	"github.com/vytor/cardsched/internal/services"
)

// Pinger reports whether the collection database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	Study   services.StudyService
	Jobs    jobs.JobQueue
	DB      Pinger
	Limiter *rate.Limiter
}
