package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		if s.Limiter != nil {
			r.Use(rateLimitMiddleware(s.Limiter))
		}

		r.Get("/study/counts", s.handleCounts)
		r.Get("/study/next", s.handleNext)
		r.Post("/study/answer", s.handleAnswer)
		r.Post("/study/undo", s.handleUndo)
		r.Post("/study/unbury", s.handleUnbury)

		r.Post("/cards/suspend", s.cardBatch(s.Study.Suspend))
		r.Post("/cards/unsuspend", s.cardBatch(s.Study.Unsuspend))
		r.Post("/cards/bury", s.cardBatch(s.Study.Bury))
		r.Post("/cards/forget", s.cardBatch(s.Study.Forget))
		r.Post("/cards/flag", s.handleFlag)
		r.Post("/cards/reschedule", s.handleReschedule)
		r.Post("/cards/reposition", s.handleReposition)

		r.Get("/decks", s.handleDecks)
		r.Post("/decks/filtered", s.handleCreateFiltered)
		r.Post("/decks/{id}/select", s.handleSelectDeck)
		r.Post("/decks/{id}/rebuild", s.handleRebuild)
		r.Post("/decks/{id}/empty", s.handleEmpty)

		r.Post("/scheduler/version", s.handleVersion)
	})
	return r
}
