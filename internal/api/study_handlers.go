package api

import (
	"net/http"

	"github.com/vytor/cardsched/internal/logger"
	"github.com/vytor/cardsched/internal/services"
)

type nextResponse struct {
	Finished bool                `json:"finished"`
	Card     *services.StudyCard `json:"card,omitempty"`
	Counts   countsResponse      `json:"counts"`
}

type answerRequest struct {
	CardID int64 `json:"card_id" validate:"required,gt=0"`
	Ease   int   `json:"ease" validate:"required,gte=1,lte=4"`
}

type unburyRequest struct {
	Scope string `json:"scope" validate:"omitempty,oneof=all manual siblings"`
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.Study.Counts(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newCountsResponse(counts))
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	card, err := s.Study.Next(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	if card == nil {
		counts, err := s.Study.Counts(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, nextResponse{Finished: true, Counts: newCountsResponse(counts)})
		return
	}
	writeJSON(w, r, http.StatusOK, nextResponse{Card: card, Counts: newCountsResponse(card.Counts)})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	card, err := s.Study.Answer(r.Context(), req.CardID, req.Ease)
	if err != nil {
		handleError(w, r, err)
		return
	}
	log.Debug("answered card %d with ease %d", req.CardID, req.Ease)
	writeJSON(w, r, http.StatusOK, card)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	id, err := s.Study.Undo(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]int64{"card_id": id})
}

func (s *Server) handleUnbury(w http.ResponseWriter, r *http.Request) {
	var req unburyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	res, err := s.Study.Unbury(r.Context(), req.Scope)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}
