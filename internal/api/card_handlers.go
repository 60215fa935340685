package api

import (
	"context"
	"net/http"

	"github.com/vytor/cardsched/internal/models"
)

type idsRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}

type flagRequest struct {
	IDs  []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
	Flag int     `json:"flag" validate:"gte=0,lte=7"`
}

type rescheduleRequest struct {
	IDs     []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
	MinDays int     `json:"min_days" validate:"gte=0"`
	MaxDays int     `json:"max_days" validate:"gtefield=MinDays"`
}

type repositionRequest struct {
	IDs   []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
	Start int64   `json:"start" validate:"gte=0"`
	Step  int64   `json:"step" validate:"gte=1"`
	Shift bool    `json:"shift"`
}

// cardBatch adapts a bulk operation over card ids to a handler.
func (s *Server) cardBatch(op func(context.Context, []int64) (models.BatchResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req idsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleError(w, r, err)
			return
		}
		res, err := op(r.Context(), req.IDs)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, res)
	}
}

func (s *Server) handleFlag(w http.ResponseWriter, r *http.Request) {
	var req flagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	res, err := s.Study.SetFlag(r.Context(), req.IDs, req.Flag)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleReschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	res, err := s.Study.Reschedule(r.Context(), req.IDs, req.MinDays, req.MaxDays)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleReposition(w http.ResponseWriter, r *http.Request) {
	var req repositionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	res, err := s.Study.Reposition(r.Context(), req.IDs, req.Start, req.Step, req.Shift)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}
