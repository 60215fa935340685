package api

import (
	"net/http"

	"github.com/vytor/cardsched/internal/errors"
	"github.com/vytor/cardsched/internal/logger"
	"github.com/vytor/cardsched/internal/models"
)

type deckDueResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	New      string `json:"new"`
	Learning string `json:"learning"`
	Review   string `json:"review"`
}

type filterTermRequest struct {
	Search string `json:"search"`
	Limit  int    `json:"limit" validate:"gte=1,lte=99999"`
	Order  int    `json:"order" validate:"gte=0,lte=8"`
}

type createFilteredRequest struct {
	Name         string              `json:"name" validate:"required"`
	Terms        []filterTermRequest `json:"terms" validate:"required,min=1,max=2,dive"`
	Resched      *bool               `json:"resched"`
	PreviewDelay int                 `json:"preview_delay" validate:"gte=0"`
}

func (req createFilteredRequest) deck() models.Deck {
	d := models.NewFilteredDeck(req.Name)
	d.Terms = make([]models.FilterTerm, len(req.Terms))
	for i, t := range req.Terms {
		d.Terms[i] = models.FilterTerm{Search: t.Search, Limit: t.Limit, Order: models.FilterOrder(t.Order)}
	}
	if req.Resched != nil {
		d.Resched = *req.Resched
	}
	if req.PreviewDelay > 0 {
		d.PreviewDelay = req.PreviewDelay
	}
	return d
}

type deckCountResponse struct {
	DeckID int64 `json:"deck_id"`
	Cards  int   `json:"cards"`
}

func (s *Server) handleDecks(w http.ResponseWriter, r *http.Request) {
	list, err := s.Study.Decks(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	out := make([]deckDueResponse, len(list))
	for i, d := range list {
		out[i] = deckDueResponse{
			ID:       d.ID,
			Name:     d.Name,
			New:      formatCount(d.New),
			Learning: formatCount(d.Learning),
			Review:   formatCount(d.Review),
		}
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleCreateFiltered(w http.ResponseWriter, r *http.Request) {
	var req createFilteredRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	id, err := s.Study.CreateFilteredDeck(r.Context(), req.deck())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]int64{"deck_id": id})
}

func (s *Server) handleSelectDeck(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := s.Study.SelectDeck(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRebuild refills a filtered deck. With ?async=1 the rebuild is queued
// on the worker pool and the response is 202.
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	id, err := idParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	if r.URL.Query().Get("async") == "1" {
		if s.Jobs == nil {
			handleError(w, r, errors.NewBadRequestError("asynchronous rebuilds are not enabled"))
			return
		}
		if err := s.Jobs.EnqueueRebuild(id); err != nil {
			log.Warn("failed to queue rebuild of deck %d: %v", id, err)
			handleError(w, r, errors.NewUnavailableError("rebuild could not be queued", err))
			return
		}
		writeJSON(w, r, http.StatusAccepted, map[string]any{"deck_id": id, "queued": true})
		return
	}

	n, err := s.Study.RebuildFiltered(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, deckCountResponse{DeckID: id, Cards: n})
}

func (s *Server) handleEmpty(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	n, err := s.Study.EmptyFiltered(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, deckCountResponse{DeckID: id, Cards: n})
}
