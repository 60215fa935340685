package api

import (
	"net/http"
)

type versionRequest struct {
	Version int `json:"version" validate:"required"`
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	var req versionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if err := s.Study.SetVersion(r.Context(), req.Version); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]int{"version": req.Version})
}
