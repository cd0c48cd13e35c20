package httpapi

import "net/http"

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	prefs, err := s.Prefs.Get(ctx, userID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}

func (s *Server) handlePatchPreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	var partial map[string]any
	if err := decodeJSON(r, &partial); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	prefs, err := s.Prefs.Patch(ctx, userID, partial)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleResetPreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	prefs, err := s.Prefs.Reset(ctx, userID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}
