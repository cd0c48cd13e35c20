package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/creatorpulse/creatorpulse/internal/crawl"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

func (s *Server) handleListSourceKinds(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"kinds": s.Connectors.Kinds()})
}

func (s *Server) handleSourceKindCredentials(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	conn, ok := s.Connectors.Build(kind, "", nil, nil)
	if !ok {
		respondError(w, http.StatusNotFound, errUnknownSourceKind(kind))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"kind":                 kind,
		"required_credentials": conn.RequiredCredentials(),
		"required_config":      conn.RequiredConfig(),
	})
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	sources, err := s.DB.Sources.ListByUser(ctx, userID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	var src persistence.Source
	if err := decodeJSON(r, &src); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	src.UserID = userID
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if _, ok := s.Connectors.Build(src.Kind, src.ID, src.Config, src.Credentials); !ok {
		respondError(w, http.StatusBadRequest, errUnknownSourceKind(src.Kind))
		return
	}
	if src.Status == "" {
		src.Status = persistence.SourceStatusPending
	}
	created, err := s.DB.Sources.Create(ctx, src)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	sourceID := r.PathValue("sourceID")
	existing, err := s.DB.Sources.Get(ctx, userID, sourceID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	var patch persistence.Source
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	patch.ID = existing.ID
	patch.UserID = existing.UserID
	if patch.Status == "" {
		patch.Status = existing.Status
	}
	updated, err := s.DB.Sources.Update(ctx, patch)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	sourceID := r.PathValue("sourceID")
	if err := s.DB.Sources.Delete(ctx, userID, sourceID); err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSyncSource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	sourceID := r.PathValue("sourceID")
	fetched, newCount, err := s.Crawler.SyncSource(ctx, userID, sourceID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items_fetched": fetched, "items_new": newCount})
}

func (s *Server) handleReactivateSource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	sourceID := r.PathValue("sourceID")
	if err := crawl.ReactivateSource(ctx, s.DB.Sources, userID, sourceID); err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"reactivated": true})
}

func (s *Server) handleReactivateAllSources(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	count, err := crawl.ReactivateAllFailed(ctx, s.DB.Sources, userID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"reactivated_count": count})
}

type errUnknownSourceKindT struct{ kind string }

func (e errUnknownSourceKindT) Error() string { return "httpapi: unknown source kind: " + e.kind }

func errUnknownSourceKind(kind string) error { return errUnknownSourceKindT{kind: kind} }
