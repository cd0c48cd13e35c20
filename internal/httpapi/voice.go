package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

const maxVoiceSampleSize = 2 << 20 // 2MiB, enough for any plain-text writing sample

// handleUploadVoiceSample accepts a raw text body and indexes it as a new
// writing sample blob under the user.
func (s *Server) handleUploadVoiceSample(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")

	r.Body = http.MaxBytesReader(w, r.Body, maxVoiceSampleSize)
	sampleID := uuid.NewString()
	blobKey := "voice-samples/" + userID + "/" + sampleID

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	ref, err := s.DB.Blobs.Put(ctx, blobKey, contentType, r.Body, r.ContentLength, nil)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}

	sample, err := s.DB.VoiceSamples.Create(ctx, persistence.VoiceSample{
		ID:          sampleID,
		UserID:      userID,
		BlobKey:     blobKey,
		Filename:    r.URL.Query().Get("filename"),
		ContentType: contentType,
		Size:        ref.Size,
	})
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusCreated, sample)
}

func (s *Server) handleListVoiceSamples(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	samples, err := s.DB.VoiceSamples.ListByUser(ctx, userID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"samples": samples})
}

func (s *Server) handleDeleteVoiceSample(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	sampleID := r.PathValue("sampleID")

	sample, err := s.DB.VoiceSamples.Get(ctx, userID, sampleID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	if err := s.DB.VoiceSamples.Delete(ctx, userID, sampleID); err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	if err := s.DB.Blobs.Delete(ctx, sample.BlobKey); err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAnalyzeVoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	samples, err := s.DB.VoiceSamples.ListByUser(ctx, userID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	keys := make([]string, len(samples))
	for i, sm := range samples {
		keys[i] = sm.BlobKey
	}
	profile, err := s.Voice.Analyze(ctx, userID, keys)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (s *Server) handleGetVoiceProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	profile, err := s.DB.Voice.Get(ctx, userID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}
