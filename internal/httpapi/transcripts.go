package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starprep/starprep/internal/handoff"
)

// handleSaveTranscript receives the handoff artifact from the interview
// client at session teardown.
func (s *Server) handleSaveTranscript(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	var rec handoff.Record
	if err := decodeJSON(r, &rec); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(rec.Transcript) == 0 {
		respondError(w, http.StatusBadRequest, "empty_transcript", "transcript has no entries")
		return
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	if err := s.submitter.Submit(r.Context(), id, rec); err != nil {
		s.log.Error().Err(err).Str("session_id", id).Msg("store transcript")
		respondError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

// handleConsumeTranscript hands the stored record to the scoring view.
// Reading consumes it: a second read returns 404.
func (s *Server) handleConsumeTranscript(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	rec, err := s.transcripts.Consume(r.Context(), id)
	if err != nil {
		if errors.Is(err, handoff.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "no transcript for session")
			return
		}
		respondError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rec)
}
