package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/starprep/starprep/internal/handoff"
)

type analyzeRequest struct {
	// SessionID consumes a stored handoff record. Alternatively the
	// transcript may be sent inline.
	SessionID  string          `json:"session_id"`
	Topic      string          `json:"topic"`
	Transcript []handoff.Entry `json:"transcript"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	topic := req.Topic
	transcript := req.Transcript
	if sid := strings.TrimSpace(req.SessionID); sid != "" {
		rec, err := s.transcripts.Consume(r.Context(), sid)
		if err != nil {
			if errors.Is(err, handoff.ErrNotFound) {
				respondError(w, http.StatusNotFound, "not_found", "no transcript for session")
				return
			}
			respondError(w, http.StatusInternalServerError, "store_failed", err.Error())
			return
		}
		topic = rec.Topic
		transcript = rec.Transcript
	}
	if len(transcript) == 0 {
		respondError(w, http.StatusBadRequest, "empty_transcript", "nothing to analyze")
		return
	}

	feedback, err := s.scoring.Analyze(r.Context(), topic, transcript)
	if err != nil {
		s.log.Error().Err(err).Msg("scoring failed")
		respondError(w, http.StatusBadGateway, "scoring_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, feedback)
}
