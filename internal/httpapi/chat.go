package httpapi

import (
	"net/http"

	"github.com/starprep/starprep/internal/llm"
)

type chatRequest struct {
	Topic    string        `json:"topic"`
	Messages []llm.Message `json:"messages"`
}

// handleChat runs one coach turn: the stored profile plus the topic shape
// the system prompt, the caller supplies the conversation so far.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.Messages) == 0 {
		respondError(w, http.StatusBadRequest, "empty_messages", "messages are required")
		return
	}

	prof, err := s.profiles.Get(r.Context(), userID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}

	reply, err := s.coach.Respond(r.Context(), req.Messages, prof, req.Topic)
	if err != nil {
		s.log.Error().Err(err).Msg("coach chat failed")
		respondError(w, http.StatusBadGateway, "chat_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, reply)
}
