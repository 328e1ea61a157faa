package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starprep/starprep/internal/profile"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	prof, err := s.profiles.Get(r.Context(), userID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, prof)
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var prof profile.Profile
	if err := decodeJSON(r, &prof); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.profiles.Put(r.Context(), userID(r), prof); err != nil {
		respondError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, prof)
}

func (s *Server) handleListStories(w http.ResponseWriter, r *http.Request) {
	stories, err := s.profiles.Stories(r.Context(), userID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}
	if stories == nil {
		stories = []profile.Story{}
	}
	respondJSON(w, http.StatusOK, stories)
}

func (s *Server) handleAddStory(w http.ResponseWriter, r *http.Request) {
	var story profile.Story
	if err := decodeJSON(r, &story); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(story.Content) == "" {
		respondError(w, http.StatusBadRequest, "empty_story", "story content is required")
		return
	}

	saved, err := s.profiles.AddStory(r.Context(), userID(r), story)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleUpdateStory(w http.ResponseWriter, r *http.Request) {
	var story profile.Story
	if err := decodeJSON(r, &story); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	story.ID = chi.URLParam(r, "id")

	saved, err := s.profiles.UpdateStory(r.Context(), userID(r), story)
	if err != nil {
		if errors.Is(err, profile.ErrStoryNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "story not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, saved)
}

func (s *Server) handleRemoveStory(w http.ResponseWriter, r *http.Request) {
	err := s.profiles.RemoveStory(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, profile.ErrStoryNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "story not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
