// Package httpapi exposes the backend surface: credential minting for the
// realtime client, transcript handoff storage, scoring, coach chat, and
// the profile/story CRUD the web app uses.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/starprep/starprep/internal/coach"
	"github.com/starprep/starprep/internal/config"
	"github.com/starprep/starprep/internal/handoff"
	"github.com/starprep/starprep/internal/observability"
	"github.com/starprep/starprep/internal/profile"
	"github.com/starprep/starprep/internal/scoring"
)

type Server struct {
	cfg         config.Config
	transcripts handoff.Store
	submitter   handoff.Submitter
	scoring     *scoring.Service
	coach       *coach.Service
	profiles    *profile.Store
	metrics     *observability.Metrics
	log         zerolog.Logger
	httpClient  *http.Client
}

func New(cfg config.Config, transcripts handoff.Store, submitter handoff.Submitter, scoringSvc *scoring.Service, coachSvc *coach.Service, profiles *profile.Store, metrics *observability.Metrics, log zerolog.Logger) *Server {
	return &Server{
		cfg:         cfg,
		transcripts: transcripts,
		submitter:   submitter,
		scoring:     scoringSvc,
		coach:       coachSvc,
		profiles:    profiles,
		metrics:     metrics,
		log:         log,
		httpClient:  &http.Client{},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/realtime/token", s.handleMintToken)
	r.Post("/v1/interviews/{id}/transcript", s.handleSaveTranscript)
	r.Get("/v1/interviews/{id}/transcript", s.handleConsumeTranscript)
	r.Post("/v1/analyze", s.handleAnalyze)
	r.Post("/v1/chat", s.handleChat)

	r.Get("/v1/profile", s.handleGetProfile)
	r.Put("/v1/profile", s.handlePutProfile)
	r.Get("/v1/stories", s.handleListStories)
	r.Post("/v1/stories", s.handleAddStory)
	r.Put("/v1/stories/{id}", s.handleUpdateStory)
	r.Delete("/v1/stories/{id}", s.handleRemoveStory)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "ready",
		"upstream_key_set": s.cfg.OpenAIAPIKey != "",
	})
}

// userID resolves which profile a request operates on. The app is
// single-user by default; a user query parameter allows more.
func userID(r *http.Request) string {
	if u := strings.TrimSpace(r.URL.Query().Get("user")); u != "" {
		return u
	}
	return "default"
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
