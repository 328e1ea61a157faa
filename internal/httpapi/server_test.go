package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/starprep/starprep/internal/coach"
	"github.com/starprep/starprep/internal/config"
	"github.com/starprep/starprep/internal/handoff"
	"github.com/starprep/starprep/internal/llm"
	"github.com/starprep/starprep/internal/profile"
	"github.com/starprep/starprep/internal/scoring"
)

func newTestServer(t *testing.T, cfg config.Config, mock *llm.MockClient) *Server {
	t.Helper()
	if mock == nil {
		mock = &llm.MockClient{}
	}
	store := handoff.NewInMemoryStore()
	profiles := profile.NewStore(profile.NewInMemoryKV())
	return New(
		cfg,
		store,
		&handoff.StoreSubmitter{Store: store, Log: zerolog.Nop()},
		scoring.NewService(mock, "gpt-4o", nil),
		coach.NewService(mock, "gpt-4o-mini", nil),
		profiles,
		nil,
		zerolog.Nop(),
	)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestMintToken(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/realtime/sessions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-durable" {
			t.Errorf("authorization = %q", got)
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["model"] != "gpt-4o-realtime-preview" {
			t.Errorf("model = %v", req["model"])
		}
		_, _ = w.Write([]byte(`{"id":"sess_1","client_secret":{"value":"ek_minted"}}`))
	}))
	defer upstream.Close()

	srv := newTestServer(t, config.Config{
		OpenAIAPIKey:  "sk-durable",
		OpenAIBaseURL: upstream.URL,
		RealtimeModel: "gpt-4o-realtime-preview",
		RealtimeVoice: "ash",
	}, nil)

	rr := doJSON(t, srv.Router(), http.MethodGet, "/v1/realtime/token", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["token"] != "ek_minted" {
		t.Errorf("token = %q", resp["token"])
	}
}

func TestMintTokenWithoutKey(t *testing.T) {
	srv := newTestServer(t, config.Config{}, nil)
	rr := doJSON(t, srv.Router(), http.MethodGet, "/v1/realtime/token", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestMintTokenUpstreamRejected(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid key"}`, http.StatusUnauthorized)
	}))
	defer upstream.Close()

	srv := newTestServer(t, config.Config{OpenAIAPIKey: "sk-bad", OpenAIBaseURL: upstream.URL}, nil)
	rr := doJSON(t, srv.Router(), http.MethodGet, "/v1/realtime/token", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestTranscriptRoundTripConsumesOnce(t *testing.T) {
	srv := newTestServer(t, config.Config{}, nil)
	router := srv.Router()

	rec := handoff.Record{
		Topic: "conflict",
		Transcript: []handoff.Entry{
			{From: handoff.FromAssistant, Text: "Tell me about a time you handled conflict."},
			{From: handoff.FromUser, Text: "Two teammates disagreed about the rollout."},
		},
		Timestamp: time.Now().UTC(),
	}
	if rr := doJSON(t, router, http.MethodPost, "/v1/interviews/s-1/transcript", rec); rr.Code != http.StatusCreated {
		t.Fatalf("save status = %d: %s", rr.Code, rr.Body.String())
	}

	rr := doJSON(t, router, http.MethodGet, "/v1/interviews/s-1/transcript", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("consume status = %d", rr.Code)
	}
	var got handoff.Record
	_ = json.Unmarshal(rr.Body.Bytes(), &got)
	if got.Topic != "conflict" || len(got.Transcript) != 2 {
		t.Errorf("record = %+v", got)
	}

	if rr := doJSON(t, router, http.MethodGet, "/v1/interviews/s-1/transcript", nil); rr.Code != http.StatusNotFound {
		t.Errorf("second read status = %d, want 404", rr.Code)
	}
}

func TestSaveTranscriptRejectsEmpty(t *testing.T) {
	srv := newTestServer(t, config.Config{}, nil)
	rr := doJSON(t, srv.Router(), http.MethodPost, "/v1/interviews/s-1/transcript", handoff.Record{Topic: "x"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func scriptedScores() map[string]llm.Response {
	out := make(map[string]llm.Response)
	for _, name := range []string{"scoreStoryStrength", "scoreStructureClarity", "scorePersonalOwnership", "scoreImpactResults", "scoreDeliveryAuthenticity"} {
		out[name] = llm.Response{FunctionCall: &llm.FunctionCall{
			Name:      name,
			Arguments: `{"score":15,"strengths":"clear","improvements":"metrics","explanation":"solid"}`,
		}}
	}
	return out
}

func TestAnalyzeBySessionID(t *testing.T) {
	srv := newTestServer(t, config.Config{}, &llm.MockClient{
		ByCall:  scriptedScores(),
		Replies: []llm.Response{{Content: "Strong story overall."}},
	})
	router := srv.Router()

	rec := handoff.Record{
		Topic:      "leadership",
		Transcript: []handoff.Entry{{From: handoff.FromUser, Text: "I led the migration."}},
		Timestamp:  time.Now().UTC(),
	}
	if rr := doJSON(t, router, http.MethodPost, "/v1/interviews/s-2/transcript", rec); rr.Code != http.StatusCreated {
		t.Fatalf("save status = %d", rr.Code)
	}

	rr := doJSON(t, router, http.MethodPost, "/v1/analyze", map[string]string{"session_id": "s-2"})
	if rr.Code != http.StatusOK {
		t.Fatalf("analyze status = %d: %s", rr.Code, rr.Body.String())
	}
	var fb scoring.Feedback
	_ = json.Unmarshal(rr.Body.Bytes(), &fb)
	if fb.TotalScore != 75 {
		t.Errorf("total = %d, want 75", fb.TotalScore)
	}
	if len(fb.CategoryScores) != 5 {
		t.Errorf("categories = %d", len(fb.CategoryScores))
	}

	// Analyzing consumed the record.
	if rr := doJSON(t, router, http.MethodPost, "/v1/analyze", map[string]string{"session_id": "s-2"}); rr.Code != http.StatusNotFound {
		t.Errorf("second analyze status = %d, want 404", rr.Code)
	}
}

func TestAnalyzeInlineTranscript(t *testing.T) {
	srv := newTestServer(t, config.Config{}, &llm.MockClient{ByCall: scriptedScores()})
	body := analyzeRequest{
		Topic:      "conflict",
		Transcript: []handoff.Entry{{From: handoff.FromUser, Text: "We disagreed."}},
	}
	rr := doJSON(t, srv.Router(), http.MethodPost, "/v1/analyze", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
}

func TestChatUsesStoredProfile(t *testing.T) {
	mock := &llm.MockClient{Replies: []llm.Response{
		{Content: `{"updatedStory":"draft","feedback":"Tighten the situation section."}`},
	}}
	srv := newTestServer(t, config.Config{}, mock)
	router := srv.Router()

	if rr := doJSON(t, router, http.MethodPut, "/v1/profile", profile.Profile{Resume: "Platform engineer"}); rr.Code != http.StatusOK {
		t.Fatalf("put profile status = %d", rr.Code)
	}

	rr := doJSON(t, router, http.MethodPost, "/v1/chat", chatRequest{
		Topic:    "conflict",
		Messages: []llm.Message{{Role: "user", Content: "Here is my story."}},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("chat status = %d: %s", rr.Code, rr.Body.String())
	}
	var reply coach.Reply
	_ = json.Unmarshal(rr.Body.Bytes(), &reply)
	if reply.Response != "Tighten the situation section." {
		t.Errorf("response = %q", reply.Response)
	}

	sys := mock.Requests[0].Messages[0].Content
	if !bytes.Contains([]byte(sys), []byte("Platform engineer")) {
		t.Error("system prompt missing stored resume")
	}
}

func TestStoryCRUD(t *testing.T) {
	srv := newTestServer(t, config.Config{}, nil)
	router := srv.Router()

	rr := doJSON(t, router, http.MethodPost, "/v1/stories", profile.Story{Title: "Migration", Topic: "leadership", Content: "I led it."})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add status = %d", rr.Code)
	}
	var story profile.Story
	_ = json.Unmarshal(rr.Body.Bytes(), &story)
	if story.ID == "" {
		t.Fatal("story id not assigned")
	}

	story.Content = "I led it end to end."
	if rr := doJSON(t, router, http.MethodPut, "/v1/stories/"+story.ID, story); rr.Code != http.StatusOK {
		t.Fatalf("update status = %d", rr.Code)
	}

	rr = doJSON(t, router, http.MethodGet, "/v1/stories", nil)
	var stories []profile.Story
	_ = json.Unmarshal(rr.Body.Bytes(), &stories)
	if len(stories) != 1 || stories[0].Content != "I led it end to end." {
		t.Errorf("stories = %+v", stories)
	}

	if rr := doJSON(t, router, http.MethodDelete, "/v1/stories/"+story.ID, nil); rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
	if rr := doJSON(t, router, http.MethodDelete, "/v1/stories/"+story.ID, nil); rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, config.Config{}, nil)
	rr := doJSON(t, srv.Router(), http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}
