// Package coach implements the text practice chat: a profile- and
// topic-aware conversation that refines the user's behavioral story turn
// by turn.
package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/starprep/starprep/internal/llm"
	"github.com/starprep/starprep/internal/observability"
	"github.com/starprep/starprep/internal/profile"
)

// Reply carries the coach's feedback plus the running improved story.
// UpdatedStory is empty when the model did not return structured output.
type Reply struct {
	Response     string `json:"response"`
	UpdatedStory string `json:"updatedStory,omitempty"`
}

type Service struct {
	client  llm.Client
	model   string
	metrics *observability.Metrics
}

func NewService(client llm.Client, model string, metrics *observability.Metrics) *Service {
	return &Service{client: client, model: model, metrics: metrics}
}

var topicPrompts = map[string]string{
	"conflict":     "You are evaluating the user's conflict resolution skills.",
	"leadership":   "You are evaluating the user's leadership abilities.",
	"challenge":    "You are evaluating how the user handles challenges and obstacles.",
	"failure":      "You are evaluating how the user handles failure and learns from mistakes.",
	"teamwork":     "You are evaluating the user's teamwork and collaboration skills.",
	"success":      "You are evaluating how the user achieves success and their accomplishments.",
	"pressure":     "You are evaluating how the user handles pressure and tight deadlines.",
	"adaptability": "You are evaluating the user's adaptability and flexibility.",
	"problem":      "You are evaluating the user's problem-solving approach.",
}

func (s *Service) Respond(ctx context.Context, messages []llm.Message, prof profile.Profile, topic string) (Reply, error) {
	if len(messages) == 0 {
		return Reply{}, fmt.Errorf("messages are empty")
	}

	prompt := []llm.Message{{Role: "system", Content: SystemPrompt(prof, topic)}}
	prompt = append(prompt, messages...)

	start := time.Now()
	resp, err := s.client.Complete(ctx, llm.Request{
		Model:        s.model,
		Messages:     prompt,
		MaxTokens:    800,
		Temperature:  0.7,
		JSONResponse: true,
	})
	s.metrics.ObserveLLMLatency("coach_chat", time.Since(start))
	if err != nil {
		return Reply{}, err
	}

	// The model is asked for {updatedStory, feedback} JSON; fall back to
	// the raw text when it answers unstructured anyway.
	var structured struct {
		UpdatedStory string `json:"updatedStory"`
		Feedback     string `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &structured); err == nil && structured.Feedback != "" {
		return Reply{Response: structured.Feedback, UpdatedStory: structured.UpdatedStory}, nil
	}
	return Reply{Response: resp.Content}, nil
}

// SystemPrompt builds the coaching instruction from the stored profile and
// the practiced topic.
func SystemPrompt(prof profile.Profile, topic string) string {
	guidance, ok := topicPrompts[strings.ToLower(strings.TrimSpace(topic))]
	if !ok {
		guidance = "You are evaluating the user's interview response."
	}

	var b strings.Builder
	b.WriteString("You are a behavioral interview coach. ")
	b.WriteString(guidance)
	b.WriteString(`

Return your response as JSON with this structure:
{"updatedStory": string, "feedback": string}

updatedStory is the improved final version of the user's story based on the
entire conversation so far, built only from what the user said. feedback is
your evaluation and concrete suggestions for improvement.`)

	if prof.Resume != "" {
		b.WriteString("\n\nCandidate resume:\n")
		b.WriteString(prof.Resume)
	}
	if prof.JobDescription != "" {
		b.WriteString("\n\nTarget job description:\n")
		b.WriteString(prof.JobDescription)
	}
	if prof.AdditionalNotes != "" {
		b.WriteString("\n\nAdditional notes:\n")
		b.WriteString(prof.AdditionalNotes)
	}
	return b.String()
}
