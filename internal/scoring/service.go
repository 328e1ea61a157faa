// Package scoring turns a finished interview transcript into rubric-based
// feedback via the hosted model.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/starprep/starprep/internal/handoff"
	"github.com/starprep/starprep/internal/llm"
	"github.com/starprep/starprep/internal/observability"
)

type CategoryScore struct {
	Category     string `json:"category"`
	Score        int    `json:"score"`
	Strengths    string `json:"strengths"`
	Improvements string `json:"improvements"`
	Explanation  string `json:"explanation"`
}

type Feedback struct {
	CategoryScores []CategoryScore `json:"categoryScores"`
	TotalScore     int             `json:"totalScore"`
	ScoreBand      string          `json:"scoreBand"`
	Summary        string          `json:"summary"`
}

type Service struct {
	client  llm.Client
	model   string
	metrics *observability.Metrics
}

func NewService(client llm.Client, model string, metrics *observability.Metrics) *Service {
	return &Service{client: client, model: model, metrics: metrics}
}

// Analyze scores the transcript against every rubric category in parallel,
// then asks the model for an overall summary.
func (s *Service) Analyze(ctx context.Context, topic string, transcript []handoff.Entry) (Feedback, error) {
	if len(transcript) == 0 {
		return Feedback{}, fmt.Errorf("transcript is empty")
	}

	system := systemPrompt(topic)
	formatted := formatTranscript(transcript)

	results := make([]CategoryScore, len(categories))
	errs := make([]error, len(categories))

	var wg sync.WaitGroup
	for i, cat := range categories {
		wg.Add(1)
		go func(i int, cat Category) {
			defer wg.Done()
			results[i], errs[i] = s.scoreCategory(ctx, system, formatted, cat)
		}(i, cat)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return Feedback{}, err
		}
	}

	total := 0
	for _, r := range results {
		total += r.Score
	}

	summary, err := s.summarize(ctx, topic, results, total)
	if err != nil {
		return Feedback{}, err
	}

	return Feedback{
		CategoryScores: results,
		TotalScore:     total,
		ScoreBand:      band(total),
		Summary:        summary,
	}, nil
}

func (s *Service) scoreCategory(ctx context.Context, system, transcript string, cat Category) (CategoryScore, error) {
	start := time.Now()
	resp, err := s.client.Complete(ctx, llm.Request{
		Model: s.model,
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: fmt.Sprintf(
				"Here's the interview transcript:\n\n%s\n\nPlease analyze this for the %q category. %s",
				transcript, strings.TrimPrefix(cat.Name, "score"), cat.Guidance,
			)},
		},
		Functions:   []llm.FunctionDef{functionDef(cat)},
		ForceCall:   cat.Name,
		Temperature: 0.3,
	})
	s.metrics.ObserveLLMLatency("score_category", time.Since(start))
	if err != nil {
		return CategoryScore{}, fmt.Errorf("%s: %w", cat.Name, err)
	}
	if resp.FunctionCall == nil || resp.FunctionCall.Name != cat.Name {
		return CategoryScore{}, fmt.Errorf("%s: model did not return the expected function call", cat.Name)
	}

	var score CategoryScore
	if err := json.Unmarshal([]byte(resp.FunctionCall.Arguments), &score); err != nil {
		return CategoryScore{}, fmt.Errorf("%s: parse arguments: %w", cat.Name, err)
	}
	score.Category = strings.TrimPrefix(cat.Name, "score")
	return score, nil
}

func (s *Service) summarize(ctx context.Context, topic string, results []CategoryScore, total int) (string, error) {
	detail, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("marshal category scores: %w", err)
	}

	start := time.Now()
	resp, err := s.client.Complete(ctx, llm.Request{
		Model: s.model,
		Messages: []llm.Message{
			{Role: "system", Content: "You are an expert interview coach providing concise, actionable feedback."},
			{Role: "user", Content: fmt.Sprintf(
				"Based on the following detailed category scores for an interview about %q, provide a concise summary (2-3 paragraphs) highlighting the main strengths and 2-3 key areas for improvement. Be specific and actionable.\n\n%s\n\nTotal Score: %d/100 (%s)",
				topic, detail, total, band(total),
			)},
		},
		Temperature: 0.4,
	})
	s.metrics.ObserveLLMLatency("summarize", time.Since(start))
	if err != nil {
		return "", fmt.Errorf("summary: %w", err)
	}
	if resp.Content == "" {
		return "Unable to generate summary.", nil
	}
	return resp.Content, nil
}

func systemPrompt(topic string) string {
	return fmt.Sprintf(`You are an expert interview coach evaluating a behavioral interview response.

You will be analyzing the candidate's response to the question about: %q.

Each category is scored 0-20. Assign a score, identify specific strengths,
and suggest targeted improvements.`, topic)
}

func formatTranscript(transcript []handoff.Entry) string {
	var b strings.Builder
	for i, entry := range transcript {
		if i > 0 {
			b.WriteString("\n\n")
		}
		speaker := "Interviewer"
		if entry.From == handoff.FromUser {
			speaker = "Candidate"
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(entry.Text)
	}
	return b.String()
}
