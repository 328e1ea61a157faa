package realtime

import "fmt"

// SessionSettings is the upstream configuration sent on channel open.
type SessionSettings struct {
	Voice              string
	TranscriptionModel string
	VADThreshold       float64
	VADSilenceMs       int
}

func (s SessionSettings) withDefaults() SessionSettings {
	if s.Voice == "" {
		s.Voice = "ash"
	}
	if s.TranscriptionModel == "" {
		s.TranscriptionModel = "gpt-4o-transcribe"
	}
	if s.VADThreshold <= 0 {
		s.VADThreshold = 0.5
	}
	if s.VADSilenceMs <= 0 {
		s.VADSilenceMs = 500
	}
	return s
}

func sessionUpdatePayload(s SessionSettings) map[string]any {
	s = s.withDefaults()
	return map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"modalities":          []string{"audio", "text"},
			"voice":               s.Voice,
			"input_audio_format":  "pcm16",
			"output_audio_format": "pcm16",
			"input_audio_transcription": map[string]any{
				"model": s.TranscriptionModel,
			},
			"turn_detection": map[string]any{
				"type":                "server_vad",
				"threshold":           s.VADThreshold,
				"silence_duration_ms": s.VADSilenceMs,
				"create_response":     true,
			},
		},
	}
}

// instructionsPayload establishes the interviewer persona and the opening
// question for the chosen topic. Fire-and-forget.
func instructionsPayload(topic string) map[string]any {
	instructions := fmt.Sprintf(
		"You are a behavioral interviewer conducting a mock interview. "+
			"Start by asking me the question: %q. "+
			"Listen to my answer, then ask one or two probing follow-up questions "+
			"about specifics, trade-offs, and measurable outcomes. "+
			"Stay in character as the interviewer; keep your turns short.",
		OpeningQuestion(topic))
	return map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"instructions": instructions,
		},
	}
}

func responseCreatePayload() map[string]any {
	return map[string]any{"type": "response.create"}
}

// OpeningQuestion is the interview opener for a topic. It is appended
// locally as the first assistant entry the moment the channel opens.
func OpeningQuestion(topic string) string {
	return fmt.Sprintf("Tell me about a time you handled %s.", topic)
}
