package realtime

import "encoding/json"

// EventKind is the closed set of control-channel event shapes the session
// reacts to. Everything else maps to KindUnknown and is ignored.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindUserDelta
	KindUserFinal
	KindAssistantAudio
	KindAssistantDelta
	KindAssistantFinal
	KindSessionUpdated
	KindSessionError
)

func (k EventKind) String() string {
	switch k {
	case KindUserDelta:
		return "user_delta"
	case KindUserFinal:
		return "user_final"
	case KindAssistantAudio:
		return "assistant_audio"
	case KindAssistantDelta:
		return "assistant_delta"
	case KindAssistantFinal:
		return "assistant_final"
	case KindSessionUpdated:
		return "session_updated"
	case KindSessionError:
		return "session_error"
	default:
		return "unknown"
	}
}

// ServerEvent is one decoded control-channel message.
type ServerEvent struct {
	Kind EventKind
	// Type is the raw wire type, kept for logging unknown events.
	Type string
	// Text carries the delta or finalized transcript text for the
	// transcript-bearing kinds.
	Text string
	// Audio carries base64 PCM for KindAssistantAudio on transports that
	// deliver audio in-band.
	Audio string
	Err   *UpstreamSessionError
}

type wireEvent struct {
	Type       string `json:"type"`
	Delta      string `json:"delta"`
	Text       string `json:"text"`
	Transcript string `json:"transcript"`
	Error      *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Response *struct {
		Output []struct {
			Role    string `json:"role"`
			Content []struct {
				Type       string `json:"type"`
				Text       string `json:"text"`
				Transcript string `json:"transcript"`
			} `json:"content"`
		} `json:"output"`
	} `json:"response"`
}

// ParseServerEvent decodes one JSON frame from the control channel. The
// upstream has shipped two generations of event names for the same
// transcript stream; both map onto the same kinds.
func ParseServerEvent(data []byte) (ServerEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return ServerEvent{}, err
	}

	ev := ServerEvent{Kind: KindUnknown, Type: w.Type}
	switch w.Type {
	case "conversation.item.input_audio_transcription.delta":
		ev.Kind = KindUserDelta
		ev.Text = w.Delta
	case "conversation.item.input_audio_transcription.completed":
		ev.Kind = KindUserFinal
		ev.Text = w.Transcript
	case "response.audio.delta":
		ev.Kind = KindAssistantAudio
		ev.Audio = w.Delta
	case "response.audio_transcript.delta":
		ev.Kind = KindAssistantDelta
		ev.Text = w.Delta
	case "response.audio_transcript.done":
		ev.Kind = KindAssistantFinal
		ev.Text = w.Transcript
	case "response.text.delta":
		ev.Kind = KindAssistantDelta
		ev.Text = w.Delta
	case "response.text.done":
		ev.Kind = KindAssistantFinal
		ev.Text = w.Text
	case "response.done":
		// The completed-response envelope repeats the full turn
		// transcript; used as the finalize signal when no
		// audio_transcript.done arrived.
		ev.Kind = KindAssistantFinal
		ev.Text = responseTranscript(w)
	case "session.created", "session.updated":
		ev.Kind = KindSessionUpdated
	case "error":
		ev.Kind = KindSessionError
		ev.Err = &UpstreamSessionError{Message: "unknown error"}
		if w.Error != nil {
			ev.Err = &UpstreamSessionError{Code: w.Error.Code, Message: w.Error.Message}
		}
	}
	return ev, nil
}

func responseTranscript(w wireEvent) string {
	if w.Response == nil {
		return ""
	}
	for _, out := range w.Response.Output {
		for _, c := range out.Content {
			if c.Transcript != "" {
				return c.Transcript
			}
			if c.Text != "" {
				return c.Text
			}
		}
	}
	return ""
}
