package realtime

import (
	"strings"
	"sync"

	"github.com/starprep/starprep/internal/handoff"
)

// Speaker identifies who is currently producing audio.
type Speaker int

const (
	SpeakerNone Speaker = iota
	SpeakerUser
	SpeakerAssistant
)

func (s Speaker) String() string {
	switch s {
	case SpeakerUser:
		return "user"
	case SpeakerAssistant:
		return "assistant"
	default:
		return "none"
	}
}

// Reconstructor rebuilds the interview transcript from the channel-ordered
// stream of delta and finalized events. Deltas accumulate into the current
// same-speaker entry; the finalized event carries the authoritative text
// and always overrides whatever the deltas assembled.
type Reconstructor struct {
	mu       sync.Mutex
	entries  []handoff.Entry
	speaking Speaker
}

func NewReconstructor() *Reconstructor {
	return &Reconstructor{}
}

// Apply feeds one event through the state machine and reports whether the
// transcript or speaking indicator changed.
func (r *Reconstructor) Apply(ev ServerEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case KindUserDelta:
		r.appendDelta(handoff.FromUser, ev.Text)
		r.speaking = SpeakerUser
		return true

	case KindUserFinal:
		r.finalize(handoff.FromUser, ev.Text)
		return true

	case KindAssistantAudio:
		r.speaking = SpeakerAssistant
		return true

	case KindAssistantDelta:
		if last := r.last(); last != nil && last.From == handoff.FromAssistant {
			last.Text += ev.Text
		} else if strings.TrimSpace(ev.Text) != "" {
			r.entries = append(r.entries, handoff.Entry{From: handoff.FromAssistant, Text: ev.Text})
		} else {
			// Empty delta with no open assistant entry is a no-op.
			return false
		}
		r.speaking = SpeakerAssistant
		return true

	case KindAssistantFinal:
		r.speaking = SpeakerNone
		if ev.Text == "" {
			return true
		}
		if last := r.last(); last != nil && last.From == handoff.FromAssistant {
			last.Text = ev.Text
		} else if last == nil || last.Text != ev.Text {
			r.entries = append(r.entries, handoff.Entry{From: handoff.FromAssistant, Text: ev.Text})
		}
		return true
	}
	return false
}

func (r *Reconstructor) appendDelta(from, text string) {
	if last := r.last(); last != nil && last.From == from {
		last.Text += text
		return
	}
	r.entries = append(r.entries, handoff.Entry{From: from, Text: text})
}

// Final text always wins over accumulated deltas; upstream may coalesce
// differently from how it streamed.
func (r *Reconstructor) finalize(from, text string) {
	if last := r.last(); last != nil && last.From == from {
		last.Text = text
		return
	}
	r.entries = append(r.entries, handoff.Entry{From: from, Text: text})
}

func (r *Reconstructor) last() *handoff.Entry {
	if len(r.entries) == 0 {
		return nil
	}
	return &r.entries[len(r.entries)-1]
}

// Seed appends an entry directly, bypassing the event machinery. Used for
// the optimistic opening question.
func (r *Reconstructor) Seed(from, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, handoff.Entry{From: from, Text: text})
}

// Entries returns a copy of the transcript so far.
func (r *Reconstructor) Entries() []handoff.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]handoff.Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Reconstructor) Speaking() Speaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speaking
}

func (r *Reconstructor) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
