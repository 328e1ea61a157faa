package realtime

import (
	"testing"

	"github.com/starprep/starprep/internal/handoff"
)

func TestFinalOverridesDeltas(t *testing.T) {
	r := NewReconstructor()
	for _, d := range []string{"Tell", " me", " about..."} {
		r.Apply(ServerEvent{Kind: KindUserDelta, Text: d})
	}
	r.Apply(ServerEvent{Kind: KindUserFinal, Text: "Tell me about a challenge."})

	entries := r.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Text != "Tell me about a challenge." {
		t.Errorf("text = %q, want the finalized payload exactly", entries[0].Text)
	}
	if entries[0].From != handoff.FromUser {
		t.Errorf("from = %q", entries[0].From)
	}
}

func TestSpeakerChangeOpensNewEntry(t *testing.T) {
	r := NewReconstructor()
	r.Apply(ServerEvent{Kind: KindAssistantDelta, Text: "What was the outcome?"})
	r.Apply(ServerEvent{Kind: KindUserDelta, Text: "We shipped"})
	r.Apply(ServerEvent{Kind: KindUserDelta, Text: " on time."})
	r.Apply(ServerEvent{Kind: KindAssistantDelta, Text: "Good."})

	entries := r.Entries()
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3 (never merge across speakers)", len(entries))
	}
	if entries[1].From != handoff.FromUser || entries[1].Text != "We shipped on time." {
		t.Errorf("entry[1] = %+v", entries[1])
	}
	if entries[2].From != handoff.FromAssistant {
		t.Errorf("entry[2] = %+v", entries[2])
	}
}

func TestEmptyAssistantDeltaIsNoOp(t *testing.T) {
	r := NewReconstructor()
	if changed := r.Apply(ServerEvent{Kind: KindAssistantDelta, Text: "   "}); changed {
		t.Error("blank delta reported a change")
	}
	if r.Len() != 0 {
		t.Errorf("entries = %d, want 0", r.Len())
	}

	// With an open assistant entry the same delta appends.
	r.Apply(ServerEvent{Kind: KindAssistantDelta, Text: "Tell me"})
	r.Apply(ServerEvent{Kind: KindAssistantDelta, Text: " more."})
	if got := r.Entries()[0].Text; got != "Tell me more." {
		t.Errorf("text = %q", got)
	}
}

func TestAssistantFinalDedupe(t *testing.T) {
	r := NewReconstructor()
	r.Seed(handoff.FromAssistant, "Tell me about a time you handled conflict.")
	r.Apply(ServerEvent{Kind: KindUserFinal, Text: "Sure."})
	// Finalized turn identical to a non-adjacent entry still appends; only
	// a duplicate of the last entry is dropped.
	r.Apply(ServerEvent{Kind: KindAssistantFinal, Text: "Sure."})
	if r.Len() != 2 {
		t.Fatalf("entries = %d, want 2 (duplicate of last entry dropped)", r.Len())
	}

	r.Apply(ServerEvent{Kind: KindAssistantFinal, Text: "And what changed afterwards?"})
	if r.Len() != 3 {
		t.Fatalf("entries = %d, want 3", r.Len())
	}
	if r.Speaking() != SpeakerNone {
		t.Errorf("speaking = %v after assistant final", r.Speaking())
	}
}

func TestAssistantFinalReplacesAccumulatedDeltas(t *testing.T) {
	r := NewReconstructor()
	r.Apply(ServerEvent{Kind: KindAssistantDelta, Text: "Walk me thr"})
	r.Apply(ServerEvent{Kind: KindAssistantDelta, Text: "ough it"})
	r.Apply(ServerEvent{Kind: KindAssistantFinal, Text: "Walk me through it."})
	if got := r.Entries()[0].Text; got != "Walk me through it." {
		t.Errorf("text = %q", got)
	}
}

func TestSpeakingIndicator(t *testing.T) {
	r := NewReconstructor()
	r.Apply(ServerEvent{Kind: KindAssistantAudio})
	if r.Speaking() != SpeakerAssistant {
		t.Errorf("speaking = %v, want assistant", r.Speaking())
	}
	if r.Len() != 0 {
		t.Error("audio indicator must not create transcript entries")
	}
	r.Apply(ServerEvent{Kind: KindUserDelta, Text: "So"})
	if r.Speaking() != SpeakerUser {
		t.Errorf("speaking = %v, want user", r.Speaking())
	}
}
