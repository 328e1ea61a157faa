package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/starprep/starprep/internal/handoff"
)

func newTestEngine(conn Conn, sub *MockSubmitter) *Engine {
	return &Engine{
		Credentials:         &MockCredentialFetcher{Cred: Credential{Token: "ek_test"}},
		Dialer:              &MockDialer{Conn: conn},
		Submitter:           sub,
		ConfigureAckTimeout: 20 * time.Millisecond,
		Log:                 zerolog.Nop(),
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not tear down")
	}
}

func TestOpeningQuestionSeeded(t *testing.T) {
	conn := NewMockConn()
	eng := newTestEngine(conn, &MockSubmitter{})

	s, err := eng.Start(context.Background(), "leadership")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { s.End(); waitDone(t, s) }()

	entries := s.Transcript()
	if len(entries) == 0 {
		t.Fatal("no entries after channel open")
	}
	want := handoff.Entry{From: handoff.FromAssistant, Text: "Tell me about a time you handled leadership."}
	if entries[0] != want {
		t.Errorf("first entry = %+v, want %+v", entries[0], want)
	}
	if s.State() != StateOpen {
		t.Errorf("state = %v, want open", s.State())
	}
}

func TestConcurrentTeardownExactlyOnce(t *testing.T) {
	conn := NewMockConn()
	sub := &MockSubmitter{}
	eng := newTestEngine(conn, sub)

	s, err := eng.Start(context.Background(), "conflict")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	conn.Deliver([]byte(`{"type":"conversation.item.input_audio_transcription.completed","transcript":"My answer."}`))
	waitFor(t, func() bool { return len(s.Transcript()) == 2 }, "user turn never reconstructed")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.End()
		}()
	}
	wg.Wait()
	waitDone(t, s)

	if got := len(sub.Records()); got != 1 {
		t.Fatalf("handoff writes = %d, want exactly 1", got)
	}
	if got := conn.CloseChannelCalls.Load(); got != 1 {
		t.Errorf("CloseChannel calls = %d, want 1", got)
	}
	if got := conn.StopMediaCalls.Load(); got != 1 {
		t.Errorf("StopMedia calls = %d, want 1", got)
	}
	if got := conn.CloseCalls.Load(); got != 1 {
		t.Errorf("Close calls = %d, want 1", got)
	}
	if s.State() != StateClosed {
		t.Errorf("state = %v, want closed", s.State())
	}

	rec := sub.Records()[0]
	if rec.Topic != "conflict" || len(rec.Transcript) != 2 {
		t.Errorf("record = %+v", rec)
	}
	if rec.Timestamp.IsZero() {
		t.Error("record timestamp not set")
	}
}

func TestEmptyTranscriptNoHandoff(t *testing.T) {
	conn := NewMockConn()
	sub := &MockSubmitter{}
	s := &Session{
		ID:        "s-empty",
		Topic:     "failure",
		conn:      conn,
		rec:       NewReconstructor(),
		submitter: sub,
		log:       zerolog.Nop(),
		updates:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	s.End()
	waitDone(t, s)

	if got := len(sub.Records()); got != 0 {
		t.Fatalf("handoff writes = %d, want 0 for an empty transcript", got)
	}
	if conn.CloseCalls.Load() != 1 || conn.StopMediaCalls.Load() != 1 {
		t.Error("resources not released")
	}
}

func TestTransportFailureWhileOpen(t *testing.T) {
	conn := NewMockConn()
	sub := &MockSubmitter{}
	eng := newTestEngine(conn, sub)

	s, err := eng.Start(context.Background(), "pressure")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	conn.Fail(&TransportFailure{Reason: "ice failed"})
	waitDone(t, s)

	if s.State() != StateFailed {
		t.Errorf("state = %v, want failed", s.State())
	}
	var tf *TransportFailure
	if !errors.As(s.Err(), &tf) {
		t.Errorf("err = %v, want TransportFailure", s.Err())
	}
	if conn.CloseChannelCalls.Load() != 1 || conn.StopMediaCalls.Load() != 1 || conn.CloseCalls.Load() != 1 {
		t.Error("resources not released after transport failure")
	}
	// The seeded opener makes the transcript non-empty; partial
	// transcripts are still handed off on failure.
	if got := len(sub.Records()); got != 1 {
		t.Errorf("handoff writes = %d, want 1", got)
	}
}

func TestUpstreamSessionErrorTriggersTeardown(t *testing.T) {
	conn := NewMockConn()
	eng := newTestEngine(conn, &MockSubmitter{})

	s, err := eng.Start(context.Background(), "teamwork")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	conn.Deliver([]byte(`{"type":"error","error":{"code":"session_expired","message":"expired"}}`))
	waitDone(t, s)

	if s.State() != StateFailed {
		t.Errorf("state = %v, want failed", s.State())
	}
	var ue *UpstreamSessionError
	if !errors.As(s.Err(), &ue) {
		t.Fatalf("err = %v, want UpstreamSessionError", s.Err())
	}
}

func TestRemoteChannelCloseTriggersTeardown(t *testing.T) {
	conn := NewMockConn()
	sub := &MockSubmitter{}
	eng := newTestEngine(conn, sub)

	s, err := eng.Start(context.Background(), "adaptability")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	conn.CloseRemote()
	waitDone(t, s)

	if s.State() != StateClosed {
		t.Errorf("state = %v, want closed", s.State())
	}
	if len(sub.Records()) != 1 {
		t.Error("expected handoff on remote close")
	}
}

func TestStartWhileActiveRejected(t *testing.T) {
	conn := NewMockConn()
	eng := newTestEngine(conn, &MockSubmitter{})

	s, err := eng.Start(context.Background(), "challenge")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := eng.Start(context.Background(), "conflict"); !errors.Is(err, ErrSessionActive) {
		t.Errorf("second start err = %v, want ErrSessionActive", err)
	}

	s.End()
	waitDone(t, s)
	// A terminal session no longer blocks a new start.
	s2, err := eng.Start(context.Background(), "conflict")
	if err != nil {
		t.Fatalf("start after close: %v", err)
	}
	s2.End()
	waitDone(t, s2)
}

func TestCredentialFailureAbortsStart(t *testing.T) {
	dialer := &MockDialer{Conn: NewMockConn()}
	eng := &Engine{
		Credentials: &MockCredentialFetcher{Err: &CredentialError{Err: errors.New("backend down")}},
		Dialer:      dialer,
		Submitter:   &MockSubmitter{},
		Log:         zerolog.Nop(),
	}

	_, err := eng.Start(context.Background(), "conflict")
	var credErr *CredentialError
	if !errors.As(err, &credErr) {
		t.Fatalf("err = %v, want CredentialError", err)
	}
	if dialer.DialCalls.Load() != 0 {
		t.Error("dial attempted after credential failure")
	}
	// The failed attempt must not block the next start.
	eng.Credentials = &MockCredentialFetcher{Cred: Credential{Token: "ek"}}
	s, err := eng.Start(context.Background(), "conflict")
	if err != nil {
		t.Fatalf("start after credential failure: %v", err)
	}
	s.End()
	waitDone(t, s)
}

func TestConfigureSendsUpdateThenInstructionsOnAck(t *testing.T) {
	conn := NewMockConn()
	eng := newTestEngine(conn, &MockSubmitter{})
	eng.ConfigureAckTimeout = 5 * time.Second

	s, err := eng.Start(context.Background(), "leadership")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { s.End(); waitDone(t, s) }()

	waitFor(t, func() bool { return len(conn.Sent()) >= 1 }, "session.update never sent")
	first, ok := conn.Sent()[0].(map[string]any)
	if !ok || first["type"] != "session.update" {
		t.Fatalf("first payload = %+v", conn.Sent()[0])
	}
	session := first["session"].(map[string]any)
	if _, ok := session["turn_detection"]; !ok {
		t.Error("session.update missing turn_detection")
	}

	conn.Deliver([]byte(`{"type":"session.updated","session":{}}`))
	waitFor(t, func() bool { return sentInstructions(conn) }, "instructions never sent after ack")
}

func TestConfigureFallsBackToTimerWithoutAck(t *testing.T) {
	conn := NewMockConn()
	eng := newTestEngine(conn, &MockSubmitter{})
	eng.ConfigureAckTimeout = 20 * time.Millisecond

	s, err := eng.Start(context.Background(), "leadership")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { s.End(); waitDone(t, s) }()

	waitFor(t, func() bool { return sentInstructions(conn) }, "instructions never sent via timer fallback")
}

func sentInstructions(conn *MockConn) bool {
	for _, v := range conn.Sent() {
		m, ok := v.(map[string]any)
		if !ok || m["type"] != "session.update" {
			continue
		}
		if session, ok := m["session"].(map[string]any); ok {
			if _, ok := session["instructions"]; ok {
				return true
			}
		}
	}
	return false
}
