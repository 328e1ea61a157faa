// Package realtime owns the voice mock-interview session: credential
// fetch, transport establishment, upstream configuration, transcript
// reconstruction, and exactly-once teardown with handoff.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/starprep/starprep/internal/audio"
	"github.com/starprep/starprep/internal/handoff"
	"github.com/starprep/starprep/internal/observability"
)

// State is the session lifecycle position.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) terminal() bool { return s == StateClosed || s == StateFailed }

const defaultConfigureAckTimeout = time.Second

// Engine starts sessions and owns the transport resources while one is
// active. A single session at a time: Start while one is live returns
// ErrSessionActive.
type Engine struct {
	Credentials CredentialFetcher
	Dialer      Dialer
	Submitter   handoff.Submitter
	Sink        audio.Sink
	Settings    SessionSettings

	// ConfigureAckTimeout bounds the wait for the session.updated
	// acknowledgement before the instruction payload is sent anyway.
	ConfigureAckTimeout time.Duration

	Metrics *observability.Metrics
	Log     zerolog.Logger

	mu     sync.Mutex
	active *Session
}

// Start runs one mock interview for the topic. It returns once the
// control channel is open and the session is live; the transcript then
// accumulates until teardown.
func (e *Engine) Start(ctx context.Context, topic string) (*Session, error) {
	e.mu.Lock()
	if e.active != nil && !e.active.State().terminal() {
		e.mu.Unlock()
		return nil, ErrSessionActive
	}
	s := &Session{
		ID:        uuid.NewString(),
		Topic:     topic,
		state:     StateConnecting,
		rec:       NewReconstructor(),
		submitter: e.Submitter,
		sink:      e.Sink,
		metrics:   e.Metrics,
		updates:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	s.log = e.Log.With().Str("session_id", s.ID).Str("topic", topic).Logger()
	e.active = s
	e.mu.Unlock()

	e.Metrics.CountSessionEvent("start")

	cred, err := e.Credentials.FetchEphemeralCredential(ctx)
	if err != nil {
		s.abortBeforeOpen(err)
		return nil, err
	}

	conn, err := e.Dialer.Dial(ctx, cred)
	if err != nil {
		if e.Sink != nil {
			_ = e.Sink.Detach()
		}
		s.abortBeforeOpen(err)
		return nil, err
	}
	s.conn = conn

	s.setState(StateOpen)
	e.Metrics.SetActiveSessions(1)
	e.Metrics.CountSessionEvent("open")

	// Optimistic first entry: the opener is known locally and is not
	// derived from an event.
	s.rec.Seed(handoff.FromAssistant, OpeningQuestion(topic))
	s.notify()

	ackTimeout := e.ConfigureAckTimeout
	if ackTimeout <= 0 {
		ackTimeout = defaultConfigureAckTimeout
	}
	go s.run(e.Settings, ackTimeout)

	s.log.Info().Msg("session open")
	return s, nil
}

// Active returns the current session, or nil.
func (e *Engine) Active() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Close ends any live session. Used on engine shutdown.
func (e *Engine) Close() {
	e.mu.Lock()
	s := e.active
	e.mu.Unlock()
	if s != nil {
		s.End()
		<-s.Done()
	}
}

// Session is one realtime voice-interview attempt. Its transport, control
// channel, capture and playback resources are released together, exactly
// once, whichever teardown trigger fires first.
type Session struct {
	ID    string
	Topic string

	conn      Conn
	rec       *Reconstructor
	submitter handoff.Submitter
	sink      audio.Sink
	metrics   *observability.Metrics
	log       zerolog.Logger

	stateMu sync.Mutex
	state   State
	err     error

	teardownOnce sync.Once
	updates      chan struct{}
	done         chan struct{}
}

func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// Err returns the fatal error that moved the session to Failed, if any.
func (s *Session) Err() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.err
}

// Transcript returns a copy of the entries reconstructed so far.
func (s *Session) Transcript() []handoff.Entry { return s.rec.Entries() }

func (s *Session) Speaking() Speaker { return s.rec.Speaking() }

// Updates signals (coalesced) whenever the transcript or speaking
// indicator changes.
func (s *Session) Updates() <-chan struct{} { return s.updates }

// Done is closed after teardown completes.
func (s *Session) Done() <-chan struct{} { return s.done }

// End is the user-initiated teardown trigger. Safe to call concurrently
// with any failure-driven trigger.
func (s *Session) End() { s.teardown(nil) }

func (s *Session) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

func (s *Session) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// abortBeforeOpen handles failures before the transport was handed over:
// the teardown sequence still runs so the terminal state and signals are
// uniform, it just has nothing to release.
func (s *Session) abortBeforeOpen(err error) {
	s.stateMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.stateMu.Unlock()
	s.log.Error().Err(err).Msg("session start failed")
	s.teardown(err)
}

// run drives the control channel: configuration, then continuous
// reconstruction until a teardown trigger fires.
func (s *Session) run(settings SessionSettings, ackTimeout time.Duration) {
	if err := s.conn.Send(sessionUpdatePayload(settings)); err != nil {
		s.fail(&TransportFailure{Reason: "send session config: " + err.Error()})
		return
	}

	// Prefer the session.updated acknowledgement before the instruction
	// payload; the timer is the fallback when no ack arrives.
	ack := time.NewTimer(ackTimeout)
	defer ack.Stop()
	configured := false
	sendInstructions := func() {
		configured = true
		if err := s.conn.Send(instructionsPayload(s.Topic)); err != nil {
			s.log.Warn().Err(err).Msg("send instructions")
			return
		}
		if err := s.conn.Send(responseCreatePayload()); err != nil {
			s.log.Warn().Err(err).Msg("request opening response")
		}
	}

	for {
		select {
		case <-ack.C:
			if !configured {
				sendInstructions()
			}

		case err := <-s.conn.Failures():
			s.fail(err)
			return

		case frame, ok := <-s.conn.Frames():
			if !ok {
				// Remote channel close is a teardown trigger.
				s.teardown(nil)
				return
			}
			ev, err := ParseServerEvent(frame)
			if err != nil {
				s.log.Debug().Err(err).Msg("malformed control frame")
				continue
			}
			s.metrics.CountRealtimeEvent(ev.Kind.String())

			if !configured && ev.Type == "session.updated" {
				ack.Stop()
				sendInstructions()
			}

			switch ev.Kind {
			case KindSessionError:
				s.fail(ev.Err)
				return
			case KindUnknown:
				s.log.Debug().Str("type", ev.Type).Msg("ignoring unrecognized event")
			default:
				if s.rec.Apply(ev) {
					s.notify()
				}
			}
		}
	}
}

func (s *Session) fail(err error) {
	s.stateMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.stateMu.Unlock()
	s.log.Error().Err(err).Msg("session failed")
	s.teardown(err)
}

// teardown releases everything exactly once: handoff (iff the transcript
// is non-empty), control channel, local media, transport, playback sink,
// final state. Individual step errors are logged and never stop the
// sequence.
func (s *Session) teardown(cause error) {
	s.teardownOnce.Do(func() {
		if cause != nil {
			s.setState(StateFailed)
		} else {
			s.setState(StateClosing)
		}

		if s.rec.Len() > 0 {
			rec := handoff.Record{
				Topic:      s.Topic,
				Transcript: s.rec.Entries(),
				Timestamp:  time.Now().UTC(),
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.submitter.Submit(ctx, s.ID, rec); err != nil {
				s.metrics.CountHandoff("error")
				s.log.Error().Err(err).Msg("transcript handoff failed")
			} else {
				s.metrics.CountHandoff("ok")
			}
			cancel()
		}

		if s.conn != nil {
			if err := s.conn.CloseChannel(); err != nil {
				s.log.Debug().Err(err).Msg("close control channel")
			}
			s.conn.StopMedia()
			if err := s.conn.Close(); err != nil {
				s.log.Debug().Err(err).Msg("close transport")
			}
		}
		if s.sink != nil {
			if err := s.sink.Detach(); err != nil {
				s.log.Debug().Err(err).Msg("detach playback sink")
			}
		}

		if cause == nil {
			s.setState(StateClosed)
			s.metrics.CountSessionEvent("closed")
		} else {
			s.metrics.CountSessionEvent("failed")
		}
		s.metrics.SetActiveSessions(0)
		close(s.done)
		s.notify()
		s.log.Info().Str("state", s.State().String()).Msg("session torn down")
	})
}
