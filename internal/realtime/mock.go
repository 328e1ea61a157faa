package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/starprep/starprep/internal/handoff"
)

// MockConn is an in-memory Conn for tests. Frames are injected with
// Deliver and failures with Fail; call counters expose how many times
// each release step ran.
type MockConn struct {
	frames   chan []byte
	failures chan error

	framesOnce sync.Once

	CloseChannelCalls atomic.Int32
	StopMediaCalls    atomic.Int32
	CloseCalls        atomic.Int32

	sentMu sync.Mutex
	sent   []any
}

func NewMockConn() *MockConn {
	return &MockConn{
		frames:   make(chan []byte, 64),
		failures: make(chan error, 4),
	}
}

func (c *MockConn) Deliver(frame []byte) { c.frames <- frame }

func (c *MockConn) Fail(err error) { c.failures <- err }

// CloseRemote simulates the upstream closing the control channel.
func (c *MockConn) CloseRemote() {
	c.framesOnce.Do(func() { close(c.frames) })
}

func (c *MockConn) Frames() <-chan []byte  { return c.frames }
func (c *MockConn) Failures() <-chan error { return c.failures }

func (c *MockConn) Send(v any) error {
	c.sentMu.Lock()
	defer c.sentMu.Unlock()
	c.sent = append(c.sent, v)
	return nil
}

// Sent returns a copy of every payload passed to Send.
func (c *MockConn) Sent() []any {
	c.sentMu.Lock()
	defer c.sentMu.Unlock()
	out := make([]any, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *MockConn) CloseChannel() error {
	c.CloseChannelCalls.Add(1)
	c.CloseRemote()
	return nil
}

func (c *MockConn) StopMedia() { c.StopMediaCalls.Add(1) }

func (c *MockConn) Close() error {
	c.CloseCalls.Add(1)
	return nil
}

// MockDialer hands out a prepared Conn, or fails with Err.
type MockDialer struct {
	Conn Conn
	Err  error

	DialCalls atomic.Int32
}

func (d *MockDialer) Dial(_ context.Context, _ Credential) (Conn, error) {
	d.DialCalls.Add(1)
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Conn, nil
}

// MockCredentialFetcher returns a fixed credential or error.
type MockCredentialFetcher struct {
	Cred Credential
	Err  error
}

func (f *MockCredentialFetcher) FetchEphemeralCredential(context.Context) (Credential, error) {
	if f.Err != nil {
		return Credential{}, f.Err
	}
	return f.Cred, nil
}

// MockSubmitter records handoff records.
type MockSubmitter struct {
	Err error

	mu      sync.Mutex
	records []handoff.Record
	ids     []string
}

func (s *MockSubmitter) Submit(_ context.Context, sessionID string, rec handoff.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.ids = append(s.ids, sessionID)
	s.records = append(s.records, rec)
	return nil
}

func (s *MockSubmitter) Records() []handoff.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]handoff.Record, len(s.records))
	copy(out, s.records)
	return out
}
