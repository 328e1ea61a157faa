// Package handoff owns the finished-interview transcript artifact: the
// record built at session teardown and the stores the scoring view reads
// it from.
package handoff

import (
	"context"
	"errors"
	"time"
)

// Speaker labels used on the wire.
const (
	FromUser      = "user"
	FromAssistant = "assistant"
)

// Entry is one reconstructed transcript turn.
type Entry struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// Record is the immutable handoff artifact created exactly once at session
// teardown. Ownership transfers to the scoring subsystem on write.
type Record struct {
	Topic      string    `json:"topic"`
	Transcript []Entry   `json:"transcript"`
	Timestamp  time.Time `json:"timestamp"`
}

var ErrNotFound = errors.New("transcript not found")

// Store persists transcript records keyed by session for the scoring view.
// Consume reads a record and removes it: the scoring view reads each
// transcript exactly once.
type Store interface {
	Save(ctx context.Context, sessionID string, rec Record) error
	Consume(ctx context.Context, sessionID string) (Record, error)
	Close() error
}

// Submitter is the narrow interface the session teardown path depends on.
type Submitter interface {
	Submit(ctx context.Context, sessionID string, rec Record) error
}
