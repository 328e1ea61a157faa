package realtime

import (
	"errors"
	"fmt"
)

// ErrSessionActive is returned by Engine.Start while another session owns
// the transport resources.
var ErrSessionActive = errors.New("a session is already active")

// CredentialError means the ephemeral credential could not be obtained.
// Nothing has been acquired yet; the caller aborts session start.
type CredentialError struct {
	Err error
}

func (e *CredentialError) Error() string { return fmt.Sprintf("credential: %v", e.Err) }
func (e *CredentialError) Unwrap() error { return e.Err }

// MediaAccessError means the local capture device could not be acquired.
type MediaAccessError struct {
	Err error
}

func (e *MediaAccessError) Error() string { return fmt.Sprintf("media access: %v", e.Err) }
func (e *MediaAccessError) Unwrap() error { return e.Err }

// HandshakeError covers failures between transport creation and channel
// open: offer/answer exchange rejected, invalid answer, or the control
// channel never opening within the configured bound.
type HandshakeError struct {
	Err error
}

func (e *HandshakeError) Error() string { return fmt.Sprintf("handshake: %v", e.Err) }
func (e *HandshakeError) Unwrap() error { return e.Err }

// TransportFailure is detected after establishment via a state-change
// callback (ICE failed/disconnected, channel closed unexpectedly).
type TransportFailure struct {
	Reason string
}

func (e *TransportFailure) Error() string { return "transport failure: " + e.Reason }

// UpstreamSessionError is reported by the voice model over the control
// channel.
type UpstreamSessionError struct {
	Code    string
	Message string
}

func (e *UpstreamSessionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("upstream session error %s: %s", e.Code, e.Message)
	}
	return "upstream session error: " + e.Message
}
