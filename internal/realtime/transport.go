package realtime

import "context"

// Conn is an established realtime transport: an ordered control channel
// plus the media plumbing behind it. The session engine drives every Conn
// the same way regardless of whether WebRTC or a websocket carries it.
type Conn interface {
	// Frames delivers raw control-channel frames in upstream send order.
	// The channel is closed when the transport shuts down, including
	// remote channel close.
	Frames() <-chan []byte

	// Send writes one JSON control message.
	Send(v any) error

	// Failures surfaces asynchronous transport faults (ICE failed,
	// unexpected socket close) detected after establishment.
	Failures() <-chan error

	// CloseChannel closes only the control channel.
	CloseChannel() error

	// StopMedia stops local capture and outbound senders. Best effort.
	StopMedia()

	// Close tears down the transport itself.
	Close() error
}

// Dialer establishes a Conn from an ephemeral credential. Dial returns
// only after the control channel is open and usable.
type Dialer interface {
	Dial(ctx context.Context, cred Credential) (Conn, error)
}
