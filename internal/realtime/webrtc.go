package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/rs/zerolog"

	"github.com/starprep/starprep/internal/audio"
)

const defaultChannelOpenTimeout = 15 * time.Second

// WebRTCDialer establishes the peer-to-peer session with the upstream
// voice model: local capture, audio track, ordered data channel, SDP
// offer/answer over HTTPS, then a bounded wait for channel open.
type WebRTCDialer struct {
	Capture   audio.Capture
	Sink      audio.Sink
	Signaling *SignalingClient

	// ChannelOpenTimeout bounds the wait for the control channel after
	// the answer is applied. Expiry is a HandshakeError.
	ChannelOpenTimeout time.Duration

	Log zerolog.Logger
}

func (d *WebRTCDialer) Dial(ctx context.Context, cred Credential) (Conn, error) {
	mic, err := d.Capture.StartOpus(ctx)
	if err != nil {
		return nil, &MediaAccessError{Err: err}
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
	})
	if err != nil {
		_ = mic.Close()
		return nil, &HandshakeError{Err: fmt.Errorf("create peer connection: %w", err)}
	}

	conn := &webrtcConn{
		pc:       pc,
		mic:      mic,
		sink:     d.Sink,
		frames:   make(chan []byte, 256),
		failures: make(chan error, 4),
		log:      d.Log,
	}

	fail := func(err error) (Conn, error) {
		_ = mic.Close()
		_ = pc.Close()
		return nil, err
	}

	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: 48000,
		Channels:  1,
	}, "audio", "microphone")
	if err != nil {
		return fail(&HandshakeError{Err: fmt.Errorf("create audio track: %w", err)})
	}
	sender, err := pc.AddTrack(track)
	if err != nil {
		return fail(&HandshakeError{Err: fmt.Errorf("attach audio track: %w", err)})
	}
	conn.track = track
	conn.senders = []*webrtc.RTPSender{sender}

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		// Remote interviewer audio goes straight to playback; it is
		// never reconstructed as text.
		go conn.playRemote(remote)
	})
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		switch state {
		case webrtc.ICEConnectionStateFailed, webrtc.ICEConnectionStateDisconnected, webrtc.ICEConnectionStateClosed:
			conn.fail(&TransportFailure{Reason: "ice " + state.String()})
		}
	})

	// The channel must exist before the offer so it is part of the
	// negotiated description.
	ordered := true
	dc, err := pc.CreateDataChannel("oai-events", &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return fail(&HandshakeError{Err: fmt.Errorf("create data channel: %w", err)})
	}
	conn.dc = dc

	opened := make(chan struct{})
	dc.OnOpen(func() { close(opened) })
	dc.OnClose(func() { conn.shutdownFrames() })
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		select {
		case conn.frames <- msg.Data:
		default:
			conn.log.Warn().Msg("control frame buffer full, dropping event")
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fail(&HandshakeError{Err: fmt.Errorf("create offer: %w", err)})
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return fail(&HandshakeError{Err: fmt.Errorf("set local description: %w", err)})
	}

	answerSDP, err := d.Signaling.Exchange(ctx, cred, offer.SDP)
	if err != nil {
		return fail(err)
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answerSDP,
	}); err != nil {
		return fail(&HandshakeError{Err: fmt.Errorf("set remote description: %w", err)})
	}

	timeout := d.ChannelOpenTimeout
	if timeout <= 0 {
		timeout = defaultChannelOpenTimeout
	}
	select {
	case <-opened:
	case <-time.After(timeout):
		return fail(&HandshakeError{Err: fmt.Errorf("control channel did not open within %s", timeout)})
	case <-ctx.Done():
		return fail(&HandshakeError{Err: ctx.Err()})
	}

	go conn.pumpMicrophone()
	return conn, nil
}

type webrtcConn struct {
	pc      *webrtc.PeerConnection
	dc      *webrtc.DataChannel
	mic     io.ReadCloser
	track   *webrtc.TrackLocalStaticSample
	senders []*webrtc.RTPSender
	sink    audio.Sink

	frames   chan []byte
	failures chan error

	writeMu    sync.Mutex
	framesOnce sync.Once
	mediaOnce  sync.Once
	closeOnce  sync.Once

	log zerolog.Logger
}

func (c *webrtcConn) Frames() <-chan []byte  { return c.frames }
func (c *webrtcConn) Failures() <-chan error { return c.failures }

func (c *webrtcConn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.dc.SendText(string(data))
}

// CloseChannel closes the data channel; the OnClose callback closes the
// frames channel once no more messages can be delivered.
func (c *webrtcConn) CloseChannel() error {
	return c.dc.Close()
}

func (c *webrtcConn) StopMedia() {
	c.mediaOnce.Do(func() {
		_ = c.mic.Close()
		for _, sender := range c.senders {
			_ = sender.Stop()
		}
	})
}

func (c *webrtcConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.StopMedia()
		// Closing the peer connection closes the data channel, which
		// fires OnClose and shuts the frames channel down.
		err = c.pc.Close()
	})
	return err
}

func (c *webrtcConn) shutdownFrames() {
	c.framesOnce.Do(func() { close(c.frames) })
}

func (c *webrtcConn) fail(err error) {
	select {
	case c.failures <- err:
	default:
	}
}

// pumpMicrophone feeds captured Ogg/Opus pages into the outbound track.
// Page duration is derived from the granule positions so pacing matches
// capture time.
func (c *webrtcConn) pumpMicrophone() {
	ogg, _, err := oggreader.NewWith(c.mic)
	if err != nil {
		c.fail(&TransportFailure{Reason: "parse capture stream: " + err.Error()})
		return
	}

	var lastGranule uint64
	for {
		page, header, err := ogg.ParseNextPage()
		if err != nil {
			if err != io.EOF {
				c.log.Debug().Err(err).Msg("capture stream ended")
			}
			return
		}
		samples := header.GranulePosition - lastGranule
		lastGranule = header.GranulePosition
		duration := time.Duration(samples) * time.Second / 48000

		if err := c.track.WriteSample(media.Sample{Data: page, Duration: duration}); err != nil {
			return
		}
	}
}

// playRemote writes the remote Opus track to the playback sink wrapped in
// Ogg framing so ffplay can demux it.
func (c *webrtcConn) playRemote(remote *webrtc.TrackRemote) {
	out, err := c.sink.Attach("ogg")
	if err != nil {
		c.log.Warn().Err(err).Msg("attach playback sink")
		return
	}

	codec := remote.Codec()
	channels := codec.Channels
	if channels == 0 {
		channels = 1
	}
	ogg, err := oggwriter.NewWith(out, codec.ClockRate, channels)
	if err != nil {
		c.log.Warn().Err(err).Msg("create playback writer")
		_ = out.Close()
		return
	}
	defer func() {
		_ = ogg.Close()
	}()

	for {
		pkt, _, err := remote.ReadRTP()
		if err != nil {
			return
		}
		if err := ogg.WriteRTP(pkt); err != nil {
			return
		}
	}
}
