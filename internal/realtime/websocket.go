package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/starprep/starprep/internal/audio"
)

const wsSampleRate = 24000

// WebSocketDialer runs the same control-plane protocol over a websocket.
// Audio travels in-band as base64 PCM16 instead of a negotiated media
// track; it is the fallback when WebRTC cannot be used.
type WebSocketDialer struct {
	Capture audio.Capture
	Sink    audio.Sink
	BaseURL string
	Model   string

	Log zerolog.Logger
}

func (d *WebSocketDialer) Dial(ctx context.Context, cred Credential) (Conn, error) {
	mic, err := d.Capture.StartPCM(ctx, wsSampleRate)
	if err != nil {
		return nil, &MediaAccessError{Err: err}
	}

	endpoint, err := wsEndpoint(d.BaseURL, d.Model)
	if err != nil {
		_ = mic.Close()
		return nil, &HandshakeError{Err: err}
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+cred.Token)
	headers.Set("OpenAI-Beta", "realtime=v1")

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		_ = mic.Close()
		return nil, &HandshakeError{Err: fmt.Errorf("dial realtime websocket: %w", err)}
	}

	out, err := d.Sink.Attach(fmt.Sprintf("pcm16:%d", wsSampleRate))
	if err != nil {
		_ = mic.Close()
		_ = ws.Close()
		return nil, &MediaAccessError{Err: fmt.Errorf("attach playback sink: %w", err)}
	}

	conn := &wsConn{
		ws:       ws,
		mic:      mic,
		playback: out,
		frames:   make(chan []byte, 256),
		failures: make(chan error, 4),
		log:      d.Log,
	}
	go conn.readLoop()
	go conn.pumpMicrophone()
	return conn, nil
}

func wsEndpoint(baseURL, model string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse realtime base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/realtime"
	q := u.Query()
	q.Set("model", model)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type wsConn struct {
	ws       *websocket.Conn
	mic      io.ReadCloser
	playback io.WriteCloser

	frames   chan []byte
	failures chan error

	writeMu    sync.Mutex
	framesOnce sync.Once
	mediaOnce  sync.Once
	closeOnce  sync.Once

	log zerolog.Logger
}

func (c *wsConn) Frames() <-chan []byte  { return c.frames }
func (c *wsConn) Failures() <-chan error { return c.failures }

func (c *wsConn) Send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *wsConn) CloseChannel() error {
	c.writeMu.Lock()
	err := c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(2*time.Second))
	c.writeMu.Unlock()
	return err
}

func (c *wsConn) StopMedia() {
	c.mediaOnce.Do(func() {
		_ = c.mic.Close()
	})
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.StopMedia()
		// Closing the socket unblocks the read loop, which owns the
		// frames channel and closes it on exit.
		err = c.ws.Close()
		_ = c.playback.Close()
	})
	return err
}

func (c *wsConn) shutdownFrames() {
	c.framesOnce.Do(func() { close(c.frames) })
}

func (c *wsConn) fail(err error) {
	select {
	case c.failures <- err:
	default:
	}
}

func (c *wsConn) readLoop() {
	defer c.shutdownFrames()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.fail(&TransportFailure{Reason: "websocket read: " + err.Error()})
			}
			return
		}

		// Assistant audio arrives in-band on this transport; decode and
		// play it here, then pass the frame on unchanged so the event
		// stream still sees the speaking indicator.
		var probe struct {
			Type  string `json:"type"`
			Delta string `json:"delta"`
		}
		if err := json.Unmarshal(data, &probe); err == nil && probe.Type == "response.audio.delta" {
			if pcm, err := base64.StdEncoding.DecodeString(probe.Delta); err == nil {
				_, _ = c.playback.Write(pcm)
			}
		}

		select {
		case c.frames <- data:
		default:
			c.log.Warn().Msg("control frame buffer full, dropping event")
		}
	}
}

// pumpMicrophone streams captured PCM to the upstream input buffer. With
// server VAD enabled no explicit commit is needed.
func (c *wsConn) pumpMicrophone() {
	buf := make([]byte, 4800) // 100ms at 24kHz mono PCM16
	for {
		n, err := io.ReadFull(c.mic, buf)
		if n > 0 {
			msg := map[string]any{
				"type":  "input_audio_buffer.append",
				"audio": base64.StdEncoding.EncodeToString(buf[:n]),
			}
			if err := c.Send(msg); err != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
