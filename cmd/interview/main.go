// Command interview runs one realtime voice mock interview from the
// terminal: it fetches an ephemeral credential from the backend,
// establishes the session with the upstream voice model, streams the
// microphone, prints the live transcript, and on exit posts the
// transcript back to the backend for scoring.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/starprep/starprep/internal/audio"
	"github.com/starprep/starprep/internal/config"
	"github.com/starprep/starprep/internal/handoff"
	"github.com/starprep/starprep/internal/observability"
	"github.com/starprep/starprep/internal/realtime"
)

func main() {
	var (
		topic      = flag.String("topic", "conflict", "behavioral topic to practice (conflict, leadership, failure, ...)")
		backend    = flag.String("backend", "", "backend base URL (defaults to BACKEND_URL)")
		transport  = flag.String("transport", "auto", "realtime transport: auto, webrtc or websocket")
		noPlayback = flag.Bool("no-playback", false, "discard interviewer audio instead of playing it")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.BackendURL = *backend
	}

	log := observability.NewLogger(cfg.LogLevel, true)

	capture := audio.Capture{
		FFmpegPath:  cfg.FFmpegPath,
		InputFormat: cfg.CaptureFormat,
		InputDevice: cfg.CaptureDevice,
	}
	var sink audio.Sink = &audio.FFplaySink{FFplayPath: cfg.FFplayPath}
	if *noPlayback {
		sink = audio.DiscardSink{}
	}

	webrtcDialer := &realtime.WebRTCDialer{
		Capture: capture,
		Sink:    sink,
		Signaling: &realtime.SignalingClient{
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.RealtimeModel,
		},
		ChannelOpenTimeout: cfg.ChannelOpenTimeout,
		Log:                log,
	}
	websocketDialer := &realtime.WebSocketDialer{
		Capture: capture,
		Sink:    sink,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.RealtimeModel,
		Log:     log,
	}

	var dialer realtime.Dialer
	switch strings.ToLower(*transport) {
	case "webrtc":
		dialer = webrtcDialer
	case "websocket":
		dialer = websocketDialer
	case "auto":
		dialer = &fallbackDialer{primary: webrtcDialer, secondary: websocketDialer}
	default:
		fmt.Fprintf(os.Stderr, "invalid -transport %q (expected auto|webrtc|websocket)\n", *transport)
		os.Exit(2)
	}

	engine := &realtime.Engine{
		Credentials: &realtime.HTTPCredentialFetcher{BaseURL: cfg.BackendURL},
		Dialer:      dialer,
		Submitter:   &handoff.HTTPSubmitter{BaseURL: cfg.BackendURL},
		Sink:        sink,
		Settings: realtime.SessionSettings{
			Voice:              cfg.RealtimeVoice,
			TranscriptionModel: cfg.TranscriptionModel,
			VADThreshold:       cfg.VADThreshold,
			VADSilenceMs:       cfg.VADSilenceMs,
		},
		ConfigureAckTimeout: cfg.ConfigureAckTimeout,
		Log:                 log,
	}

	fmt.Printf("Starting a mock interview on %q. Press Ctrl-C to finish.\n\n", *topic)

	session, err := engine.Start(context.Background(), *topic)
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not start the interview:", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nEnding the interview...")
		session.End()
	}()

	printTranscript(session)

	if err := session.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "\nsession ended with an error:", err)
	}
	fmt.Printf("\nInterview finished (%s). Score it with:\n", session.State())
	fmt.Printf("  curl -X POST %s/v1/analyze -d '{\"session_id\":%q}'\n", strings.TrimRight(cfg.BackendURL, "/"), session.ID)
}

// printTranscript streams entries to stdout as they complete, then flushes
// whatever is left at teardown.
func printTranscript(s *realtime.Session) {
	printed := 0
	flushCompleted := func(upto int) {
		entries := s.Transcript()
		for ; printed < upto && printed < len(entries); printed++ {
			e := entries[printed]
			fmt.Printf("[%s] %s\n", e.From, e.Text)
		}
	}

	for {
		select {
		case <-s.Updates():
			// An entry is complete once a later entry exists.
			flushCompleted(len(s.Transcript()) - 1)
		case <-s.Done():
			flushCompleted(len(s.Transcript()))
			return
		}
	}
}

// fallbackDialer tries WebRTC first and falls back to the websocket
// transport when establishment fails.
type fallbackDialer struct {
	primary   realtime.Dialer
	secondary realtime.Dialer
}

func (d *fallbackDialer) Dial(ctx context.Context, cred realtime.Credential) (realtime.Conn, error) {
	conn, err := d.primary.Dial(ctx, cred)
	if err == nil {
		return conn, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	var media *realtime.MediaAccessError
	if errors.As(err, &media) {
		// Capture failed; the websocket transport needs the mic too.
		return nil, err
	}
	fmt.Fprintln(os.Stderr, "webrtc establishment failed, retrying over websocket:", err)
	return d.secondary.Dial(ctx, cred)
}
