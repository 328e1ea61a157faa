package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"
)

// Capture acquires the local microphone by spawning an ffmpeg subprocess.
// Two output shapes are supported: Ogg/Opus pages for the WebRTC track and
// raw PCM16LE for the websocket transport.
type Capture struct {
	FFmpegPath string
	// InputFormat is the ffmpeg demuxer (pulse, alsa, avfoundation, dshow).
	// Empty selects a platform default.
	InputFormat string
	InputDevice string
}

func (c Capture) command() string {
	if c.FFmpegPath == "" {
		return "ffmpeg"
	}
	return c.FFmpegPath
}

func (c Capture) inputArgs() []string {
	format := c.InputFormat
	if format == "" {
		switch runtime.GOOS {
		case "darwin":
			format = "avfoundation"
		case "windows":
			format = "dshow"
		default:
			format = "pulse"
		}
	}
	device := c.InputDevice
	if device == "" {
		device = "default"
	}
	return []string{"-f", format, "-i", device}
}

// StartOpus begins capturing and returns an Ogg/Opus stream. Opus pages are
// paginated at 20ms so they can be fed to a WebRTC sample track directly.
func (c Capture) StartOpus(ctx context.Context) (io.ReadCloser, error) {
	args := []string{"-nostdin", "-hide_banner", "-loglevel", "warning"}
	args = append(args, c.inputArgs()...)
	args = append(args,
		"-ac", "1",
		"-ar", "48000",
		"-c:a", "libopus",
		"-page_duration", "20000",
		"-f", "ogg",
		"-",
	)
	return c.start(ctx, args)
}

// StartPCM begins capturing and returns raw PCM16LE mono at the given rate.
func (c Capture) StartPCM(ctx context.Context, sampleRate int) (io.ReadCloser, error) {
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	args := []string{"-nostdin", "-hide_banner", "-loglevel", "warning"}
	args = append(args, c.inputArgs()...)
	args = append(args,
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-f", "s16le",
		"-",
	)
	return c.start(ctx, args)
}

func (c Capture) start(ctx context.Context, args []string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, c.command(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// Detect immediate failures (no such device, permission denied) before
	// handing the stream to the caller.
	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, trimmed(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	return &captureStream{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

type captureStream struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *captureStream) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *captureStream) Close() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeExitErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			if err, ok := <-s.waitErr; ok {
				s.stopErr = normalizeExitErr(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}

		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, trimmed(s.stderr.String()))
		}
	})
	return s.stopErr
}

// ffmpeg exits non-zero when interrupted; that is a normal stop, not an error.
func normalizeExitErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimmed(s string) string {
	return string(bytes.TrimSpace([]byte(s)))
}
