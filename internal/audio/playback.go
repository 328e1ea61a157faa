package audio

import (
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
)

// Sink receives the remote interviewer audio stream for playback. A sink
// is attached once per session and detached during teardown; Detach pauses
// playback and releases the output device.
type Sink interface {
	// Attach opens the sink for a stream in the given format ("ogg" or
	// "pcm16:<rate>") and returns the writer the transport pumps into.
	Attach(format string) (io.WriteCloser, error)
	// Detach stops playback and releases resources. Safe to call more
	// than once and without a prior Attach.
	Detach() error
}

// FFplaySink plays the remote stream through an ffplay subprocess.
type FFplaySink struct {
	FFplayPath string

	mu  sync.Mutex
	cmd *exec.Cmd
	in  io.WriteCloser
}

func (s *FFplaySink) Attach(format string) (io.WriteCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return nil, fmt.Errorf("playback sink already attached")
	}

	path := s.FFplayPath
	if path == "" {
		path = "ffplay"
	}

	args := []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}
	if rate, ok := pcmRate(format); ok {
		args = append(args, "-f", "s16le", "-ar", strconv.Itoa(rate), "-ch_layout", "mono")
	}
	args = append(args, "-i", "-")

	cmd := exec.Command(path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create ffplay stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffplay: %w", err)
	}

	s.cmd = cmd
	s.in = stdin
	return stdin, nil
}

func (s *FFplaySink) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil {
		return nil
	}
	_ = s.in.Close()
	err := s.cmd.Wait()
	s.cmd = nil
	s.in = nil
	return err
}

// DiscardSink swallows remote audio. Used for headless runs where only the
// transcript matters.
type DiscardSink struct{}

func (DiscardSink) Attach(string) (io.WriteCloser, error) { return nopWriteCloser{}, nil }
func (DiscardSink) Detach() error                         { return nil }

type nopWriteCloser struct{}

func (nopWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopWriteCloser) Close() error                { return nil }

func pcmRate(format string) (int, bool) {
	const prefix = "pcm16:"
	if len(format) > len(prefix) && format[:len(prefix)] == prefix {
		if rate, err := strconv.Atoi(format[len(prefix):]); err == nil && rate > 0 {
			return rate, true
		}
	}
	return 0, false
}
