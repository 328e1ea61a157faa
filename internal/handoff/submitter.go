package handoff

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// StoreSubmitter writes records straight into a Store and optionally
// notifies downstream consumers. Used when session engine and backend run
// in the same process.
type StoreSubmitter struct {
	Store    Store
	Notifier *Notifier
	Log      zerolog.Logger
}

func (s *StoreSubmitter) Submit(ctx context.Context, sessionID string, rec Record) error {
	if err := s.Store.Save(ctx, sessionID, rec); err != nil {
		return err
	}
	if s.Notifier != nil {
		// Notification is advisory; the record is already durable.
		if err := s.Notifier.Notify(ctx, sessionID, rec); err != nil {
			s.Log.Warn().Err(err).Str("session_id", sessionID).Msg("handoff notification failed")
		}
	}
	return nil
}

// HTTPSubmitter posts records to the backend's transcript endpoint. Used by
// the interview CLI.
type HTTPSubmitter struct {
	BaseURL string
	Client  *http.Client
}

func (s *HTTPSubmitter) Submit(ctx context.Context, sessionID string, rec Record) error {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	url := strings.TrimRight(s.BaseURL, "/") + "/v1/interviews/" + sessionID + "/transcript"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("submit transcript: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return fmt.Errorf("submit transcript: status %d: %s", res.StatusCode, string(snippet))
	}
	return nil
}
