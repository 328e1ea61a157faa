package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Credential is the short-lived token minted by the backend intermediary.
// The durable upstream API key never reaches this process.
type Credential struct {
	Token string
}

type CredentialFetcher interface {
	FetchEphemeralCredential(ctx context.Context) (Credential, error)
}

// HTTPCredentialFetcher asks the backend's token endpoint for an ephemeral
// credential. No retry: a failure aborts session start.
type HTTPCredentialFetcher struct {
	BaseURL string
	Client  *http.Client
}

func (f *HTTPCredentialFetcher) FetchEphemeralCredential(ctx context.Context) (Credential, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	url := strings.TrimRight(f.BaseURL, "/") + "/v1/realtime/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Credential{}, &CredentialError{Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Credential{}, &CredentialError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Credential{}, &CredentialError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return Credential{}, &CredentialError{Err: fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Credential{}, &CredentialError{Err: fmt.Errorf("decode token response: %w", err)}
	}
	if payload.Token == "" {
		return Credential{}, &CredentialError{Err: fmt.Errorf("token response missing token field")}
	}
	return Credential{Token: payload.Token}, nil
}
