package realtime

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SignalingClient performs the single HTTPS offer/answer exchange with the
// upstream realtime endpoint.
type SignalingClient struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

// Exchange posts the local SDP offer authorized by the ephemeral
// credential and returns the remote SDP answer.
func (c *SignalingClient) Exchange(ctx context.Context, cred Credential, offerSDP string) (string, error) {
	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/v1/realtime?model=" + url.QueryEscape(c.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(offerSDP))
	if err != nil {
		return "", &HandshakeError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+cred.Token)
	req.Header.Set("Content-Type", "application/sdp")
	req.Header.Set("OpenAI-Beta", "realtime=v1")

	resp, err := client.Do(req)
	if err != nil {
		return "", &HandshakeError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &HandshakeError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HandshakeError{Err: fmt.Errorf("signaling exchange returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	answer := string(body)
	if !strings.Contains(answer, "v=0") {
		return "", &HandshakeError{Err: fmt.Errorf("signaling exchange returned a non-SDP body")}
	}
	return answer, nil
}
