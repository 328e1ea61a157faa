package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// handleMintToken performs the server-to-server session mint against the
// upstream realtime provider. The durable API key never leaves this
// process; only the short-lived client secret is relayed.
func (s *Server) handleMintToken(w http.ResponseWriter, r *http.Request) {
	if s.cfg.OpenAIAPIKey == "" {
		s.metrics.CountCredentialMint("unconfigured")
		respondError(w, http.StatusServiceUnavailable, "not_configured", "upstream API key is not configured")
		return
	}

	payload, err := json.Marshal(map[string]any{
		"model": s.cfg.RealtimeModel,
		"voice": s.cfg.RealtimeVoice,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	url := strings.TrimRight(s.cfg.OpenAIBaseURL, "/") + "/v1/realtime/sessions"
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.OpenAIAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.metrics.CountCredentialMint("unreachable")
		s.log.Error().Err(err).Msg("upstream session mint failed")
		respondError(w, http.StatusBadGateway, "upstream_unreachable", err.Error())
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadGateway, "upstream_read", err.Error())
		return
	}
	if resp.StatusCode != http.StatusOK {
		s.metrics.CountCredentialMint("upstream_error")
		s.log.Error().Int("status", resp.StatusCode).Msg("upstream session mint rejected")
		respondError(w, resp.StatusCode, "upstream_error", fmt.Sprintf("upstream returned %d", resp.StatusCode))
		return
	}

	var minted struct {
		ClientSecret struct {
			Value string `json:"value"`
		} `json:"client_secret"`
	}
	if err := json.Unmarshal(body, &minted); err != nil || minted.ClientSecret.Value == "" {
		s.metrics.CountCredentialMint("bad_payload")
		respondError(w, http.StatusBadGateway, "upstream_payload", "upstream response missing client secret")
		return
	}

	s.metrics.CountCredentialMint("ok")
	respondJSON(w, http.StatusOK, map[string]string{"token": minted.ClientSecret.Value})
}
