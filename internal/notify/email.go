package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bayline/shop-sync-service/internal/config"
)

// EmailSender posts long-form HTML messages to a transactional email
// provider's HTTP API.
type EmailSender struct {
	cfg        *config.Config
	httpClient *http.Client
}

func NewEmailSender(cfg *config.Config) *EmailSender {
	return &EmailSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *EmailSender) Channel() Channel { return ChannelEmail }

func (s *EmailSender) Configured() bool {
	email := s.cfg.CurrentNotify().Email
	return email.APIURL != "" && email.APIKey != ""
}

type emailRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
	Ref      string `json:"ref,omitempty"`
}

type emailResponse struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

func (s *EmailSender) Send(ctx context.Context, out Outgoing) (string, error) {
	email := s.cfg.CurrentNotify().Email

	body, err := json.Marshal(emailRequest{
		From:     email.From,
		To:       out.To,
		Subject:  out.Subject,
		HTMLBody: out.Body,
		Ref:      out.CorrelationID,
	})
	if err != nil {
		return "", fmt.Errorf("email: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, email.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("email: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+email.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("email: provider call: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("email: provider rejected message: status %d: %s", resp.StatusCode, data)
	}

	var parsed emailResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("email: decode response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("email: provider error: %s", parsed.Error)
	}
	return parsed.ID, nil
}
