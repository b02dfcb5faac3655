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

// SMSSender posts short-form messages to an SMS gateway's HTTP API.
type SMSSender struct {
	cfg        *config.Config
	httpClient *http.Client
}

func NewSMSSender(cfg *config.Config) *SMSSender {
	return &SMSSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SMSSender) Channel() Channel { return ChannelSMS }

func (s *SMSSender) Configured() bool {
	sms := s.cfg.CurrentNotify().SMS
	return sms.APIURL != "" && sms.APIKey != ""
}

type smsRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
	Ref  string `json:"ref,omitempty"`
}

type smsResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
}

func (s *SMSSender) Send(ctx context.Context, out Outgoing) (string, error) {
	sms := s.cfg.CurrentNotify().SMS

	body, err := json.Marshal(smsRequest{
		From: sms.Sender,
		To:   out.To,
		Text: out.Body,
		Ref:  out.CorrelationID,
	})
	if err != nil {
		return "", fmt.Errorf("sms: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sms.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("sms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+sms.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms: gateway call: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("sms: gateway rejected message: status %d: %s", resp.StatusCode, data)
	}

	var parsed smsResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("sms: decode response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("sms: provider error: %s", parsed.Error)
	}
	return parsed.MessageID, nil
}
