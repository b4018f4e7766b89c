package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/outflowhq/outflow-backend/internal/models"
)

// smsConfig is the credential shape for an HTTP SMS gateway
type smsConfig struct {
	APIURL   string `json:"api_url"`
	APIKey   string `json:"api_key"`
	SenderID string `json:"sender_id,omitempty"`
}

type smsAdapter struct {
	client *http.Client
}

// NewSMSAdapter creates the SMS gateway adapter
func NewSMSAdapter(client *http.Client) Adapter {
	return &smsAdapter{client: client}
}

func (a *smsAdapter) Channel() string {
	return models.ChannelSMS
}

func (a *smsAdapter) Send(ctx context.Context, cred *models.Credential, address, content string) (string, error) {
	var cfg smsConfig
	if err := json.Unmarshal(cred.Config, &cfg); err != nil {
		return "", fmt.Errorf("invalid sms credential config: %w", err)
	}
	if cfg.APIURL == "" || cfg.APIKey == "" {
		return "", fmt.Errorf("sms credential missing api_url or api_key")
	}

	payload := map[string]string{
		"to":      address,
		"message": content,
	}
	if cfg.SenderID != "" {
		payload["from"] = cfg.SenderID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build sms request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode sms response: %w", err)
	}
	if result.MessageID == "" {
		return "", fmt.Errorf("sms gateway response contained no message id")
	}

	return result.MessageID, nil
}
