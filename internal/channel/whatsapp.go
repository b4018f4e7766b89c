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

const defaultWhatsAppAPIURL = "https://graph.facebook.com/v19.0"

// whatsAppConfig is the credential shape for the WhatsApp business API
type whatsAppConfig struct {
	AccessToken   string `json:"access_token"`
	PhoneNumberID string `json:"phone_number_id"`
	APIURL        string `json:"api_url,omitempty"`
}

type whatsAppAdapter struct {
	client *http.Client
}

// NewWhatsAppAdapter creates the WhatsApp business API adapter
func NewWhatsAppAdapter(client *http.Client) Adapter {
	return &whatsAppAdapter{client: client}
}

func (a *whatsAppAdapter) Channel() string {
	return models.ChannelWhatsApp
}

func (a *whatsAppAdapter) Send(ctx context.Context, cred *models.Credential, address, content string) (string, error) {
	var cfg whatsAppConfig
	if err := json.Unmarshal(cred.Config, &cfg); err != nil {
		return "", fmt.Errorf("invalid whatsapp credential config: %w", err)
	}
	if cfg.AccessToken == "" || cfg.PhoneNumberID == "" {
		return "", fmt.Errorf("whatsapp credential missing access_token or phone_number_id")
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultWhatsAppAPIURL
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                address,
		"type":              "text",
		"text":              map[string]string{"body": content},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", apiURL, cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build whatsapp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("whatsapp API returned %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode whatsapp response: %w", err)
	}
	if len(result.Messages) == 0 {
		return "", fmt.Errorf("whatsapp response contained no message id")
	}

	return result.Messages[0].ID, nil
}
