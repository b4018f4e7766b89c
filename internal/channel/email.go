package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/google/uuid"

	"github.com/outflowhq/outflow-backend/internal/models"
)

// emailConfig is the credential shape for an SMTP relay
type emailConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
	Subject  string `json:"subject,omitempty"`
}

type emailAdapter struct {
	// sendMail is swapped in tests; smtp.SendMail in production.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailAdapter creates the SMTP email adapter
func NewEmailAdapter() Adapter {
	return &emailAdapter{sendMail: smtp.SendMail}
}

func (a *emailAdapter) Channel() string {
	return models.ChannelEmail
}

func (a *emailAdapter) Send(ctx context.Context, cred *models.Credential, address, content string) (string, error) {
	var cfg emailConfig
	if err := json.Unmarshal(cred.Config, &cfg); err != nil {
		return "", fmt.Errorf("invalid email credential config: %w", err)
	}
	if cfg.Host == "" || cfg.From == "" {
		return "", fmt.Errorf("email credential missing host or from")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}

	subject := cfg.Subject
	if subject == "" {
		subject = "A message from " + cfg.From
	}

	// The message ID doubles as the provider message ID: SMTP relays echo
	// it back in delivery notifications.
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), cfg.Host)

	var msg strings.Builder
	fmt.Fprintf(&msg, "Message-ID: %s\r\n", messageID)
	fmt.Fprintf(&msg, "From: %s\r\n", cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", address)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(content)

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	if err := a.sendMail(addr, auth, cfg.From, []string{address}, []byte(msg.String())); err != nil {
		return "", fmt.Errorf("smtp send failed: %w", err)
	}

	return messageID, nil
}
