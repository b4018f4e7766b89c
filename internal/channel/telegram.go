package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/outflowhq/outflow-backend/internal/models"
)

// telegramConfig is the credential shape for a Telegram bot
type telegramConfig struct {
	BotToken string `json:"bot_token"`
}

type telegramAdapter struct {
	// newBot is swapped in tests to avoid constructing real bots.
	newBot func(token string) (telegramSender, error)
}

// telegramSender is the slice of the bot API the adapter needs
type telegramSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// NewTelegramAdapter creates the Telegram bot-platform adapter. Bots are
// built in offline mode since the token was verified when the credential
// was connected; no getMe round-trip per send.
func NewTelegramAdapter() Adapter {
	return &telegramAdapter{
		newBot: func(token string) (telegramSender, error) {
			return tele.NewBot(tele.Settings{Token: token, Offline: true})
		},
	}
}

func (a *telegramAdapter) Channel() string {
	return models.ChannelTelegram
}

func (a *telegramAdapter) Send(ctx context.Context, cred *models.Credential, address, content string) (string, error) {
	var cfg telegramConfig
	if err := json.Unmarshal(cred.Config, &cfg); err != nil {
		return "", fmt.Errorf("invalid telegram credential config: %w", err)
	}
	if cfg.BotToken == "" {
		return "", fmt.Errorf("telegram credential missing bot_token")
	}

	chatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid telegram chat id %q: %w", address, err)
	}

	bot, err := a.newBot(cfg.BotToken)
	if err != nil {
		return "", fmt.Errorf("failed to build telegram bot: %w", err)
	}

	sent, err := bot.Send(tele.ChatID(chatID), content)
	if err != nil {
		return "", fmt.Errorf("telegram send failed: %w", err)
	}

	return strconv.Itoa(sent.ID), nil
}
