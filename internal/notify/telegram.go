package notify

import (
	"context"
	"fmt"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/RAVBLACK/StrawHats/internal/config"
)

// TelegramMessenger sends messages to a single chat through the Bot API.
type TelegramMessenger struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramMessenger resolves the bot token from the environment and
// verifies it against the Bot API.
func NewTelegramMessenger(cfg config.TelegramConfig) (*TelegramMessenger, error) {
	token := os.Getenv(cfg.TokenEnv)
	if token == "" {
		return nil, fmt.Errorf("telegram token not set in environment variable %s", cfg.TokenEnv)
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}

	return &TelegramMessenger{bot: bot, chatID: cfg.ChatID}, nil
}

func (m *TelegramMessenger) Send(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(m.chatID, subject+"\n\n"+body)
	if _, err := m.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
