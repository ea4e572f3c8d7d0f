package notify

import (
	"fmt"

	"hanapbahay/internal/config"
	"hanapbahay/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramChannel delivers notifications to users that linked a chat.
type TelegramChannel struct {
	bot domain.TelegramSender
}

func NewTelegramChannel(bot domain.TelegramSender) *TelegramChannel {
	return &TelegramChannel{
		bot: bot,
	}
}

// NewBotAPI connects to Telegram with the configured token.
func NewBotAPI(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	return bot, nil
}

func (c *TelegramChannel) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	return c.bot.Send(msg)
}
