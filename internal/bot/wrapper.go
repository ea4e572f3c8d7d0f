package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// API is the part of the Telegram client the bot loop uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	StopReceivingUpdates()
	GetSelf() tgbotapi.User
}

// Wrapper adapts *tgbotapi.BotAPI to API.
type Wrapper struct {
	*tgbotapi.BotAPI
}

func (w *Wrapper) GetSelf() tgbotapi.User {
	return w.Self
}

func NewWrapper(bot *tgbotapi.BotAPI) *Wrapper {
	return &Wrapper{BotAPI: bot}
}
