// Package bot answers Telegram chats. Notifications go out through the
// notify package; this loop only lets users find their chat id and check
// what they owe.
package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"hanapbahay/internal/database"
	"hanapbahay/internal/metrics"
	"hanapbahay/internal/models"
	"hanapbahay/internal/notify"
	"hanapbahay/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	updateTimeout  = 60
	handlerTimeout = 30 * time.Second
	maxDueLines    = 5
)

// Directory resolves a chat to the user that linked it.
type Directory interface {
	GetUserByTelegramChat(ctx context.Context, chatID int64) (*models.User, error)
}

// PaymentLister lists the payments a user can see.
type PaymentLister interface {
	ListForUser(ctx context.Context, actor service.Actor, statuses []string) ([]*models.RentPayment, error)
}

type Bot struct {
	api      API
	users    Directory
	payments PaymentLister
	logger   *zerolog.Logger
}

func NewBot(api API, users Directory, payments PaymentLister, logger *zerolog.Logger) *Bot {
	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}
	return &Bot{
		api:      api,
		users:    users,
		payments: payments,
		logger:   logger,
	}
}

// Start polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = updateTimeout

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	b.logger.Info().Str("username", b.api.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}

	updateCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	l := b.logger.With().
		Str("request_id", uuid.New().String()).
		Int64("chat_id", update.Message.Chat.ID).
		Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		command := update.Message.Command()
		metrics.IncBotCommand(command)
		reply := b.handleCommand(updateCtx, command, update.Message.Chat.ID)
		if reply == "" {
			return
		}
		if _, err := b.api.Send(tgbotapi.NewMessage(update.Message.Chat.ID, reply)); err != nil {
			l.Error().Err(err).Str("command", command).Msg("Failed to send reply")
		}
	})
}

func (b *Bot) handleCommand(ctx context.Context, command string, chatID int64) string {
	switch command {
	case "start":
		return fmt.Sprintf("Welcome to HanapBahay! Your chat id is %d.\n"+
			"Link it in the app to get booking and rent updates here.", chatID)
	case "chatid":
		return fmt.Sprintf("%d", chatID)
	case "help":
		return "/chatid - show the id to link in the app\n/due - list what you still owe"
	case "due":
		return b.dueText(ctx, chatID)
	default:
		return "Unknown command. Try /help."
	}
}

var unsettled = []string{
	models.PaymentPending,
	models.PaymentOverdue,
	models.PaymentPartial,
	models.PaymentPendingOwnerConfirmation,
}

func (b *Bot) dueText(ctx context.Context, chatID int64) string {
	user, err := b.users.GetUserByTelegramChat(ctx, chatID)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Sprintf("This chat is not linked yet. Link chat id %d in the app first.", chatID)
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to resolve chat")
		return "Something went wrong. Please try again later."
	}

	list, err := b.payments.ListForUser(ctx, service.Actor{UserID: user.ID, Role: user.Role}, unsettled)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", user.ID).Msg("Failed to list payments")
		return "Something went wrong. Please try again later."
	}
	if len(list) == 0 {
		return "Nothing due. Salamat!"
	}

	var sb strings.Builder
	sb.WriteString("Unsettled rent:\n")
	for i, p := range list {
		if i == maxDueLines {
			fmt.Fprintf(&sb, "...and %d more in the app", len(list)-maxDueLines)
			break
		}
		fmt.Fprintf(&sb, "%s  %s  due %s  (%s)\n",
			p.Period, notify.Peso(p.Balance()), p.DueDate.Format("Jan 2"), p.Status)
	}
	return strings.TrimRight(sb.String(), "\n")
}
