package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"prepvio-subscription/internal/domain/model"
	"prepvio-subscription/internal/domain/ports/adapter"
)

var _ adapter.NotificationSink = (*TelegramSink)(nil)

type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSink mirrors notifications into an operations chat.
type TelegramSink struct {
	bot    botSender
	chatID int64
}

func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	if token == "" || chatID == 0 {
		return nil, errors.New("telegram token and chat id are required")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &TelegramSink{bot: bot, chatID: chatID}, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Deliver(ctx context.Context, n *model.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(s.chatID, formatMessage(n))
	msg.DisableWebPagePreview = true
	_, err := s.bot.Send(msg)
	return err
}

func formatMessage(n *model.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nuser: %s\n%s", n.Title, n.UserID, n.Message)
	keys := make([]string, 0, len(n.Meta))
	for k := range n.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %v", k, n.Meta[k])
	}
	return b.String()
}
