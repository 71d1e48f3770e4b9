package notify

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// MessageSender is the part of *bot.Bot the sink needs.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// TelegramSink pushes notifications to users that linked a telegram chat.
// Users without a linked chat are skipped silently.
type TelegramSink struct {
	sender MessageSender
	users  UserLookup
}

func NewTelegramSink(sender MessageSender, users UserLookup) *TelegramSink {
	return &TelegramSink{sender: sender, users: users}
}

func (s *TelegramSink) Notify(ctx context.Context, n model.Notification) error {
	user, err := s.users.GetByID(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("get notification recipient: %w", err)
	}
	if user == nil || user.TelegramChatID == nil || !user.IsActive {
		return nil
	}

	_, err = s.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: *user.TelegramChatID,
		Text:   FormatText(n),
	})
	if err != nil {
		return fmt.Errorf("send telegram notification: %w", err)
	}
	return nil
}

// FormatText renders a notification as a plain chat message.
func FormatText(n model.Notification) string {
	text := "🔔 " + n.Title
	if n.Message != "" {
		text += "\n\n" + n.Message
	}
	if n.CaseID != nil {
		text += fmt.Sprintf("\n\nCase #%d", *n.CaseID)
	}
	return text
}
