package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Freeeeeet/trial_scheduler/internal/apperr"
	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const inboxLimit = 10

// HandleStart обрабатывает /start и /start <код привязки>
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	code := StartPayload(update.Message.Text)
	if code == "" {
		user, err := h.userService.GetByTelegramChat(ctx, chatID)
		if err != nil {
			h.logger.Error("Failed to get user", zap.Int64("chat_id", chatID), zap.Error(err))
			h.sendError(ctx, b, chatID, "❌ Something went wrong. Please try again later.")
			return
		}
		if user != nil {
			h.sendMessage(ctx, b, chatID, fmt.Sprintf("👋 Welcome back, %s!\n\n%s", displayName(user), helpText))
			return
		}
		h.sendMessage(ctx, b, chatID, "👋 Hi! Open the Telegram link from your account page to connect this chat.")
		return
	}

	user, err := h.userService.LinkTelegram(ctx, code, chatID)
	if err != nil {
		if appErr, ok := apperr.As(err); ok {
			h.sendError(ctx, b, chatID, "❌ "+appErr.Message)
			return
		}
		h.logger.Error("Failed to link telegram chat", zap.Int64("chat_id", chatID), zap.Error(err))
		h.sendError(ctx, b, chatID, "❌ Could not link this chat. Please try again later.")
		return
	}

	h.sendMessage(ctx, b, chatID, fmt.Sprintf(
		"✅ Linked to your %s account, %s.\n\nTrial updates will arrive here.\n\n%s",
		user.UserType, displayName(user), helpText,
	))
}

const helpText = "📚 Commands:\n" +
	"/mytrials - your cases and their status\n" +
	"/inbox - unread notifications\n" +
	"/help - this help"

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendMessage(ctx, b, update.Message.Chat.ID, helpText)
}

// errNoCaseList означает, что у роли нет своего списка дел
var errNoCaseList = errors.New("no case list for this role")

// casesFor выбирает список дел по роли: адвокат видит свои, присяжный те, где он в составе
func (h *Handlers) casesFor(ctx context.Context, user *model.User) ([]*model.Case, error) {
	switch user.UserType {
	case model.UserTypeAttorney:
		return h.cases.ListForAttorney(ctx, user.ID)
	case model.UserTypeJuror:
		return h.cases.ListForJuror(ctx, user.ID)
	}
	return nil, errNoCaseList
}

// HandleMyTrials показывает дела адвоката или присяжного
func (h *Handlers) HandleMyTrials(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	cases, err := h.casesFor(ctx, user)
	if errors.Is(err, errNoCaseList) {
		h.sendMessage(ctx, b, chatID, "ℹ️ /mytrials lists your own or seated cases. Use /inbox for trial updates.")
		return
	}
	if err != nil {
		h.logger.Error("Failed to list cases", zap.Int64("user_id", user.ID), zap.Error(err))
		h.sendError(ctx, b, chatID, "❌ Could not load your cases. Please try again later.")
		return
	}
	if len(cases) == 0 {
		h.sendMessage(ctx, b, chatID, "📭 You have no cases yet.")
		return
	}

	parts := make([]string, 0, len(cases))
	for _, c := range cases {
		parts = append(parts, FormatCase(c))
	}
	h.sendMessage(ctx, b, chatID, "⚖️ Your cases:\n\n"+strings.Join(parts, "\n\n"))
}

// HandleInbox показывает непрочитанные уведомления
func (h *Handlers) HandleInbox(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	unread, err := h.userService.Inbox(ctx, user, inboxLimit)
	if err != nil {
		h.logger.Error("Failed to load inbox", zap.Int64("user_id", user.ID), zap.Error(err))
		h.sendError(ctx, b, chatID, "❌ Could not load notifications. Please try again later.")
		return
	}
	if len(unread) == 0 {
		h.sendMessage(ctx, b, chatID, "📭 No unread notifications.")
		return
	}

	parts := make([]string, 0, len(unread))
	for _, n := range unread {
		parts = append(parts, FormatNotification(n))
	}
	h.sendMessage(ctx, b, chatID, strings.Join(parts, "\n\n"))
}
