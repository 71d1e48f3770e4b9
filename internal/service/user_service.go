package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/trial_scheduler/internal/apperr"
	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"go.uber.org/zap"
)

// UserRecords is the part of the user table the bot needs.
type UserRecords interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByLinkCode(ctx context.Context, code string) (*model.User, error)
	GetByTelegramChatID(ctx context.Context, chatID int64) (*model.User, error)
	LinkTelegramChat(ctx context.Context, userID, chatID int64) error
}

type InboxStore interface {
	ListUnread(ctx context.Context, userID int64, userType model.UserType, limit int) ([]*model.Notification, error)
	MarkAllRead(ctx context.Context, userID int64, userType model.UserType, at time.Time) (int64, error)
}

// UserService links platform accounts to Telegram chats and serves their inbox.
type UserService struct {
	users  UserRecords
	inbox  InboxStore
	logger *zap.Logger
	now    func() time.Time
}

func NewUserService(users UserRecords, inbox InboxStore, logger *zap.Logger) *UserService {
	return &UserService{
		users:  users,
		inbox:  inbox,
		logger: logger,
		now:    time.Now,
	}
}

// LinkTelegram привязывает чат к пользователю по одноразовому коду
func (s *UserService) LinkTelegram(ctx context.Context, code string, chatID int64) (*model.User, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.Validation("link code is required")
	}

	user, err := s.users.GetByLinkCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get user by link code: %w", err)
	}
	if user == nil {
		return nil, apperr.Validation("link code is unknown or already used")
	}
	if !user.IsActive {
		return nil, apperr.Forbidden("account %d is deactivated", user.ID)
	}

	if err := s.users.LinkTelegramChat(ctx, user.ID, chatID); err != nil {
		return nil, fmt.Errorf("link telegram chat: %w", err)
	}
	user.TelegramChatID = &chatID
	user.LinkCode = ""

	s.logger.Info("Telegram chat linked",
		zap.Int64("user_id", user.ID),
		zap.String("user_type", string(user.UserType)),
		zap.Int64("chat_id", chatID),
	)
	return user, nil
}

// GetByTelegramChat returns nil when the chat is not linked.
func (s *UserService) GetByTelegramChat(ctx context.Context, chatID int64) (*model.User, error) {
	return s.users.GetByTelegramChatID(ctx, chatID)
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// Inbox returns up to limit unread notifications and marks everything read.
func (s *UserService) Inbox(ctx context.Context, user *model.User, limit int) ([]*model.Notification, error) {
	if limit <= 0 {
		limit = 10
	}
	unread, err := s.inbox.ListUnread(ctx, user.ID, user.UserType, limit)
	if err != nil {
		return nil, fmt.Errorf("list unread: %w", err)
	}
	if len(unread) == 0 {
		return nil, nil
	}

	if _, err := s.inbox.MarkAllRead(ctx, user.ID, user.UserType, s.now()); err != nil {
		// список уже получен, отметка прочтения не критична
		s.logger.Warn("Failed to mark notifications read", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	return unread, nil
}
