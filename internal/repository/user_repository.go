package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, user_type, display_name, is_active, telegram_chat_id, COALESCE(link_code, ''), created_at`

type UserRepository struct {
	db *base.Repository
}

func NewUserRepository(db *base.Repository) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.UserType, &u.DisplayName, &u.IsActive, &u.TelegramChatID, &u.LinkCode, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID получает пользователя по ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil // Пользователь не найден
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// GetByLinkCode получает пользователя по коду привязки Telegram
func (r *UserRepository) GetByLinkCode(ctx context.Context, code string) (*model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE link_code = $1`, code))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by link code: %w", err)
	}
	return u, nil
}

// GetByTelegramChatID получает пользователя, привязавшего этот чат
func (r *UserRepository) GetByTelegramChatID(ctx context.Context, chatID int64) (*model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_chat_id = $1 LIMIT 1`, chatID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by telegram chat: %w", err)
	}
	return u, nil
}

// LinkTelegramChat привязывает чат и сжигает код привязки
func (r *UserRepository) LinkTelegramChat(ctx context.Context, userID, chatID int64) error {
	affected, err := r.db.ExecAffected(ctx,
		`UPDATE users SET telegram_chat_id = $1, link_code = NULL WHERE id = $2`,
		chatID, userID,
	)
	if err != nil {
		return fmt.Errorf("link telegram chat: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}

// ListActive получает активных пользователей указанных типов
func (r *UserRepository) ListActive(ctx context.Context, types ...model.UserType) ([]*model.User, error) {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE is_active AND user_type = ANY($1) ORDER BY id`,
		names,
	)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}
