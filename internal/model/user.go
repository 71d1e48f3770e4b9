package model

import "time"

type UserType string

const (
	UserTypeAttorney UserType = "attorney"
	UserTypeJuror    UserType = "juror"
	UserTypeAdmin    UserType = "admin"
)

// Valid checks that the user type is known
func (t UserType) Valid() bool {
	switch t {
	case UserTypeAttorney, UserTypeJuror, UserTypeAdmin:
		return true
	}
	return false
}

type User struct {
	ID             int64     `json:"id"`
	UserType       UserType  `json:"user_type"`
	DisplayName    string    `json:"display_name"`
	IsActive       bool      `json:"is_active"`
	TelegramChatID *int64    `json:"telegram_chat_id"` // nil - не привязан к боту
	LinkCode       string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}
