package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/trial_scheduler/internal/apperr"
	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type userTable struct {
	byID   map[int64]*model.User
	linked map[int64]int64
}

func (u *userTable) GetByID(_ context.Context, id int64) (*model.User, error) {
	return u.byID[id], nil
}

func (u *userTable) GetByLinkCode(_ context.Context, code string) (*model.User, error) {
	for _, user := range u.byID {
		if user.LinkCode == code {
			return user, nil
		}
	}
	return nil, nil
}

func (u *userTable) GetByTelegramChatID(_ context.Context, chatID int64) (*model.User, error) {
	for userID, chat := range u.linked {
		if chat == chatID {
			return u.byID[userID], nil
		}
	}
	return nil, nil
}

func (u *userTable) LinkTelegramChat(_ context.Context, userID, chatID int64) error {
	u.linked[userID] = chatID
	u.byID[userID].LinkCode = ""
	return nil
}

type inbox struct {
	unread  []*model.Notification
	markErr error
	marked  int
}

func (i *inbox) ListUnread(_ context.Context, _ int64, _ model.UserType, limit int) ([]*model.Notification, error) {
	if len(i.unread) > limit {
		return i.unread[:limit], nil
	}
	return i.unread, nil
}

func (i *inbox) MarkAllRead(context.Context, int64, model.UserType, time.Time) (int64, error) {
	i.marked++
	return int64(len(i.unread)), i.markErr
}

func TestLinkTelegram(t *testing.T) {
	ctx := context.Background()
	users := &userTable{
		byID: map[int64]*model.User{
			1: {ID: 1, UserType: model.UserTypeJuror, IsActive: true, LinkCode: "JURY-1"},
			2: {ID: 2, UserType: model.UserTypeAttorney, IsActive: false, LinkCode: "GONE-2"},
		},
		linked: map[int64]int64{},
	}
	svc := NewUserService(users, &inbox{}, zap.NewNop())

	u, err := svc.LinkTelegram(ctx, " JURY-1 ", 777)
	require.NoError(t, err)
	require.NotNil(t, u.TelegramChatID)
	assert.Equal(t, int64(777), *u.TelegramChatID)

	again, err := svc.GetByTelegramChat(ctx, 777)
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.ID)

	_, err = svc.LinkTelegram(ctx, "JURY-1", 778)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = svc.LinkTelegram(ctx, "GONE-2", 779)
	assert.True(t, apperr.HasCode(err, apperr.CodeForbidden))

	_, err = svc.LinkTelegram(ctx, "", 779)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestInbox(t *testing.T) {
	ctx := context.Background()
	box := &inbox{unread: []*model.Notification{{ID: 1}, {ID: 2}, {ID: 3}}}
	svc := NewUserService(&userTable{}, box, zap.NewNop())
	user := &model.User{ID: 5, UserType: model.UserTypeJuror}

	got, err := svc.Inbox(ctx, user, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, box.marked)

	box.markErr = errors.New("db down")
	got, err = svc.Inbox(ctx, user, 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	empty := NewUserService(&userTable{}, &inbox{}, zap.NewNop())
	got, err = empty.Inbox(ctx, user, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
