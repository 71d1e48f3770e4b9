package notify

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"go.uber.org/zap"
)

type ActiveUserLister interface {
	ListActive(ctx context.Context, types ...model.UserType) ([]*model.User, error)
}

// Broadcaster sends the same notification to every active user of the given types.
type Broadcaster struct {
	users  ActiveUserLister
	sink   Sink
	logger *zap.Logger
}

func NewBroadcaster(users ActiveUserLister, sink Sink, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{users: users, sink: sink, logger: logger}
}

// Broadcast returns how many users were notified. Per-user failures are logged
// and do not stop the loop.
func (b *Broadcaster) Broadcast(ctx context.Context, n model.Notification, types ...model.UserType) (int, error) {
	users, err := b.users.ListActive(ctx, types...)
	if err != nil {
		return 0, fmt.Errorf("list broadcast recipients: %w", err)
	}

	sent := 0
	for _, u := range users {
		msg := n
		msg.UserID = u.ID
		msg.UserType = u.UserType
		if err := b.sink.Notify(ctx, msg); err != nil {
			b.logger.Warn("Failed to deliver broadcast notification",
				zap.Int64("user_id", u.ID),
				zap.String("type", n.Type),
				zap.Error(err),
			)
			continue
		}
		sent++
	}

	b.logger.Info("Broadcast sent",
		zap.String("type", n.Type),
		zap.Int("recipients", len(users)),
		zap.Int("delivered", sent),
	)
	return sent, nil
}
