// Package notify delivers user notifications produced by the scheduling core.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"go.uber.org/zap"
)

// Sink accepts one notification for one user.
type Sink interface {
	Notify(ctx context.Context, n model.Notification) error
}

type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
}

// StoreSink persists notifications so clients can poll their inbox.
type StoreSink struct {
	store NotificationStore
}

func NewStoreSink(store NotificationStore) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Notify(ctx context.Context, n model.Notification) error {
	if err := s.store.Create(ctx, &n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}

// LogSink only writes the notification to the log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(_ context.Context, n model.Notification) error {
	fields := []zap.Field{
		zap.Int64("user_id", n.UserID),
		zap.String("user_type", string(n.UserType)),
		zap.String("type", n.Type),
		zap.String("title", n.Title),
	}
	if n.CaseID != nil {
		fields = append(fields, zap.Int64("case_id", *n.CaseID))
	}
	s.logger.Info("Notification", fields...)
	return nil
}

// Multi fans a notification out to every sink. All sinks are tried even if
// some fail; the returned error joins the failures.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, n model.Notification) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ForCase builds a notification bound to a case.
func ForCase(userID int64, userType model.UserType, caseID int64, typ, title, message string) model.Notification {
	return model.Notification{
		UserID:   userID,
		UserType: userType,
		CaseID:   &caseID,
		Type:     typ,
		Title:    title,
		Message:  message,
	}
}
