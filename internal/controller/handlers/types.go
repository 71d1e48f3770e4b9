package handlers

import (
	"context"

	"github.com/Freeeeeet/trial_scheduler/internal/model"
	"github.com/Freeeeeet/trial_scheduler/internal/service"
	"go.uber.org/zap"
)

// CaseLister отдаёт дела пользователя для /mytrials
type CaseLister interface {
	ListForAttorney(ctx context.Context, attorneyID int64) ([]*model.Case, error)
	ListForJuror(ctx context.Context, jurorID int64) ([]*model.Case, error)
}

// Handlers содержит все зависимости для обработки команд
type Handlers struct {
	userService *service.UserService
	cases       CaseLister
	logger      *zap.Logger
}

// NewHandlers создаёт новый обработчик команд
func NewHandlers(userService *service.UserService, cases CaseLister, logger *zap.Logger) *Handlers {
	return &Handlers{
		userService: userService,
		cases:       cases,
		logger:      logger,
	}
}
