package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// sweepTimeout ограничивает один прогон очистки
const sweepTimeout = 2 * time.Minute

// MeetingSweeper закрывает комнаты завершённых процессов
type MeetingSweeper interface {
	SweepCompletedMeetings(ctx context.Context) (int64, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	cron    *cron.Cron
	sweeper MeetingSweeper
	timeout time.Duration
	logger  *zap.Logger
}

// NewScheduler создаёт новый планировщик; schedule - cron-выражение или @every
func NewScheduler(sweeper MeetingSweeper, schedule string, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		sweeper: sweeper,
		timeout: sweepTimeout,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("schedule meeting sweep %q: %w", schedule, err)
	}
	return s, nil
}

// Start запускает фоновые задачи
func (s *Scheduler) Start() {
	s.logger.Info("Starting background scheduler")
	// Первый прогон сразу при старте
	go s.sweep()
	s.cron.Start()
}

// Stop останавливает планировщик и ждёт текущую задачу
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	closed, err := s.sweeper.SweepCompletedMeetings(ctx)
	if err != nil {
		s.logger.Error("Failed to sweep completed meetings", zap.Error(err))
		return
	}
	if closed > 0 {
		s.logger.Info("Closed meetings of finished trials", zap.Int64("closed", closed))
	}
}
