package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Freeeeeet/trial_scheduler/internal/comms"
	"github.com/Freeeeeet/trial_scheduler/internal/config"
	"github.com/Freeeeeet/trial_scheduler/internal/controller"
	"github.com/Freeeeeet/trial_scheduler/internal/controller/httpapi"
	"github.com/Freeeeeet/trial_scheduler/internal/lock"
	"github.com/Freeeeeet/trial_scheduler/internal/notify"
	"github.com/Freeeeeet/trial_scheduler/internal/repository"
	"github.com/Freeeeeet/trial_scheduler/internal/repository/base"
	"github.com/Freeeeeet/trial_scheduler/internal/service"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

// App собирает все зависимости сервиса
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	pool      *pgxpool.Pool
	redis     *redis.Client
	server    *http.Server
	bot       *controller.BotController
	scheduler *Scheduler
}

// New подключается к БД, применяет миграции и собирает сервисы
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("✅ Connected to database")

	a := &App{cfg: cfg, logger: logger, pool: pool}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	if !cfg.MigrationsDisabled {
		migrator, err := NewMigrator(a.pool, logger)
		if err != nil {
			return err
		}
		err = migrator.Run(ctx)
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("Failed to close migrator", zap.Error(closeErr))
		}
		if err != nil {
			return err
		}
	}

	db := base.NewRepository(a.pool)
	tx := base.NewTxManager(a.pool)

	cases := repository.NewCaseRepository(db)
	blocks := repository.NewSlotBlockRepository(db)
	applications := repository.NewJurorApplicationRepository(db)
	requests := repository.NewRescheduleRequestRepository(db)
	meetings := repository.NewTrialMeetingRepository(db)
	participants := repository.NewParticipantRepository(db)
	notifications := repository.NewNotificationRepository(db)
	users := repository.NewUserRepository(db)

	locker, err := a.locker(ctx)
	if err != nil {
		return err
	}

	sinks := notify.Multi{notify.NewStoreSink(notifications)}
	var tgBot *bot.Bot
	if cfg.TelegramToken != "" {
		tgBot, err = bot.New(cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("create telegram bot: %w", err)
		}
		sinks = append(sinks, notify.NewTelegramSink(tgBot, users))
	} else {
		logger.Info("TELEGRAM_TOKEN is not set, telegram delivery disabled")
	}
	sinks = append(sinks, notify.NewLogSink(logger))

	provider, err := comms.NewHTTPProvider(comms.HTTPConfig{
		BaseURL:     cfg.CommsBaseURL,
		APIKey:      cfg.CommsAPIKey,
		TokenSecret: cfg.CommsTokenSecret,
		TokenTTL:    cfg.CommsTokenTTL,
		Timeout:     cfg.ProviderTimeout,
	})
	if err != nil {
		return fmt.Errorf("create comms provider: %w", err)
	}

	broadcaster := notify.NewBroadcaster(users, sinks, logger)
	registry := service.NewSlotRegistry(cases, blocks, broadcaster, logger)
	gate := service.NewCapacityGate(cases, applications, cfg.Policy)

	trials := service.NewTrialService(cases, meetings, participants, applications, provider, tx, locker, sinks,
		service.TrialServiceConfig{Policy: cfg.Policy, ProviderTimeout: cfg.ProviderTimeout}, logger)
	caseService := service.NewCaseService(cases, requests, registry, gate, trials, tx, locker, sinks, cfg.Policy, logger)
	applicationService := service.NewApplicationService(cases, applications, gate, tx, locker, sinks, logger)
	reschedules := service.NewRescheduleService(cases, requests, applications, trials, registry, users, tx, locker, sinks, logger)
	userService := service.NewUserService(users, notifications, logger)

	api := &httpapi.API{
		Cases:          caseService,
		Applications:   applicationService,
		Reschedules:    reschedules,
		Trials:         trials,
		Slots:          registry,
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
	}
	a.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if tgBot != nil {
		a.bot = controller.NewBotController(tgBot, userService, caseService, logger)
	}

	a.scheduler, err = NewScheduler(trials, cfg.SweepSchedule, logger)
	return err
}

// locker выбирает Redis если он настроен, иначе локальные мьютексы (один инстанс)
func (a *App) locker(ctx context.Context) (lock.Locker, error) {
	if a.cfg.RedisAddr == "" {
		a.logger.Warn("REDIS_ADDR is not set, using in-process locks; run a single instance only")
		return lock.NewLocalLocker(), nil
	}

	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
	})
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	a.logger.Info("✅ Connected to redis", zap.String("addr", a.cfg.RedisAddr))
	return lock.NewRedisLocker(a.redis, 30*time.Second), nil
}

// Run блокируется до отмены ctx или падения HTTP сервера
func (a *App) Run(ctx context.Context) error {
	a.scheduler.Start()
	defer a.scheduler.Stop()

	if a.bot != nil {
		if err := a.bot.RegisterHandlers(ctx); err != nil {
			// меню команд не критично, бот работает и без него
			a.logger.Warn("Failed to register bot commands", zap.Error(err))
		}
		go func() {
			if err := a.bot.Start(ctx); err != nil {
				a.logger.Error("Bot stopped", zap.Error(err))
			}
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("🚀 HTTP server listening", zap.String("addr", a.server.Addr))
		serverErr <- a.server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// Close освобождает соединения
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close redis", zap.Error(err))
		}
	}
	a.pool.Close()
}
