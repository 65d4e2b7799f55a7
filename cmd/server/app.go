package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gdg-garage/sputnik-ledger/internal/achievements"
	"github.com/gdg-garage/sputnik-ledger/internal/config"
	"github.com/gdg-garage/sputnik-ledger/internal/database"
	"github.com/gdg-garage/sputnik-ledger/internal/jobs"
	"github.com/gdg-garage/sputnik-ledger/internal/ledger"
	"github.com/gdg-garage/sputnik-ledger/internal/logger"
	"github.com/gdg-garage/sputnik-ledger/internal/notifier"
	"github.com/gdg-garage/sputnik-ledger/internal/ranking"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const memoryQueueSize = 1024

// app holds the process-wide dependencies shared by all commands.
type app struct {
	cfg          *config.Config
	log          *zap.Logger
	db           *gorm.DB
	redis        redis.UniversalClient
	queue        notifier.Queue
	achievements *achievements.Service
	ranking      *ranking.Engine
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg := config.LoadConfig()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	db, err := database.Connect(cfg, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, db: db}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redis = client
		a.queue = notifier.NewRedisQueue(client, cfg.NotificationQueue)
		log.Info("Using redis notification queue", zap.String("queue", cfg.NotificationQueue))
	} else {
		a.queue = notifier.NewMemoryQueue(memoryQueueSize)
		log.Info("Using in-memory notification queue")
	}

	dispatcher := notifier.NewDispatcher(a.queue, cfg.DiscordNotificationsChannelID, log)
	a.achievements = achievements.NewService(db, ledger.New(db, log), dispatcher, log)
	a.ranking = ranking.NewEngine(db, cfg.LeaderboardMaxLimit, log)
	return a, nil
}

// distributed reports whether the queue is shared between processes. An
// in-memory queue must be drained by the process that fills it.
func (a *app) distributed() bool {
	return a.redis != nil
}

// worker builds a delivery worker with every sender the configuration
// enables.
func (a *app) worker() (*notifier.Worker, func(), error) {
	senders := map[notifier.Channel]notifier.Sender{}
	closers := []func(){}

	if a.cfg.TelegramBotToken != "" {
		tg, err := notifier.NewTelegramSender(a.cfg.TelegramBotToken)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init telegram sender: %w", err)
		}
		senders[notifier.ChannelTelegram] = tg
	} else {
		a.log.Warn("TELEGRAM_BOT_TOKEN is empty, telegram notifications are dropped")
	}

	if a.cfg.DiscordBotToken != "" {
		session, err := notifier.NewDiscordSession(a.cfg.DiscordBotToken)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init discord session: %w", err)
		}
		senders[notifier.ChannelDiscord] = notifier.NewDiscordSender(session)
		senders[notifier.ChannelDiscordAnnouncement] = notifier.NewDiscordChannelSender(session)
		closers = append(closers, func() { session.Close() })
	} else {
		a.log.Warn("DISCORD_BOT_TOKEN is empty, discord notifications are dropped")
	}

	w := notifier.NewWorker(a.queue, senders, a.cfg.NotificationMaxRetries, a.log)
	return w, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

func (a *app) scheduler() (*jobs.Scheduler, error) {
	loc, err := time.LoadLocation(a.cfg.CronTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid CRON_TIMEZONE: %w", err)
	}

	var locker jobs.Locker
	if a.redis != nil {
		locker = jobs.NewRedsyncLocker(a.redis, 10*time.Minute)
	}

	s := jobs.NewScheduler(loc, locker, a.log)
	for _, job := range []jobs.Job{
		jobs.PurgeJob(a.db, a.cfg.CronPurgeSchedule, a.log),
		jobs.ReconcileJob(a.achievements, a.cfg.CronReconcileSchedule),
	} {
		if err := s.Add(job); err != nil {
			return nil, fmt.Errorf("failed to schedule %s: %w", job.Name, err)
		}
	}
	return s, nil
}

func (a *app) close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
	//nolint:errcheck
	a.log.Sync()
}
