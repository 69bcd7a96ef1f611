// Package app wires configuration, storage and services into one process.
package app

import (
	"context"
	"fmt"

	"github.com/commitlog/dailyagent/internal/activity"
	"github.com/commitlog/dailyagent/internal/cache"
	"github.com/commitlog/dailyagent/internal/calendar"
	"github.com/commitlog/dailyagent/internal/config"
	"github.com/commitlog/dailyagent/internal/db"
	"github.com/commitlog/dailyagent/internal/github"
	"github.com/commitlog/dailyagent/internal/handler"
	"github.com/commitlog/dailyagent/internal/logger"
	"github.com/commitlog/dailyagent/internal/mailer"
	"github.com/commitlog/dailyagent/internal/router"
	"github.com/commitlog/dailyagent/internal/secret"
	"github.com/commitlog/dailyagent/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds the wired services shared by the server and the CLI.
type App struct {
	Config   config.AppConfig
	Logger   *zap.Logger
	DB       *gorm.DB
	Resolver *calendar.Resolver

	Users    *service.UserService
	Logs     *service.DailyLogService
	Replies  *service.ReplyService
	Verifier *service.VerificationService
	Checkins *service.CheckinService

	redis *redis.Client
}

// Deps are the collaborators that talk to the outside world.
type Deps struct {
	Logger    *zap.Logger
	DB        *gorm.DB
	Connector activity.Connector
	Notifier  service.Notifier
}

// New builds the production wiring from cfg: database, optional Redis
// repository cache, GitHub connector and SMTP (or log-only) notifier.
func New(ctx context.Context, cfg config.AppConfig) (*App, error) {
	log, err := logger.New(logger.Options{
		Level:      cfg.LogLevel,
		Path:       cfg.LogPath,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if err := db.Init(db.Options{Driver: cfg.DatabaseDriver, DSN: cfg.DatabaseDSN, LogLevel: cfg.LogLevel}); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	var (
		repoCache   github.RepoCache
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient, err = cache.NewRedisClient(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Warn("redis unavailable, repository cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			repoCache = cache.NewRepoCache(redisClient, log.Named("cache"))
		}
	}

	connector := github.NewConnector(github.Options{
		BaseURL:           cfg.GitHubAPIBaseURL,
		Timeout:           cfg.GitHubTimeout,
		RequestsPerSecond: cfg.GitHubRequestsPerSecond,
		Burst:             cfg.GitHubBurst,
		Cache:             repoCache,
		CacheTTL:          cfg.RepoCacheTTL,
		Logger:            log.Named("github"),
	})

	var notifier service.Notifier
	if cfg.SMTPConfigured() {
		notifier, err = mailer.NewSMTPSender(mailer.SMTPOptions{
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			Username:    cfg.SMTPUsername,
			Password:    cfg.SMTPPassword,
			From:        cfg.SMTPFrom,
			FromName:    cfg.SMTPFromName,
			ReplyTo:     cfg.SMTPReplyTo,
			ImplicitTLS: cfg.SMTPImplicitTLS,
		}, log.Named("mailer"))
		if err != nil {
			return nil, fmt.Errorf("init mailer: %w", err)
		}
	} else {
		log.Warn("SMTP not configured, emails will only be logged")
		notifier = mailer.NewLogSender(log.Named("mailer"))
	}

	a, err := Build(cfg, Deps{Logger: log, DB: db.DB, Connector: connector, Notifier: notifier})
	if err != nil {
		return nil, err
	}
	a.redis = redisClient
	return a, nil
}

// Build wires services around already-constructed collaborators.
func Build(cfg config.AppConfig, deps Deps) (*App, error) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	box, err := secret.NewBox(cfg.TokenKey)
	if err != nil {
		return nil, fmt.Errorf("init token sealing: %w", err)
	}
	if !box.Enabled() {
		log.Warn("TOKEN_ENCRYPTION_KEY not set, GitHub tokens are stored in plain text")
	}

	resolver := calendar.NewResolver(cfg.DefaultTimezone, log.Named("calendar"))
	users := service.NewUserService(deps.DB, box, cfg.DefaultTimezone)
	logs := service.NewDailyLogService(deps.DB)

	return &App{
		Config:   cfg,
		Logger:   log,
		DB:       deps.DB,
		Resolver: resolver,
		Users:    users,
		Logs:     logs,
		Replies:  service.NewReplyService(users, logs, resolver, log.Named("replies")),
		Verifier: service.NewVerificationService(service.VerificationDeps{
			Logs:        logs,
			Users:       users,
			Connector:   deps.Connector,
			Aggregator:  activity.NewAggregator(resolver, log.Named("activity")),
			Notifier:    deps.Notifier,
			Resolver:    resolver,
			MinRequired: cfg.MinRequiredActivity,
			Logger:      log.Named("verification"),
		}),
		Checkins: service.NewCheckinService(users, logs, deps.Notifier, resolver, log.Named("checkins")),
	}, nil
}

// Router returns the HTTP surface.
func (a *App) Router() *gin.Engine {
	api := handler.NewAPI(a.DB, handler.Services{
		Users:    a.Users,
		Logs:     a.Logs,
		Replies:  a.Replies,
		Verifier: a.Verifier,
		Checkins: a.Checkins,
	}, handler.AppInfo{Name: a.Config.AppName, Version: a.Config.AppVersion})

	return router.SetupRouter(api, router.Options{
		GinMode:        a.Config.GinMode,
		AllowedOrigins: a.Config.AllowedOrigins,
		Logger:         a.Logger.Named("http"),
	})
}

// Close releases the database and Redis connections and flushes logs.
func (a *App) Close() error {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = a.Logger.Sync()
	return nil
}
