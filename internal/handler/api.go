package handler

import (
	"github.com/commitlog/dailyagent/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db       *gorm.DB
	users    *service.UserService
	logs     *service.DailyLogService
	replies  *service.ReplyService
	verifier *service.VerificationService
	checkins *service.CheckinService
	info     AppInfo
}

// AppInfo identifies the running build on the root endpoint.
type AppInfo struct {
	Name    string
	Version string
}

// Services are the domain services the handlers delegate to.
type Services struct {
	Users    *service.UserService
	Logs     *service.DailyLogService
	Replies  *service.ReplyService
	Verifier *service.VerificationService
	Checkins *service.CheckinService
}

// NewAPI constructs a handler set with shared services.
func NewAPI(db *gorm.DB, services Services, info AppInfo) *API {
	if info.Name == "" {
		info.Name = "Personal AI Agent"
	}
	return &API{
		db:       db,
		users:    services.Users,
		logs:     services.Logs,
		replies:  services.Replies,
		verifier: services.Verifier,
		checkins: services.Checkins,
		info:     info,
	}
}

// DB exposes the underlying gorm instance for health checks.
func (a *API) DB() *gorm.DB {
	return a.db
}
