package router

import (
	"strings"
	"time"

	"github.com/commitlog/dailyagent/internal/handler"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Options 控制路由的运行模式与跨域策略
type Options struct {
	GinMode        string
	AllowedOrigins []string
	Logger         *zap.Logger
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	switch strings.ToLower(opts.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(RequestID())
	r.Use(AccessLog(logger))
	r.Use(Recovery(logger))
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	r.GET("/", api.Root)
	r.GET("/health", api.HealthCheck)

	apiGroup := r.Group("/api")
	{
		replies := apiGroup.Group("/replies")
		replies.POST("/email", api.HandleEmailReply)
		replies.GET("/health", api.ReplyHealth)

		apiGroup.POST("/verify", api.VerifyUser)
		apiGroup.POST("/verify/all", api.VerifyAll)
		apiGroup.POST("/checkins", api.SendCheckins)

		apiGroup.GET("/users/:email/stats", api.GetUserStats)
		apiGroup.GET("/users/:email/logs", api.GetUserLogs)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{"Content-Length", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}
