package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Root describes the service and its endpoints.
func (a *API) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    a.info.Name,
		"version": a.info.Version,
		"status":  "running",
		"endpoints": gin.H{
			"health":        "/health",
			"email_webhook": "/api/replies/email",
			"verify":        "/api/verify",
			"verify_all":    "/api/verify/all",
			"checkins":      "/api/checkins",
			"user_stats":    "/api/users/:email/stats",
			"user_logs":     "/api/users/:email/logs",
		},
	})
}

// HealthCheck 供监控系统使用的健康检查端点，数据库不可达时返回 503。
func (a *API) HealthCheck(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "database handle unavailable",
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "database unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "connected",
		"version":  a.info.Version,
	})
}
