package app

import (
	"time"

	"xp_engine/internal/config"
	"xp_engine/internal/middleware"
	"xp_engine/internal/util"
	"xp_engine/pkg/monitoring"
	"xp_engine/pkg/security"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(cfg))
	{
		attempts := api.Group("/attempts")
		{
			attempts.POST("", c.attempt.Start)
			attempts.GET("", c.attempt.Get)
			attempts.POST("/answer", c.attempt.Answer)
			attempts.POST("/report", c.attempt.Report)
		}

		api.POST("/assessments/finalize", c.assessment.Finalize)

		readTime := api.Group("/read-time")
		readTime.Use(security.KeyedRateLimiter(cfg.RateLimit.HeartbeatPerMinute, time.Minute, userKey))
		{
			readTime.POST("/heartbeat", c.readTime.Heartbeat)
			readTime.POST("/finalize-partial", c.readTime.FinalizePartial)
			readTime.POST("/finalize", c.readTime.Finalize)
		}

		api.POST("/resources/completion", c.content.RecordCompletion)

		api.GET("/gradebook", c.grade.ListResults)
		api.GET("/gradebook/:id", c.grade.GetResult)
		api.GET("/streak", c.grade.GetStreak)
		api.GET("/proficiency", c.grade.ListProficiency)
	}
}

// userKey buckets authenticated requests by user and the rest by client IP.
func userKey(c *gin.Context) string {
	if claims := util.GetUserFromContext(c); claims != nil {
		return "user:" + claims.UserID
	}
	return security.ClientIP(c)
}
