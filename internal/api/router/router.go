package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"notifiit/backend/config"
	"notifiit/backend/internal/api/handler"
	"notifiit/backend/internal/api/middleware"
)

// Setup 初始化并返回 Gin 路由引擎；limiter 为 nil 时不限流
func Setup(cfg *config.Config, h *handler.Handler, limiter middleware.RateLimiter, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowOrigins))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(limiter, cfg.Server.RateLimit, cfg.Server.RateWindow, logger))
	{
		v1.GET("/evenness", h.Lesson.Evenness)

		groups := v1.Group("/groups")
		{
			groups.GET("", h.Lesson.Groups)
			groups.GET("/:group/lessons/day", h.Lesson.Day)
			groups.GET("/:group/lessons/week", h.Lesson.Week)
			groups.GET("/:group/calendar.ics", h.Lesson.Calendar)
			groups.GET("/:group/export.xlsx", h.Lesson.Export)
		}
	}

	return r
}
