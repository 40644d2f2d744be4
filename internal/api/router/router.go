package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"moh-portal/config"
	"moh-portal/internal/api/handler"
	"moh-portal/internal/api/middleware"
	"moh-portal/pkg/session"
)

// Setup 初始化并返回 Gin 路由引擎
// limiter 为 nil 时（Redis 不可用）登录与申请接口不限流
func Setup(cfg *config.Config, h *handler.Handler, codec *session.Codec, limiter middleware.Limiter, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))
	r.Use(middleware.EdgeGate(codec, cfg.Server.TrustIdentityHeaders))

	// ── 健康检查与指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authLimit := middleware.RateLimit(limiter, cfg.RateLimit.AuthPerMinute, time.Minute, cfg.RateLimit.FailOpen, logger)

	api := r.Group("/api")
	{
		// 认证模块
		auth := api.Group("/auth")
		{
			auth.POST("/login", authLimit, h.Auth.Login)
			auth.POST("/logout", h.Auth.Logout)
			auth.GET("/me", h.Auth.Me)
		}
		api.POST("/account-request", authLimit, h.Auth.RequestAccount)

		// 用户目录（网关保护前缀）
		users := api.Group("/users")
		{
			users.GET("", h.User.ListUsers)
			users.POST("", h.User.CreateUser)
			users.PUT("", h.User.UpdateUser)
			users.PATCH("", h.User.PatchUser)
			users.DELETE("", h.User.DeleteUser)
			users.POST("/undo", h.ActionLog.Undo)
		}

		// 审计日志（网关保护前缀）
		logs := api.Group("/action-logs")
		{
			logs.GET("", h.ActionLog.ListLogs)
			logs.GET("/export", h.ActionLog.ExportLogs)
		}

		// 积分表
		promo := api.Group("/promotion-system")
		{
			promo.GET("", h.Promotion.List)
			promo.POST("", h.Promotion.Mutate)
			promo.GET("/export", h.Promotion.Export)
		}

		api.POST("/admin/biography/validate", h.Biography.Validate)

		// 周报
		reports := api.Group("/reports")
		{
			reports.POST("/parse", h.Report.Parse)
			reports.POST("/render", h.Report.Render)
			reports.POST("/docx", h.Report.DOCX)
		}

		// 头像
		api.POST("/user/avatar", h.Avatar.Upload)
		api.DELETE("/user/avatar", h.Avatar.Delete)
		api.DELETE("/admin/users/:id/avatar", h.Avatar.Reset)
		api.PATCH("/admin/users/:id/avatar", h.Avatar.Moderate)
	}

	return r
}
