package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"moh-portal/config"
	"moh-portal/internal/api/handler"
	"moh-portal/internal/api/middleware"
	"moh-portal/internal/api/router"
	"moh-portal/internal/repository"
	"moh-portal/internal/service"
	"moh-portal/pkg/database"
	"moh-portal/pkg/imagehost"
	"moh-portal/pkg/llm"
	applogger "moh-portal/pkg/logger"
	"moh-portal/pkg/redis"
	"moh-portal/pkg/session"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("MOH_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("trust_identity_headers", cfg.Server.TrustIdentityHeaders),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 外部协作方
	codec := session.NewCodec(&cfg.Auth)
	deps := service.Deps{
		Codec:  codec,
		LLM:    llm.NewClient(&cfg.LLM),
		Images: imagehost.NewClient(&cfg.Image),
	}
	if cfg.LLM.APIKey == "" {
		logger.Warn("未配置 LLM API Key，传记校验将返回 500")
	}

	// 4.1 连接 Redis
	// 放行模式下连接失败则不限流；拒绝模式下保留客户端，Redis 恢复前限流接口返回 503
	// 限流接口保持 nil 而不是类型化的 nil 指针
	var limiter middleware.Limiter
	rdb, err := redis.Open(&cfg.Redis, cfg.RateLimit.FailOpen, logger)
	if err != nil {
		logger.Warn("Redis 连接失败",
			zap.Bool("fail_open", cfg.RateLimit.FailOpen),
			zap.Error(err),
		)
	}
	if rdb != nil {
		limiter = rdb
		deps.Limiter = rdb
	}

	// 5. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, deps, logger)
	h := handler.NewHandler(svc, codec, cfg.Server.TrustIdentityHeaders)

	// 6. 初始化路由
	engine := router.Setup(cfg, h, codec, limiter, logger)

	// 7. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // 传记校验需等待 LLM
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 8. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 关闭数据库连接
	if err := sqlDB.Close(); err != nil {
		logger.Warn("关闭数据库连接失败", zap.Error(err))
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
