package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"slatrack/backend/config"
	"slatrack/backend/internal/api/handler"
	"slatrack/backend/internal/api/router"
	"slatrack/backend/internal/engine"
	"slatrack/backend/internal/repository"
	"slatrack/backend/internal/service"
	"slatrack/backend/pkg/clock"
	"slatrack/backend/pkg/database"
	"slatrack/backend/pkg/jwt"
	applogger "slatrack/backend/pkg/logger"
	"slatrack/backend/pkg/redis"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
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

	logger.Info("SLA 引擎启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.Duration("tick_interval", cfg.Engine.TickInterval),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	//    降级影响：评估器不抢单实例锁、动作改为日志输出、限流放行
	var rdb *redis.Client
	rdb, err = redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，评估锁/动作分发/限流降级", zap.Error(err))
		rdb = nil
	}

	// 5. 初始化 JWT 管理器
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 6. 依赖注入: Repository → Service → Handler
	clk := clock.Real()
	repo := repository.NewRepository(db)
	svc := service.NewService(repo, clk, logger)
	h := handler.NewHandler(svc)

	// 7. 启动后台引擎：Tick 评估器 + 指标汇总器
	var dispatcher engine.Dispatcher
	if rdb != nil {
		dispatcher = engine.NewStreamDispatcher(rdb, cfg.Engine.ActionStream, logger)
	} else {
		dispatcher = engine.NewLogDispatcher(logger)
	}
	evaluator := engine.NewEvaluator(repo, rdb, dispatcher, clk, cfg.Engine, logger)
	aggregator := engine.NewAggregator(repo, clk, cfg.Engine.MetricsInterval, logger)

	engineCtx, stopEngine := context.WithCancel(context.Background())
	var engineWG sync.WaitGroup
	engineWG.Add(2)
	go func() {
		defer engineWG.Done()
		evaluator.Run(engineCtx)
	}()
	go func() {
		defer engineWG.Done()
		aggregator.Run(engineCtx)
	}()

	// 8. 初始化路由并启动 HTTP 服务器（优雅关闭）
	ginEngine := router.Setup(cfg, h, jwtMgr, rdb, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      ginEngine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 9. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 停止后台引擎并等待在途 tick 结束
	stopEngine()
	engineWG.Wait()

	// 关闭数据库连接
	closeDB, _ := db.DB()
	if closeDB != nil {
		closeDB.Close()
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
