package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"semcache/configs"
	"semcache/internal/app/handlers"
	"semcache/internal/app/server"
	"semcache/internal/infrastructure/cache"
	"semcache/internal/infrastructure/embedding/remote"
	"semcache/internal/infrastructure/stores"
	"semcache/pkg/logger"
)

// main 主函数 - 应用程序入口点
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 创建早期logger（使用默认配置）
	earlyLogger := logger.Default()

	if err := initializeApplication(ctx, earlyLogger); err != nil {
		earlyLogger.ErrorContext(ctx, "应用程序初始化失败", "error", err)
		os.Exit(1)
	}
}

// initializeApplication 初始化应用程序
func initializeApplication(ctx context.Context, earlyLogger logger.Logger) error {
	// 1. 加载配置
	config, err := configs.Load(ctx)
	if err != nil {
		return fmt.Errorf("配置加载失败: %w", err)
	}

	earlyLogger.InfoContext(ctx, "配置加载成功",
		"server_port", config.Server.Port,
		"cache_backend", config.Cache.Backend,
		"cache_enabled", config.Cache.Enabled)

	// 2. 初始化日志服务
	appLogger := initializeLogger(config.Logging)
	appLogger.InfoContext(ctx, "日志服务初始化完成")

	// 3. 初始化嵌入模型
	embedder, err := remote.NewEmbedder(ctx, &config.Embedding, appLogger)
	if err != nil {
		return fmt.Errorf("嵌入模型初始化失败: %w", err)
	}

	// 4. 初始化缓存后端
	deps := stores.BackendDeps{
		Config: config,
		Logger: appLogger,
	}

	if config.Cache.Backend == stores.BackendRedis {
		deps.RedisClient = newRedisClient(&config.Redis)
	}

	backend, err := stores.NewCacheBackend(ctx, config.Cache.Backend, deps)
	if err != nil {
		return fmt.Errorf("缓存后端初始化失败: %w", err)
	}

	// 5. 初始化语义缓存服务
	cacheService := cache.NewSemanticCacheService(backend, embedder, &config.Cache, appLogger)
	appLogger.InfoContext(ctx, "语义缓存服务初始化完成",
		"similarity_threshold", config.Cache.SimilarityThreshold,
		"default_ttl", config.Cache.DefaultTTL)

	// 6. 启动后台过期清理任务
	if config.Cache.CleanupInterval > 0 {
		go runCleanupLoop(ctx, cacheService, config.Cache.CleanupInterval, appLogger)
	}

	// 7. 初始化应用层
	cacheHandler := handlers.NewCacheHandler(cacheService, appLogger)
	httpServer := server.NewServer(&config.Server, cacheHandler, appLogger)

	// 8. 启动服务并等待停止信号
	return runApplication(ctx, httpServer, appLogger)
}

// initializeLogger 初始化日志服务
func initializeLogger(config configs.LoggingConfig) logger.Logger {
	var level slog.Level
	switch config.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	loggerConfig := logger.Config{
		Level:  level,
		Output: config.Output,
		Format: config.Format,
	}

	if config.Output == "file" {
		loggerConfig.FilePath = config.FilePath
	}

	return logger.New(loggerConfig)
}

// newRedisClient 创建Redis客户端
func newRedisClient(config *configs.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  config.Timeout,
		ReadTimeout:  config.Timeout,
		WriteTimeout: config.Timeout,
	})
}

// runCleanupLoop 周期性清理过期缓存条目
func runCleanupLoop(ctx context.Context, cacheService *cache.SemanticCacheService, interval time.Duration, log logger.Logger) {
	log.InfoContext(ctx, "后台过期清理任务启动", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.InfoContext(ctx, "后台过期清理任务停止")
			return
		case <-ticker.C:
			if removed := cacheService.CleanupExpired(ctx); removed > 0 {
				log.InfoContext(ctx, "后台清理过期条目完成", "count", removed)
			}
		}
	}
}

// runApplication 运行应用程序，监听停止信号
// 此函数会阻塞直到收到停止信号、服务器错误或上下文取消
func runApplication(ctx context.Context, httpServer *server.Server, log logger.Logger) error {
	errChan := make(chan error, 1)

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	httpServer.Start(ctx, errChan)

	select {
	case err := <-errChan:
		log.ErrorContext(ctx, "服务器运行错误", "error", err)
		return err

	case sig := <-signalChan:
		log.InfoContext(ctx, "收到停止信号，开始优雅关闭", "signal", sig.String())
		return gracefulShutdown(ctx, httpServer, log)

	case <-ctx.Done():
		log.InfoContext(ctx, "上下文取消，开始优雅关闭")
		return gracefulShutdown(ctx, httpServer, log)
	}
}

// gracefulShutdown 执行优雅关闭
func gracefulShutdown(ctx context.Context, httpServer *server.Server, log logger.Logger) error {
	log.InfoContext(ctx, "开始执行优雅关闭流程")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.ErrorContext(ctx, "HTTP服务器关闭失败", "error", err)
		return fmt.Errorf("HTTP服务器关闭失败: %w", err)
	}

	log.InfoContext(ctx, "优雅关闭完成")
	return nil
}
