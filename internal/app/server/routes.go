package server

import (
	"github.com/gin-gonic/gin"

	"semcache/internal/app/handlers"
	"semcache/internal/app/middleware"
	"semcache/pkg/logger"
)

// SetupRoutes 配置并注册 HTTP 服务器的所有路由规则。
// 它负责加载中间件，定义 API 版本分组，并将 URL 路径映射到相应的处理函数。
// 参数 engine: Gin 引擎实例。
// 参数 cacheHandler: 业务逻辑处理器。
// 参数 log: 日志记录器。
func SetupRoutes(engine *gin.Engine, cacheHandler *handlers.CacheHandler, log logger.Logger) {
	// 应用全局中间件
	setupMiddleware(engine, log)

	v1 := engine.Group("/v1")
	cache := v1.Group("/cache")

	// 语义相似度查询
	cache.POST("/search", cacheHandler.SearchCache)
	// 存储问答对到语义缓存
	cache.POST("/store", cacheHandler.StoreCache)
	// 删除单个缓存条目
	cache.DELETE("/:key", cacheHandler.InvalidateCache)
	// 清空全部缓存
	cache.DELETE("", cacheHandler.ClearCache)
	// 缓存统计信息
	cache.GET("/stats", cacheHandler.GetCacheStats)
	// 健康检查
	cache.GET("/health", cacheHandler.HealthCheck)
}

// setupMiddleware 设置全局中间件
func setupMiddleware(engine *gin.Engine, log logger.Logger) {
	// 恢复中间件 - 捕获panic并返回500错误
	engine.Use(gin.Recovery())

	// 日志中间件 - 记录请求日志并生成请求ID
	engine.Use(middleware.LoggingMiddleware(&middleware.LoggingConfig{
		// 跳过健康检查路径的日志记录，减少日志噪音
		SkipPaths: []string{
			"/v1/cache/health",
		},
		Logger: log,
	}))
}
