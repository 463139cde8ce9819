package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"semcache/internal/app/middleware"
	"semcache/internal/domain/models"
	"semcache/internal/domain/services"
	"semcache/pkg/logger"
	"semcache/pkg/status"
)

// CacheHandler 缓存处理器
// 将HTTP请求转换为语义缓存服务调用并组装统一响应格式
type CacheHandler struct {
	cacheService services.CacheService
	logger       logger.Logger
}

// NewCacheHandler 创建缓存处理器
func NewCacheHandler(cacheService services.CacheService, log logger.Logger) *CacheHandler {
	if log == nil {
		log = logger.GetDefault()
	}

	return &CacheHandler{
		cacheService: cacheService,
		logger:       log,
	}
}

// APIResponse 统一的API响应格式
type APIResponse struct {
	Success   bool        `json:"success"`
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Detail    string      `json:"detail,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// SearchRequest 缓存查询请求
type SearchRequest struct {
	Query    string            `json:"query" binding:"required"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SearchResponse 缓存查询响应
type SearchResponse struct {
	Result     models.CacheResult `json:"result"`
	Response   string             `json:"response,omitempty"`
	Key        string             `json:"key,omitempty"`
	Similarity float64            `json:"similarity,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// StoreRequest 缓存存储请求
type StoreRequest struct {
	Query    string            `json:"query" binding:"required"`
	Response string            `json:"response" binding:"required"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// StoreResponse 缓存存储响应
type StoreResponse struct {
	Stored bool `json:"stored"`
}

// SearchCache 查询语义缓存
// POST /v1/cache/search
func (h *CacheHandler) SearchCache(c *gin.Context) {
	ctx := c.Request.Context()
	requestID := middleware.GetRequestID(c)

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.ErrorContext(ctx, "缓存查询请求参数解析失败",
			"request_id", requestID,
			"error", err.Error())
		h.respondWithError(c, status.ErrCodeInvalidParam, "请求参数格式错误", err.Error())
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		h.respondWithError(c, status.ErrCodeInvalidParam, "查询文本不能为空", "")
		return
	}

	startTime := time.Now()
	result := h.cacheService.GetCachedResponse(ctx, req.Query, req.Metadata)
	duration := time.Since(startTime).Milliseconds()

	h.logger.InfoContext(ctx, "缓存查询请求处理完成",
		"request_id", requestID,
		"duration_ms", duration,
		"result", result.Result)

	resp := &SearchResponse{Result: result.Result, Error: result.Err}
	if result.Hit() {
		resp.Response = result.Entry.Response
		resp.Key = result.Entry.Key
		resp.Similarity = result.Similarity
	}

	h.respondWithSuccess(c, resp, "缓存查询成功")
}

// StoreCache 存储响应到语义缓存
// POST /v1/cache/store
func (h *CacheHandler) StoreCache(c *gin.Context) {
	ctx := c.Request.Context()
	requestID := middleware.GetRequestID(c)

	var req StoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.ErrorContext(ctx, "缓存存储请求参数解析失败",
			"request_id", requestID,
			"error", err.Error())
		h.respondWithError(c, status.ErrCodeInvalidParam, "请求参数格式错误", err.Error())
		return
	}

	startTime := time.Now()
	stored := h.cacheService.CacheResponse(ctx, req.Query, req.Response, req.Metadata)
	duration := time.Since(startTime).Milliseconds()

	h.logger.InfoContext(ctx, "缓存存储请求处理完成",
		"request_id", requestID,
		"duration_ms", duration,
		"stored", stored)

	h.respondWithSuccess(c, &StoreResponse{Stored: stored}, "缓存存储处理完成")
}

// InvalidateCache 删除单个缓存条目
// DELETE /v1/cache/:key
func (h *CacheHandler) InvalidateCache(c *gin.Context) {
	ctx := c.Request.Context()
	requestID := middleware.GetRequestID(c)

	key := c.Param("key")
	if key == "" {
		h.respondWithError(c, status.ErrCodeInvalidParam, "缺少key参数", "")
		return
	}

	removed := h.cacheService.Invalidate(ctx, key)
	if !removed {
		h.logger.InfoContext(ctx, "缓存条目不存在",
			"request_id", requestID,
			"key", key)
		h.respondWithError(c, status.ErrCodeNotFound, "缓存条目不存在", fmt.Sprintf("key %s not found", key))
		return
	}

	h.logger.InfoContext(ctx, "缓存删除请求处理完成",
		"request_id", requestID,
		"key", key)

	h.respondWithSuccess(c, gin.H{"removed": true}, "缓存删除成功")
}

// ClearCache 清空全部缓存
// DELETE /v1/cache
func (h *CacheHandler) ClearCache(c *gin.Context) {
	ctx := c.Request.Context()
	requestID := middleware.GetRequestID(c)

	if !h.cacheService.ClearCache(ctx) {
		h.logger.ErrorContext(ctx, "缓存清空失败", "request_id", requestID)
		h.respondWithError(c, status.ErrCodeInternal, "缓存清空失败", "")
		return
	}

	h.logger.InfoContext(ctx, "缓存清空请求处理完成", "request_id", requestID)
	h.respondWithSuccess(c, gin.H{"cleared": true}, "缓存清空成功")
}

// GetCacheStats 获取缓存统计信息
// GET /v1/cache/stats
func (h *CacheHandler) GetCacheStats(c *gin.Context) {
	ctx := c.Request.Context()

	stats := h.cacheService.GetStats(ctx)
	h.respondWithSuccess(c, stats, "缓存统计查询成功")
}

// HealthCheck 健康检查
// GET /v1/cache/health
func (h *CacheHandler) HealthCheck(c *gin.Context) {
	ctx := c.Request.Context()

	health := h.cacheService.HealthCheck(ctx)
	health["timestamp"] = time.Now().Unix()

	if healthy, ok := health["storage_healthy"].(bool); ok && !healthy {
		c.JSON(http.StatusServiceUnavailable, APIResponse{
			Success:   false,
			Code:      int(status.ErrCodeUnavailable),
			Message:   "缓存存储不可用",
			Data:      health,
			RequestID: middleware.GetRequestID(c),
			Timestamp: time.Now().Unix(),
		})
		return
	}

	h.respondWithSuccess(c, health, "健康检查通过")
}

// respondWithSuccess 返回成功响应
func (h *CacheHandler) respondWithSuccess(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, APIResponse{
		Success:   true,
		Code:      int(status.CodeOK),
		Message:   message,
		Data:      data,
		RequestID: middleware.GetRequestID(c),
		Timestamp: time.Now().Unix(),
	})
}

// respondWithError 返回错误响应
func (h *CacheHandler) respondWithError(c *gin.Context, code status.StatusCode, message, detail string) {
	c.JSON(httpStatusFor(code), APIResponse{
		Success:   false,
		Code:      int(code),
		Message:   message,
		Detail:    detail,
		RequestID: middleware.GetRequestID(c),
		Timestamp: time.Now().Unix(),
	})
}

// httpStatusFor 业务状态码到HTTP状态码的映射
func httpStatusFor(code status.StatusCode) int {
	switch code {
	case status.ErrCodeInvalidParam:
		return http.StatusBadRequest
	case status.ErrCodeNotFound:
		return http.StatusNotFound
	case status.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
