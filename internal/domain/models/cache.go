package models

import (
	"time"
)

// CacheResult 缓存查询结果类型
// HIT 表示命中可用条目；MISS 表示没有条目超过阈值；
// ERROR 表示查询流程本身失败（如向量生成失败）。
// MISS 与 ERROR 需要区分：调用方要能分辨"确实没有相关内容"
// 和"缓存子系统出错"，即使两者最终都回退到实时调用。
type CacheResult string

const (
	// ResultHit 缓存命中
	ResultHit CacheResult = "hit"
	// ResultMiss 缓存未命中
	ResultMiss CacheResult = "miss"
	// ResultError 缓存查询失败
	ResultError CacheResult = "error"
)

// CacheEntry 定义了语义缓存中存储的核心数据单元。
// 条目一旦写入即不可变，更新等价于删除后重新写入。
type CacheEntry struct {
	// Key 存储键，由查询文本的确定性哈希生成
	Key string `json:"key"`

	// Response 缓存的响应文本
	Response string `json:"response"`

	// Embedding 查询文本的向量表示
	Embedding []float32 `json:"embedding,omitempty"`

	// Metadata 自由形式的元数据（如 agent_id、model）
	Metadata map[string]string `json:"metadata,omitempty"`

	// TTLSeconds 过期时间（秒），0 表示永不过期
	TTLSeconds int `json:"ttl_seconds,omitempty"`

	// CreatedAt 创建时间
	CreatedAt time.Time `json:"created_at"`
}

// SimilarityMatch 相似度搜索结果项
// 将缓存条目与其相似度分数配对，分数范围 [0.0, 1.0]。
type SimilarityMatch struct {
	// Entry 匹配到的缓存条目
	Entry *CacheEntry `json:"entry"`

	// Score 相似度分数
	Score float64 `json:"score"`
}

// CacheSearchResult 缓存查询的完整返回结果
type CacheSearchResult struct {
	// Result 查询结果类型：hit、miss 或 error
	Result CacheResult `json:"result"`

	// Entry 命中的缓存条目（仅当 Result 为 hit 时非空）
	Entry *CacheEntry `json:"entry,omitempty"`

	// Similarity 命中条目的相似度分数
	Similarity float64 `json:"similarity,omitempty"`

	// Err 错误描述（仅当 Result 为 error 时非空）
	Err string `json:"error,omitempty"`
}

// Hit 判断结果是否为可用的缓存命中
func (r *CacheSearchResult) Hit() bool {
	return r.Result == ResultHit && r.Entry != nil
}

// Expired 判断条目在给定时间点是否已过期
// 没有设置TTL的条目永不过期。
func (e *CacheEntry) Expired(now time.Time) bool {
	if e.TTLSeconds <= 0 {
		return false
	}
	return now.Sub(e.CreatedAt) > time.Duration(e.TTLSeconds)*time.Second
}
