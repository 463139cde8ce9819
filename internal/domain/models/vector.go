package models

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch 向量维度不一致
// 比较不同维度的向量属于编程契约违规，必须显式失败，
// 与普通的外部服务失败区分开。
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// CosineSimilarity 计算两个向量的余弦相似度。
// 维度不一致时返回 ErrDimensionMismatch；
// 任一向量模长为零时返回 0.0 而不是除零。
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Float64sToFloat32s 将float64向量转换为float32向量
// 嵌入服务返回float64，存储层统一使用float32。
func Float64sToFloat32s(values []float64) []float32 {
	result := make([]float32, len(values))
	for i, v := range values {
		result[i] = float32(v)
	}
	return result
}
