package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"semcache/configs"
	"semcache/pkg/logger"
)

// Client Qdrant客户端封装
// 提供向量数据库的基础操作能力，封装gRPC连接管理和错误处理。
type Client struct {
	client     *qdrant.Client
	config     *configs.QdrantConfig
	logger     logger.Logger
	collection string
}

// NewClient 创建新的Qdrant客户端实例
// 创建时验证配置、建立连接并确保集合存在。
func NewClient(ctx context.Context, config *configs.QdrantConfig, log logger.Logger) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("qdrant config cannot be nil")
	}

	if log == nil {
		log = logger.GetDefault()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid qdrant config: %w", err)
	}

	qc, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.APIKey != "", // 如果有API Key则使用TLS
	})
	if err != nil {
		log.ErrorContext(ctx, "创建Qdrant客户端失败",
			"host", config.Host,
			"port", config.Port,
			"error", err)
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	client := &Client{
		client:     qc,
		config:     config,
		logger:     log,
		collection: config.CollectionName,
	}

	// 测试连接并确保集合存在
	if err := client.ensureCollection(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	log.InfoContext(ctx, "Qdrant客户端初始化成功",
		"host", config.Host,
		"port", config.Port,
		"collection", config.CollectionName)

	return client, nil
}

// ensureCollection 确保集合存在，如果不存在则创建
func (c *Client) ensureCollection(ctx context.Context) error {
	exists, err := c.client.CollectionExists(ctx, c.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if exists {
		return nil
	}

	distance, err := c.parseDistance()
	if err != nil {
		return err
	}

	err = c.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: c.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(c.config.VectorSize),
			Distance: distance,
		}),
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "创建向量集合失败",
			"collection", c.collection,
			"vector_size", c.config.VectorSize,
			"error", err)
		return fmt.Errorf("failed to create collection %s: %w", c.collection, err)
	}

	c.logger.InfoContext(ctx, "向量集合创建成功",
		"collection", c.collection,
		"vector_size", c.config.VectorSize,
		"distance", c.config.Distance)

	return nil
}

// parseDistance 解析距离类型
func (c *Client) parseDistance() (qdrant.Distance, error) {
	switch c.config.Distance {
	case "cosine":
		return qdrant.Distance_Cosine, nil
	case "euclidean":
		return qdrant.Distance_Euclid, nil
	case "dot":
		return qdrant.Distance_Dot, nil
	default:
		return qdrant.Distance_Cosine, fmt.Errorf("unsupported distance type: %s", c.config.Distance)
	}
}

// UpsertPoint 插入或更新单个向量点
func (c *Client) UpsertPoint(ctx context.Context, id string, vector []float32, payload map[string]interface{}) error {
	if len(vector) != c.config.VectorSize {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", c.config.VectorSize, len(vector))
	}

	waitUpsert := true
	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(id),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(payload),
			},
		},
		Wait: &waitUpsert,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point %s: %w", id, err)
	}

	return nil
}

// ScoredPoint 搜索结果点
type ScoredPoint struct {
	ID      string
	Score   float32
	Payload map[string]*qdrant.Value
}

// SearchPoints 搜索相似向量点
func (c *Client) SearchPoints(ctx context.Context, queryVector []float32, limit uint64, scoreThreshold *float32) ([]*ScoredPoint, error) {
	if len(queryVector) != c.config.VectorSize {
		return nil, fmt.Errorf("query vector dimension mismatch: expected %d, got %d", c.config.VectorSize, len(queryVector))
	}

	queryResult, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          &limit,
		ScoreThreshold: scoreThreshold,
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	results := make([]*ScoredPoint, 0, len(queryResult))
	for _, point := range queryResult {
		results = append(results, &ScoredPoint{
			ID:      pointIDString(point.Id),
			Score:   point.Score,
			Payload: point.Payload,
		})
	}

	return results, nil
}

// PointExists 检查指定ID的向量点是否存在
func (c *Client) PointExists(ctx context.Context, id string) (bool, error) {
	points, err := c.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: c.collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(id)},
	})
	if err != nil {
		return false, fmt.Errorf("failed to get point %s: %w", id, err)
	}

	return len(points) > 0, nil
}

// DeleteBatch 批量删除向量点
func (c *Client) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIds := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIds = append(pointIds, qdrant.NewID(id))
	}

	waitDelete := true
	_, err := c.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: c.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pointIds},
			},
		},
		Wait: &waitDelete,
	})
	if err != nil {
		return fmt.Errorf("failed to delete batch points: %w", err)
	}

	return nil
}

// DeleteAll 删除集合中的全部向量点
func (c *Client) DeleteAll(ctx context.Context) error {
	waitDelete := true
	_, err := c.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: c.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{},
			},
		},
		Wait: &waitDelete,
	})
	if err != nil {
		return fmt.Errorf("failed to delete all points: %w", err)
	}

	return nil
}

// ScrollPoints 分页遍历集合中的向量点
// 返回一页结果和下一页的起始偏移，offset为nil表示遍历结束。
func (c *Client) ScrollPoints(ctx context.Context, limit uint32, offset *qdrant.PointId) ([]*qdrant.RetrievedPoint, *qdrant.PointId, error) {
	points, err := c.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: c.collection,
		Limit:          &limit,
		Offset:         offset,
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scroll points: %w", err)
	}

	// Scroll不直接返回next offset，用最后一个点的ID继续下一页
	var next *qdrant.PointId
	if len(points) == int(limit) {
		next = points[len(points)-1].Id
	}

	return points, next, nil
}

// CountPoints 统计向量点数量
func (c *Client) CountPoints(ctx context.Context) (uint64, error) {
	exact := true
	count, err := c.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: c.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}

	return count, nil
}

// HealthCheck 健康检查
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

// Close 关闭客户端连接
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// pointIDString 将PointId转换为字符串
func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}

	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	case *qdrant.PointId_Uuid:
		return v.Uuid
	default:
		return ""
	}
}
