package services

import "context"

// RuntimeAgent 运行时Agent最小契约
// 任何"输入一段文本、返回一段文本"的Agent实现均满足此接口。
// 缓存装饰器通过组合方式包装该接口并暴露完全相同的外观，
// 调用方无法区分被包装前后的Agent。
type RuntimeAgent interface {
	// ID Agent唯一标识
	ID() string

	// Name Agent显示名称
	Name() string

	// Run 处理一条消息并返回响应文本
	Run(ctx context.Context, message string) (string, error)
}
