package domain

import "context"

type BloomRepository interface {
	// Add 将 subject 加入过滤器
	Add(ctx context.Context, ref SubjectRef) error

	// Exists 检查 subject 是否可能存在
	// 返回 true: 可能存在 (需要进一步查 Cache/DB)
	// 返回 false: 绝对不存在 (直接返回 404)
	Exists(ctx context.Context, ref SubjectRef) (bool, error)

	// BulkAdd 用于大量添加 subject
	BulkAdd(ctx context.Context, refs []SubjectRef) error
}
