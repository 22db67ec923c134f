package cache

import (
	"time"

	"github.com/Guyuepp/engagement-sync/domain"
)

// SubjectWithLogicalExpire 支持逻辑过期的 subject 缓存结构
type SubjectWithLogicalExpire struct {
	Subject   domain.Subject `json:"subject"`
	ExpireAt  time.Time      `json:"expire_at"`  // 逻辑过期时间
	CreatedAt time.Time      `json:"created_at"` // 创建时间，用于调试
}

// IsLogicalExpired 检查是否逻辑过期
func (d *SubjectWithLogicalExpire) IsLogicalExpired() bool {
	return time.Now().After(d.ExpireAt)
}

// NewSubjectWithLogicalExpire 创建带逻辑过期的数据
func NewSubjectWithLogicalExpire(s domain.Subject, ttl time.Duration) *SubjectWithLogicalExpire {
	now := time.Now()
	return &SubjectWithLogicalExpire{
		Subject:   s,
		ExpireAt:  now.Add(ttl),
		CreatedAt: now,
	}
}
