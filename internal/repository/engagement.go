package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Guyuepp/engagement-sync/domain"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const subjectCacheTTL = 10 * time.Minute

// engagementRepository 协调层，协调缓存和数据库
type engagementRepository struct {
	db            domain.EngagementDBRepository
	cache         domain.EngagementCache
	rebuildGroup  singleflight.Group
	mu            sync.Mutex
	rebuildingMap map[domain.SubjectRef]bool // 正在重建的subject
}

var _ domain.EngagementRepository = (*engagementRepository)(nil)

// NewEngagementRepository 创建协调层repository
func NewEngagementRepository(db domain.EngagementDBRepository, cache domain.EngagementCache) *engagementRepository {
	return &engagementRepository{
		db:            db,
		cache:         cache,
		rebuildingMap: make(map[domain.SubjectRef]bool),
	}
}

// GetSubject 获取 subject，使用逻辑过期策略避免缓存击穿
func (r *engagementRepository) GetSubject(ctx context.Context, ref domain.SubjectRef) (domain.Subject, error) {
	// 1. 先从缓存获取
	subject, expired, err := r.cache.GetSubject(ctx, ref)
	if err == nil {
		// 缓存命中
		if expired {
			go r.rebuildSubjectCache(context.Background(), ref)
		}
		return r.mergeCounters(ctx, subject), nil
	}
	if !errors.Is(err, domain.ErrCacheMiss) {
		logrus.Warnf("cache get error for %s: %v", ref, err)
	}

	// 2. 缓存未命中，使用singleflight避免缓存击穿
	result, err, _ := r.rebuildGroup.Do("subject:"+ref.String(), func() (any, error) {
		s, err := r.db.GetSubject(ctx, ref)
		if err != nil {
			return nil, err
		}

		// 更新缓存（使用逻辑过期）
		_ = r.cache.SetSubject(context.Background(), &s, subjectCacheTTL)

		// 初始化点赞数缓存
		_ = r.cache.SetLikeCount(ctx, s.Ref, s.Likes)

		return s, nil
	})
	if err != nil {
		return domain.Subject{}, err
	}

	return r.mergeCounters(ctx, result.(domain.Subject)), nil
}

// mergeCounters 把缓冲中的浏览量增量和最新点赞数合并进 subject
func (r *engagementRepository) mergeCounters(ctx context.Context, subject domain.Subject) domain.Subject {
	deltaViews, err := r.cache.GetViewsDelta(ctx, subject.Ref)
	if err != nil {
		logrus.Warnf("failed to get views delta for %s: %v", subject.Ref, err)
	}
	subject.Views += deltaViews

	likes, err := r.cache.GetLikeCount(ctx, subject.Ref)
	if errors.Is(err, domain.ErrCacheMiss) {
		_ = r.cache.SetLikeCount(ctx, subject.Ref, subject.Likes)
	} else if err != nil {
		logrus.Warnf("failed to get like count for %s: %v", subject.Ref, err)
	} else {
		subject.Likes = likes
	}

	return subject
}

// GetSubjects 批量获取 subject，缺失的直接跳过
func (r *engagementRepository) GetSubjects(ctx context.Context, refs []domain.SubjectRef) ([]domain.Subject, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	subjects, err := r.db.GetSubjects(ctx, refs)
	if err != nil {
		return nil, err
	}

	for i := range subjects {
		subjects[i] = r.mergeCounters(ctx, subjects[i])
	}
	return subjects, nil
}

// IncrViews 增加缓冲中的浏览量（落库由worker处理）
func (r *engagementRepository) IncrViews(ctx context.Context, ref domain.SubjectRef) (int64, error) {
	return r.cache.IncrViews(ctx, ref)
}

// FetchUserLiked 获取用户点赞的subject列表
func (r *engagementRepository) FetchUserLiked(ctx context.Context, kind domain.SubjectKind, uid int64, limit int64) ([]domain.SubjectRef, error) {
	return r.db.FetchUserLiked(ctx, kind, uid, limit)
}

// ApplyLikeChanges 应用点赞变更
func (r *engagementRepository) ApplyLikeChanges(ctx context.Context, changes domain.LikeStateChanges) error {
	return r.db.ApplyLikeChanges(ctx, changes)
}

// FetchRefs 获取某一类型的subject列表
func (r *engagementRepository) FetchRefs(ctx context.Context, kind domain.SubjectKind, limit int64) ([]domain.SubjectRef, error) {
	return r.db.FetchRefs(ctx, kind, limit)
}

// rebuildSubjectCache 异步重建subject缓存
func (r *engagementRepository) rebuildSubjectCache(ctx context.Context, ref domain.SubjectRef) {
	// 检查是否已经在重建中
	r.mu.Lock()
	if r.rebuildingMap[ref] {
		r.mu.Unlock()
		return
	}
	r.rebuildingMap[ref] = true
	r.mu.Unlock()

	// 完成后清除标记
	defer func() {
		r.mu.Lock()
		delete(r.rebuildingMap, ref)
		r.mu.Unlock()
	}()

	// 使用singleflight避免并发重建
	_, err, _ := r.rebuildGroup.Do("rebuild:"+ref.String(), func() (any, error) {
		subject, err := r.db.GetSubject(ctx, ref)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// subject不存在，删除缓存
				_ = r.cache.DeleteSubject(ctx, ref)
			}
			return nil, err
		}

		// 更新缓存
		err = r.cache.SetSubject(ctx, &subject, subjectCacheTTL)
		if err != nil {
			logrus.Errorf("failed to set subject cache: %v", err)
			return nil, err
		}

		return nil, nil
	})

	if err != nil {
		logrus.Errorf("rebuildSubjectCache failed for %s: %v", ref, err)
	}
}
