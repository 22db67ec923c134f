package engagement

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Guyuepp/engagement-sync/domain"
)

const bloomInitLimit = 100000

type Service struct {
	repo            domain.EngagementRepository
	cache           domain.EngagementCache
	syncLikesWorker domain.SyncLikesWorker
	bloomRepo       domain.BloomRepository
}

var _ domain.EngagementUsecase = (*Service)(nil)

// NewService will create a new engagement service object
func NewService(repo domain.EngagementRepository, cache domain.EngagementCache, w domain.SyncLikesWorker, bloom domain.BloomRepository) *Service {
	return &Service{
		repo:            repo,
		cache:           cache,
		syncLikesWorker: w,
		bloomRepo:       bloom,
	}
}

// Like creates the like relation for the viewer. The redis liked-set is the
// fast authority; a duplicate like surfaces as ErrAlreadyLiked so the HTTP
// layer can answer with the idempotent no-op response.
func (s *Service) Like(ctx context.Context, viewer domain.Viewer, ref domain.SubjectRef) error {
	if !viewer.Verified {
		return domain.ErrNotVerified
	}
	if err := s.checkExists(ctx, ref); err != nil {
		return err
	}

	rec := domain.LikeRecord{Subject: ref, UserID: viewer.UserID, CreatedAt: time.Now()}
	changed, err := s.flipLikeRecord(ctx, rec, domain.Like)
	if err != nil {
		return err
	}
	if !changed {
		return domain.ErrAlreadyLiked
	}

	s.syncLikesWorker.Send(rec, domain.Like)
	return nil
}

// Unlike removes the relation; ErrNotLiked when it is already absent.
func (s *Service) Unlike(ctx context.Context, viewer domain.Viewer, ref domain.SubjectRef) error {
	if !viewer.Verified {
		return domain.ErrNotVerified
	}
	if err := s.checkExists(ctx, ref); err != nil {
		return err
	}

	rec := domain.LikeRecord{Subject: ref, UserID: viewer.UserID, CreatedAt: time.Now()}
	changed, err := s.flipLikeRecord(ctx, rec, domain.Unlike)
	if err != nil {
		return err
	}
	if !changed {
		return domain.ErrNotLiked
	}

	s.syncLikesWorker.Send(rec, domain.Unlike)
	return nil
}

// flipLikeRecord 先走缓存脚本，未命中时从数据库加载该用户的点赞集合后重试一次
func (s *Service) flipLikeRecord(ctx context.Context, rec domain.LikeRecord, action domain.LikeAction) (bool, error) {
	flip := s.cache.AddLikeRecord
	if action == domain.Unlike {
		flip = s.cache.DecrLikeRecord
	}

	changed, err := flip(ctx, rec)
	if err == nil {
		return changed, nil
	}
	if !errors.Is(err, domain.ErrCacheMiss) {
		logrus.Errorf("failed to %s like record in redis: %v", action, err)
		return false, err
	}

	if err := s.loadLikedSet(ctx, rec.Subject.Kind, rec.UserID); err != nil {
		return false, err
	}

	changed, err = flip(ctx, rec)
	if err != nil {
		logrus.Errorf("failed to %s like record after reload: %v", action, err)
		return false, err
	}
	return changed, nil
}

func (s *Service) loadLikedSet(ctx context.Context, kind domain.SubjectKind, uid int64) error {
	liked, err := s.repo.FetchUserLiked(ctx, kind, uid, domain.LikeRecordLimit)
	if err != nil {
		logrus.Errorf("failed to FetchUserLiked from repo: %v", err)
		return err
	}

	ids := make([]string, len(liked))
	for i := range liked {
		ids[i] = liked[i].ID
	}
	if err := s.cache.SetUserLiked(ctx, kind, uid, ids); err != nil {
		logrus.Errorf("failed to SetUserLiked to redis: %v", err)
		return err
	}
	return nil
}

// RecordView bumps the buffered view counter and returns the resulting
// count. Anonymous viewers are counted too.
func (s *Service) RecordView(ctx context.Context, ref domain.SubjectRef) (int64, error) {
	if err := s.checkExists(ctx, ref); err != nil {
		return 0, err
	}

	if _, err := s.repo.IncrViews(ctx, ref); err != nil {
		logrus.Errorf("failed to IncrViews for %s: %v", ref, err)
		return 0, err
	}

	subject, err := s.repo.GetSubject(ctx, ref)
	if err != nil {
		return 0, err
	}
	return subject.Views, nil
}

// Snapshot returns the engagement fields for one subject as seen by viewer.
func (s *Service) Snapshot(ctx context.Context, viewer domain.Viewer, ref domain.SubjectRef) (domain.EngagementSnapshot, error) {
	subject, err := s.repo.GetSubject(ctx, ref)
	if err != nil {
		return domain.EngagementSnapshot{}, err
	}

	snap := domain.EngagementSnapshot{Subject: ref, ViewCount: subject.Views}
	if !viewer.Anonymous() {
		likedMap, err := s.likedBatch(ctx, ref.Kind, viewer.UserID, []string{ref.ID})
		if err != nil {
			return domain.EngagementSnapshot{}, err
		}
		snap.Liked = likedMap[ref.ID]
	}
	return snap, nil
}

// SnapshotMany serves list pages: one subject batch and one liked-set read
// per kind, fanned out concurrently. Unknown subjects are skipped.
func (s *Service) SnapshotMany(ctx context.Context, viewer domain.Viewer, refs []domain.SubjectRef) ([]domain.EngagementSnapshot, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	byKind := make(map[domain.SubjectKind][]domain.SubjectRef)
	for _, ref := range refs {
		byKind[ref.Kind] = append(byKind[ref.Kind], ref)
	}

	var mu sync.Mutex
	bySubject := make(map[domain.SubjectRef]domain.EngagementSnapshot)

	g, gctx := errgroup.WithContext(ctx)
	for kind, batch := range byKind {
		kind, batch := kind, batch
		g.Go(func() error {
			subjects, err := s.repo.GetSubjects(gctx, batch)
			if err != nil {
				return err
			}

			var likedMap map[string]bool
			if !viewer.Anonymous() {
				ids := make([]string, len(batch))
				for i := range batch {
					ids[i] = batch[i].ID
				}
				likedMap, err = s.likedBatch(gctx, kind, viewer.UserID, ids)
				if err != nil {
					return err
				}
			}

			mu.Lock()
			defer mu.Unlock()
			for _, subject := range subjects {
				bySubject[subject.Ref] = domain.EngagementSnapshot{
					Subject:   subject.Ref,
					Liked:     likedMap[subject.Ref.ID],
					ViewCount: subject.Views,
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 保持输入顺序
	res := make([]domain.EngagementSnapshot, 0, len(refs))
	for _, ref := range refs {
		if snap, ok := bySubject[ref]; ok {
			res = append(res, snap)
		}
	}
	return res, nil
}

// likedBatch 查询点赞集合，未命中时加载后重试一次
func (s *Service) likedBatch(ctx context.Context, kind domain.SubjectKind, uid int64, ids []string) (map[string]bool, error) {
	likedMap, err := s.cache.IsLikedBatch(ctx, kind, uid, ids)
	if err == nil {
		return likedMap, nil
	}
	if !errors.Is(err, domain.ErrCacheMiss) {
		return nil, err
	}

	if err := s.loadLikedSet(ctx, kind, uid); err != nil {
		return nil, err
	}

	return s.cache.IsLikedBatch(ctx, kind, uid, ids)
}

// checkExists 用布隆过滤器快速挡掉绝对不存在的subject
func (s *Service) checkExists(ctx context.Context, ref domain.SubjectRef) error {
	if s.bloomRepo == nil {
		return nil
	}
	exists, err := s.bloomRepo.Exists(ctx, ref)
	if err != nil {
		// 过滤器故障时放行，由后面的存储层兜底
		logrus.Warnf("bloom filter check failed for %s: %v", ref, err)
		return nil
	}
	if !exists {
		return domain.ErrNotFound
	}
	return nil
}

// InitBloomFilter loads every known subject ref into the filter at startup.
func (s *Service) InitBloomFilter(ctx context.Context) error {
	if s.bloomRepo == nil {
		return nil
	}
	for _, kind := range []domain.SubjectKind{
		domain.KindJobPosting, domain.KindResume, domain.KindLecture, domain.KindTransferListing,
	} {
		refs, err := s.repo.FetchRefs(ctx, kind, bloomInitLimit)
		if err != nil {
			return err
		}
		if err := s.bloomRepo.BulkAdd(ctx, refs); err != nil {
			return err
		}
	}
	return nil
}
