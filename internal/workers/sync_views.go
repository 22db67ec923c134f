package workers

import (
	"context"
	"errors"
	"time"

	"github.com/Guyuepp/engagement-sync/domain"
	"github.com/sirupsen/logrus"
)

const viewsFlushInterval = 5 * time.Second

type syncViewsWorker struct {
	repo  domain.EngagementDBRepository
	cache domain.EngagementCache
}

var _ domain.SyncViewsWorker = (*syncViewsWorker)(nil)

func NewSyncViewsWorker(repo domain.EngagementDBRepository, cache domain.EngagementCache) *syncViewsWorker {
	return &syncViewsWorker{
		repo:  repo,
		cache: cache,
	}
}

// Start 周期性地把redis中缓冲的浏览量增量落库
func (s *syncViewsWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(viewsFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flush(ctx)
		case <-ctx.Done():
			logrus.Info("shutting down SyncViewsWorker, flushing remaining views...")
			s.flush(context.Background())
			return
		}
	}
}

func (s *syncViewsWorker) flush(ctx context.Context) {
	deltas, err := s.cache.FetchAndResetViews(ctx)
	if err != nil {
		logrus.Errorf("failed to fetch buffered views: %v", err)
		return
	}

	for ref, delta := range deltas {
		if delta == 0 {
			continue
		}
		if err := s.repo.AddViews(ctx, ref, delta); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				logrus.Warnf("dropped %d buffered views for missing subject %s", delta, ref)
				continue
			}
			logrus.Errorf("failed to flush %d views for %s: %v", delta, ref, err)
		}
	}
}
