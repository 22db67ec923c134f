package workers

import (
	"context"
	"time"

	"github.com/Guyuepp/engagement-sync/domain"
	"github.com/sirupsen/logrus"
)

type LikeTask struct {
	Subject domain.SubjectRef
	UserID  int64
	Action  domain.LikeAction
}

type syncLikesWorker struct {
	repo domain.EngagementRepository
	ch   chan LikeTask
}

var _ domain.SyncLikesWorker = (*syncLikesWorker)(nil)

func NewSyncLikesWorker(repo domain.EngagementRepository) *syncLikesWorker {
	return &syncLikesWorker{
		repo: repo,
		ch:   make(chan LikeTask, 1024),
	}
}

// Send adds a like record if action == Like, and removes a like record if action == Unlike
func (s *syncLikesWorker) Send(rec domain.LikeRecord, action domain.LikeAction) {
	select {
	case s.ch <- LikeTask{rec.Subject, rec.UserID, action}:
	default:
		logrus.Info("SyncLikesWorker's channel is full, task dropped")
	}
}

func (s *syncLikesWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	const batchSize = 100
	batch := make([]LikeTask, 0, batchSize)
	for {
		select {
		case task := <-s.ch:
			batch = append(batch, task)
			if len(batch) == batchSize {
				s.flush(ctx, batch)
				batch = make([]LikeTask, 0, batchSize)
			}
		case <-ticker.C:
			s.flush(ctx, batch)
			batch = make([]LikeTask, 0)
		case <-ctx.Done():
			logrus.Info("shutting down SyncLikesWorker, flushing remaining tasks...")
			s.flush(context.Background(), batch)
			return
		}
	}
}

type taskKey struct {
	subject domain.SubjectRef
	uid     int64
}

// flush 同一 (subject, user) 在一个批次内只保留最后一次动作
func (s *syncLikesWorker) flush(ctx context.Context, batch []LikeTask) {
	if len(batch) == 0 {
		return
	}

	tasks := make(map[taskKey]domain.LikeAction)
	for i := range batch {
		key := taskKey{
			subject: batch[i].Subject,
			uid:     batch[i].UserID,
		}
		tasks[key] = batch[i].Action
	}

	var changes domain.LikeStateChanges
	for key, action := range tasks {
		rec := domain.LikeRecord{
			Subject: key.subject,
			UserID:  key.uid,
		}
		switch action {
		case domain.Like:
			changes.ToAdd = append(changes.ToAdd, rec)
		case domain.Unlike:
			changes.ToRemove = append(changes.ToRemove, rec)
		default:
			logrus.Errorf("Unsupported action: %v", action)
		}
	}

	if err := s.repo.ApplyLikeChanges(ctx, changes); err != nil {
		logrus.Errorf("failed to apply like changes: %v", err)
	}
}
