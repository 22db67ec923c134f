package domain

import (
	"context"
	"time"
)

// Subject is representing one engageable content row as the service stores it
type Subject struct {
	Ref       SubjectRef // Kind + opaque id
	Views     int64      // Number of views
	Likes     int64      // Number of likes
	CreatedAt time.Time  // Creation timestamp
	UpdatedAt time.Time  // Last update timestamp
}

// EngagementSnapshot carries the per-viewer engagement fields that ride
// along with a content payload (the "isLiked"/"viewCount" fields).
type EngagementSnapshot struct {
	Subject   SubjectRef
	Liked     bool
	ViewCount int64
}

// LikeRecord is representing a like relation between a viewer and a subject
type LikeRecord struct {
	Subject   SubjectRef
	UserID    int64
	CreatedAt time.Time
}

type LikeStateChanges struct {
	ToAdd    []LikeRecord
	ToRemove []LikeRecord
}

const (
	// 默认每个用户只加载最近的300条点赞记录
	LikeRecordLimit = 300
)

// EngagementDBRepository defines the contract for authoritative persistence
// of subjects and like relations.
type EngagementDBRepository interface {
	// GetSubject retrieves a single subject row.
	// Returns ErrNotFound if the subject doesn't exist.
	GetSubject(ctx context.Context, ref SubjectRef) (Subject, error)

	// GetSubjects retrieves subject rows by given refs, missing refs are skipped.
	GetSubjects(ctx context.Context, refs []SubjectRef) ([]Subject, error)

	// StoreSubject creates a new subject row.
	StoreSubject(ctx context.Context, s *Subject) error

	// AddViews increments the view counter of a subject.
	AddViews(ctx context.Context, ref SubjectRef, deltaViews int64) error

	// AddLikes adds the like counter of a subject by deltaLikes
	AddLikes(ctx context.Context, ref SubjectRef, deltaLikes int64) error

	// FetchUserLiked selects the subjects of one kind the user has liked,
	// newest first, limited
	FetchUserLiked(ctx context.Context, kind SubjectKind, uid int64, limit int64) ([]SubjectRef, error)

	ApplyLikeChanges(ctx context.Context, changes LikeStateChanges) error

	FetchRefs(ctx context.Context, kind SubjectKind, limit int64) ([]SubjectRef, error)
}

// EngagementCache is the redis fast path in front of EngagementDBRepository.
type EngagementCache interface {
	GetSubject(ctx context.Context, ref SubjectRef) (Subject, bool, error)
	SetSubject(ctx context.Context, s *Subject, ttl time.Duration) error
	DeleteSubject(ctx context.Context, ref SubjectRef) error

	// Views related
	IncrViews(ctx context.Context, ref SubjectRef) (int64, error)
	GetViewsDelta(ctx context.Context, ref SubjectRef) (int64, error)
	FetchAndResetViews(ctx context.Context) (map[SubjectRef]int64, error)

	// Likes related
	GetLikeCount(ctx context.Context, ref SubjectRef) (int64, error)
	SetLikeCount(ctx context.Context, ref SubjectRef, likes int64) error

	AddLikeRecord(ctx context.Context, rec LikeRecord) (bool, error)
	DecrLikeRecord(ctx context.Context, rec LikeRecord) (bool, error)
	IsLiked(ctx context.Context, rec LikeRecord) (bool, error)
	IsLikedBatch(ctx context.Context, kind SubjectKind, uid int64, ids []string) (map[string]bool, error)
	SetUserLiked(ctx context.Context, kind SubjectKind, uid int64, ids []string) error
}

// EngagementRepository coordinates the cache and the database.
type EngagementRepository interface {
	// GetSubject returns the subject with its live buffered counters
	// merged in. Returns ErrNotFound if the subject doesn't exist.
	GetSubject(ctx context.Context, ref SubjectRef) (Subject, error)

	// GetSubjects is the bulk form; missing subjects are skipped.
	GetSubjects(ctx context.Context, refs []SubjectRef) ([]Subject, error)

	// IncrViews bumps the buffered view counter and returns the delta
	// accumulated since the last flush.
	IncrViews(ctx context.Context, ref SubjectRef) (int64, error)

	// FetchUserLiked 从 subject_likes 表中加载用户点赞过的 subject
	FetchUserLiked(ctx context.Context, kind SubjectKind, uid int64, limit int64) ([]SubjectRef, error)

	ApplyLikeChanges(ctx context.Context, changes LikeStateChanges) error

	FetchRefs(ctx context.Context, kind SubjectKind, limit int64) ([]SubjectRef, error)
}

// EngagementUsecase defines the business logic contract consumed by the
// HTTP layer.
type EngagementUsecase interface {
	// Like creates the like relation for the viewer.
	// Returns ErrAlreadyLiked if the relation already exists,
	// ErrNotVerified if the account may not engage yet,
	// ErrNotFound if the subject doesn't exist.
	Like(ctx context.Context, viewer Viewer, ref SubjectRef) error

	// Unlike removes the relation; ErrNotLiked if it is already absent.
	Unlike(ctx context.Context, viewer Viewer, ref SubjectRef) error

	// RecordView increments the subject's view counter and returns the
	// resulting count. Anonymous viewers are counted.
	RecordView(ctx context.Context, ref SubjectRef) (int64, error)

	// Snapshot returns the engagement fields for one subject as seen by
	// the viewer (Liked always false for anonymous viewers).
	Snapshot(ctx context.Context, viewer Viewer, ref SubjectRef) (EngagementSnapshot, error)

	// SnapshotMany is the bulk form used by list pages; unknown subjects
	// are skipped rather than failing the batch.
	SnapshotMany(ctx context.Context, viewer Viewer, refs []SubjectRef) ([]EngagementSnapshot, error)

	InitBloomFilter(ctx context.Context) error
}

// Viewer is the authenticated identity attached to a request, or the
// anonymous zero value.
type Viewer struct {
	UserID   int64
	Verified bool
}

// Anonymous reports whether the request carried no valid session.
func (v Viewer) Anonymous() bool {
	return v.UserID == 0
}
