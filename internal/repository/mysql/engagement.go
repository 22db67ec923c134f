package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Guyuepp/engagement-sync/domain"
	"github.com/Guyuepp/engagement-sync/internal/repository/mysql/model"
	"github.com/sirupsen/logrus"
)

type engagementRepository struct {
	DB *gorm.DB
}

// mysql层只负责数据库操作
var _ domain.EngagementDBRepository = (*engagementRepository)(nil)

// NewEngagementDBRepository 创建数据库操作层
func NewEngagementDBRepository(db *gorm.DB) *engagementRepository {
	return &engagementRepository{db}
}

func (m *engagementRepository) GetSubject(ctx context.Context, ref domain.SubjectRef) (res domain.Subject, err error) {
	var subject model.Subject
	err = m.DB.WithContext(ctx).
		First(&subject, "kind = ? AND subject_id = ?", int8(ref.Kind), ref.ID).Error
	if err != nil {
		return res, domain.ErrNotFound
	}
	res = subject.ToDomain()
	return
}

func (m *engagementRepository) GetSubjects(ctx context.Context, refs []domain.SubjectRef) ([]domain.Subject, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	pairs := make([][]any, len(refs))
	for i, ref := range refs {
		pairs[i] = []any{int8(ref.Kind), ref.ID}
	}

	var subjects []model.Subject
	err := m.DB.WithContext(ctx).
		Where("(kind, subject_id) IN ?", pairs).
		Find(&subjects).Error
	if err != nil {
		return nil, err
	}

	res := make([]domain.Subject, len(subjects))
	for i := range subjects {
		res[i] = subjects[i].ToDomain()
	}
	return res, nil
}

func (m *engagementRepository) StoreSubject(ctx context.Context, s *domain.Subject) (err error) {
	subjectModel := model.NewSubjectFromDomain(s)
	result := m.DB.WithContext(ctx).Create(&subjectModel)
	if result.Error != nil {
		return result.Error
	}
	s.CreatedAt = subjectModel.CreatedAt
	s.UpdatedAt = subjectModel.UpdatedAt
	return
}

func (m *engagementRepository) AddViews(ctx context.Context, ref domain.SubjectRef, deltaViews int64) error {
	result := m.DB.WithContext(ctx).
		Model(&model.Subject{}).
		Where("kind = ? AND subject_id = ?", int8(ref.Kind), ref.ID).
		Update("views", gorm.Expr("views + ?", deltaViews))
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (m *engagementRepository) AddLikes(ctx context.Context, ref domain.SubjectRef, deltaLikes int64) error {
	result := m.DB.WithContext(ctx).
		Model(&model.Subject{}).
		Where("kind = ? AND subject_id = ?", int8(ref.Kind), ref.ID).
		Update("likes", gorm.Expr("likes + ?", deltaLikes))
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (m *engagementRepository) FetchUserLiked(ctx context.Context, kind domain.SubjectKind, uid int64, limit int64) ([]domain.SubjectRef, error) {
	var ids []string
	err := m.DB.WithContext(ctx).
		Model(&model.SubjectLike{}).
		Select("subject_id").
		Where("kind = ? AND user_id = ?", int8(kind), uid).
		Order("created_at desc").
		Limit(int(limit)).
		Find(&ids).Error
	if err != nil {
		return nil, err
	}

	refs := make([]domain.SubjectRef, len(ids))
	for i, id := range ids {
		refs[i] = domain.SubjectRef{Kind: kind, ID: id}
	}
	return refs, nil
}

func (m *engagementRepository) ApplyLikeChanges(ctx context.Context, changes domain.LikeStateChanges) error {
	return m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		filteredAdd := make([]model.SubjectLike, 0, len(changes.ToAdd))
		if len(changes.ToAdd) > 0 {
			valid, err := m.existingSubjects(tx, changes.ToAdd)
			if err != nil {
				return err
			}

			for _, rec := range changes.ToAdd {
				if valid[rec.Subject] {
					filteredAdd = append(filteredAdd, model.NewSubjectLikeFromDomain(rec))
				} else {
					logrus.Warnf("Dropped orphan like for subject %s", rec.Subject)
				}
			}
		}

		if len(changes.ToRemove) > 0 {
			toRemove := make([]model.SubjectLike, 0, len(changes.ToRemove))
			for _, rec := range changes.ToRemove {
				toRemove = append(toRemove, model.NewSubjectLikeFromDomain(rec))
			}
			if err := tx.Delete(toRemove).Error; err != nil {
				return err
			}
		}

		if len(filteredAdd) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				DoNothing: true,
			}).Create(&filteredAdd).Error; err != nil {
				return err
			}
		}

		// 重新统计受影响 subject 的点赞数
		uniqueRefs := make(map[domain.SubjectRef]struct{})
		for _, rec := range changes.ToAdd {
			uniqueRefs[rec.Subject] = struct{}{}
		}
		for _, rec := range changes.ToRemove {
			uniqueRefs[rec.Subject] = struct{}{}
		}

		for ref := range uniqueRefs {
			var realCount int64
			if err := tx.Model(&model.SubjectLike{}).
				Where("kind = ? AND subject_id = ?", int8(ref.Kind), ref.ID).
				Count(&realCount).Error; err != nil {
				return err
			}

			if err := tx.Model(&model.Subject{}).
				Where("kind = ? AND subject_id = ?", int8(ref.Kind), ref.ID).
				UpdateColumn("likes", realCount).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (m *engagementRepository) existingSubjects(tx *gorm.DB, recs []domain.LikeRecord) (map[domain.SubjectRef]bool, error) {
	pairs := make([][]any, 0, len(recs))
	seen := make(map[domain.SubjectRef]bool)
	for _, rec := range recs {
		if !seen[rec.Subject] {
			pairs = append(pairs, []any{int8(rec.Subject.Kind), rec.Subject.ID})
			seen[rec.Subject] = true
		}
	}

	var rows []model.Subject
	if err := tx.Model(&model.Subject{}).
		Select("kind, subject_id").
		Where("(kind, subject_id) IN ?", pairs).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	valid := make(map[domain.SubjectRef]bool, len(rows))
	for i := range rows {
		valid[domain.SubjectRef{Kind: domain.SubjectKind(rows[i].Kind), ID: rows[i].SubjectID}] = true
	}
	return valid, nil
}

func (m *engagementRepository) FetchRefs(ctx context.Context, kind domain.SubjectKind, limit int64) ([]domain.SubjectRef, error) {
	var ids []string
	err := m.DB.WithContext(ctx).
		Model(&model.Subject{}).
		Select("subject_id").
		Where("kind = ?", int8(kind)).
		Order("subject_id").
		Limit(int(limit)).
		Find(&ids).Error
	if err != nil {
		return nil, err
	}

	refs := make([]domain.SubjectRef, len(ids))
	for i, id := range ids {
		refs[i] = domain.SubjectRef{Kind: kind, ID: id}
	}
	return refs, nil
}
