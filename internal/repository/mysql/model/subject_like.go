package model

import (
	"time"

	"github.com/Guyuepp/engagement-sync/domain"
)

type SubjectLike struct {
	Kind      int8      `gorm:"column:kind;primaryKey"`
	SubjectID string    `gorm:"column:subject_id;primaryKey;type:varchar(64)"`
	UserID    int64     `gorm:"column:user_id;primaryKey"`
	CreatedAt time.Time `gorm:"type:datetime"`
}

func (SubjectLike) TableName() string {
	return "subject_likes"
}

func NewSubjectLikeFromDomain(rec domain.LikeRecord) SubjectLike {
	return SubjectLike{
		Kind:      int8(rec.Subject.Kind),
		SubjectID: rec.Subject.ID,
		UserID:    rec.UserID,
		CreatedAt: rec.CreatedAt,
	}
}
