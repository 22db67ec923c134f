package model

import (
	"time"

	"github.com/Guyuepp/engagement-sync/domain"
)

type Subject struct {
	Kind      int8      `gorm:"column:kind;primaryKey"`
	SubjectID string    `gorm:"column:subject_id;primaryKey;type:varchar(64)"`
	Views     int64     `gorm:"default:0"`
	Likes     int64     `gorm:"default:0"`
	CreatedAt time.Time `gorm:"type:datetime"`
	UpdatedAt time.Time `gorm:"type:datetime"`
}

func (Subject) TableName() string {
	return "subjects"
}

func (m *Subject) ToDomain() domain.Subject {
	return domain.Subject{
		Ref: domain.SubjectRef{
			Kind: domain.SubjectKind(m.Kind),
			ID:   m.SubjectID,
		},
		Views:     m.Views,
		Likes:     m.Likes,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func NewSubjectFromDomain(s *domain.Subject) *Subject {
	return &Subject{
		Kind:      int8(s.Ref.Kind),
		SubjectID: s.Ref.ID,
		Views:     s.Views,
		Likes:     s.Likes,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}
