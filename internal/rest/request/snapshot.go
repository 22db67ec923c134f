package request

import "github.com/Guyuepp/engagement-sync/domain"

type SnapshotItem struct {
	Kind string `json:"kind" binding:"required"`
	ID   string `json:"id" binding:"required"`
}

type Snapshot struct {
	Items []SnapshotItem `json:"items" binding:"required,min=1,max=100,dive"`
}

func (r *Snapshot) ToDomain() ([]domain.SubjectRef, error) {
	refs := make([]domain.SubjectRef, len(r.Items))
	for i, item := range r.Items {
		kind, err := domain.ParseSubjectKind(item.Kind)
		if err != nil {
			return nil, err
		}
		refs[i] = domain.SubjectRef{Kind: kind, ID: item.ID}
	}
	return refs, nil
}
