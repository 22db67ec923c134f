package response

import "github.com/Guyuepp/engagement-sync/domain"

// Envelope is the uniform response shape for every engagement endpoint.
type Envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func Success(data any) Envelope {
	return Envelope{Status: "success", Data: data}
}

func Error(message string) Envelope {
	return Envelope{Status: "error", Message: message}
}

// Snapshot is the wire form of one engagement snapshot.
type Snapshot struct {
	Kind      string `json:"kind"`
	ID        string `json:"id"`
	IsLiked   bool   `json:"isLiked"`
	ViewCount int64  `json:"viewCount"`
}

func NewSnapshotFromDomain(s domain.EngagementSnapshot) Snapshot {
	return Snapshot{
		Kind:      s.Subject.Kind.Slug(),
		ID:        s.Subject.ID,
		IsLiked:   s.Liked,
		ViewCount: s.ViewCount,
	}
}
