package domain

import "fmt"

// SubjectKind identifies which of the engageable content types a subject
// belongs to.
type SubjectKind int8

const (
	KindJobPosting SubjectKind = iota + 1
	KindResume
	KindLecture
	KindTransferListing
)

// Slug returns the path segment used for this kind on the wire.
func (k SubjectKind) Slug() string {
	switch k {
	case KindJobPosting:
		return "jobs"
	case KindResume:
		return "resumes"
	case KindLecture:
		return "lectures"
	case KindTransferListing:
		return "transfers"
	default:
		return "unknown"
	}
}

func (k SubjectKind) String() string {
	return k.Slug()
}

// ParseSubjectKind maps a wire slug back to its kind.
// Returns ErrBadParamInput for an unknown slug.
func ParseSubjectKind(slug string) (SubjectKind, error) {
	switch slug {
	case "jobs":
		return KindJobPosting, nil
	case "resumes":
		return KindResume, nil
	case "lectures":
		return KindLecture, nil
	case "transfers":
		return KindTransferListing, nil
	default:
		return 0, fmt.Errorf("%w: unknown subject kind %q", ErrBadParamInput, slug)
	}
}

// SubjectRef identifies one engageable content item. It is a comparable
// value type and is used directly as a cache/map key, so items of different
// kinds sharing a numeric id never collide.
type SubjectRef struct {
	Kind SubjectKind
	ID   string
}

func (s SubjectRef) String() string {
	return s.Kind.Slug() + "/" + s.ID
}
