package client

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Guyuepp/engagement-sync/domain"
)

func TestStateCacheDefaults(t *testing.T) {
	c := NewStateCache()
	ref := domain.SubjectRef{Kind: domain.KindJobPosting, ID: "42"}

	assert.False(t, c.Liked(ref))
	assert.Zero(t, c.ViewCount(ref))
}

func TestStateCacheToggleReturnsNewValue(t *testing.T) {
	c := NewStateCache()
	ref := domain.SubjectRef{Kind: domain.KindLecture, ID: "7"}

	assert.True(t, c.ToggleLiked(ref))
	assert.True(t, c.Liked(ref))
	assert.False(t, c.ToggleLiked(ref))
	assert.False(t, c.Liked(ref))
}

func TestStateCacheCrossKindIndependence(t *testing.T) {
	c := NewStateCache()
	job := domain.SubjectRef{Kind: domain.KindJobPosting, ID: "42"}
	resume := domain.SubjectRef{Kind: domain.KindResume, ID: "42"}

	c.SetLiked(job, true)
	c.SetViewCount(job, 10)

	assert.True(t, c.Liked(job))
	assert.False(t, c.Liked(resume), "same numeric id must not collide across kinds")
	assert.Zero(t, c.ViewCount(resume))
}

func TestStateCacheSeedManyOverwrites(t *testing.T) {
	c := NewStateCache()
	ref := domain.SubjectRef{Kind: domain.KindTransferListing, ID: "9"}
	c.SetLiked(ref, true)
	c.SetViewCount(ref, 99)

	c.SeedMany([]domain.EngagementSnapshot{
		{Subject: ref, Liked: false, ViewCount: 3},
	})

	assert.False(t, c.Liked(ref))
	assert.EqualValues(t, 3, c.ViewCount(ref))
}

func TestStateCacheSubscribeNotifiesAffectedSubjectOnly(t *testing.T) {
	c := NewStateCache()
	job := domain.SubjectRef{Kind: domain.KindJobPosting, ID: "1"}
	lecture := domain.SubjectRef{Kind: domain.KindLecture, ID: "2"}

	var notified []domain.SubjectRef
	cancel := c.Subscribe(func(ref domain.SubjectRef) {
		notified = append(notified, ref)
	})

	c.SetLiked(job, true)
	assert.Equal(t, []domain.SubjectRef{job}, notified)

	cancel()
	c.SetViewCount(lecture, 5)
	assert.Equal(t, []domain.SubjectRef{job}, notified, "cancelled subscriber must not fire")
}

func TestStateCacheSubscriberMayReadCache(t *testing.T) {
	c := NewStateCache()
	ref := domain.SubjectRef{Kind: domain.KindResume, ID: "3"}

	var seen bool
	c.Subscribe(func(r domain.SubjectRef) {
		seen = c.Liked(r)
	})

	c.SetLiked(ref, true)
	assert.True(t, seen)
}
