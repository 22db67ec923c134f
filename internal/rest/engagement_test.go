package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guyuepp/engagement-sync/domain"
	"github.com/Guyuepp/engagement-sync/internal/rest"
	"github.com/Guyuepp/engagement-sync/internal/rest/middleware"
)

const testSecret = "test-secret"

type fakeUsecase struct {
	likeFn         func(ctx context.Context, viewer domain.Viewer, ref domain.SubjectRef) error
	unlikeFn       func(ctx context.Context, viewer domain.Viewer, ref domain.SubjectRef) error
	recordViewFn   func(ctx context.Context, ref domain.SubjectRef) (int64, error)
	snapshotManyFn func(ctx context.Context, viewer domain.Viewer, refs []domain.SubjectRef) ([]domain.EngagementSnapshot, error)
}

func (f *fakeUsecase) Like(ctx context.Context, viewer domain.Viewer, ref domain.SubjectRef) error {
	return f.likeFn(ctx, viewer, ref)
}

func (f *fakeUsecase) Unlike(ctx context.Context, viewer domain.Viewer, ref domain.SubjectRef) error {
	return f.unlikeFn(ctx, viewer, ref)
}

func (f *fakeUsecase) RecordView(ctx context.Context, ref domain.SubjectRef) (int64, error) {
	return f.recordViewFn(ctx, ref)
}

func (f *fakeUsecase) Snapshot(ctx context.Context, viewer domain.Viewer, ref domain.SubjectRef) (domain.EngagementSnapshot, error) {
	snaps, err := f.snapshotManyFn(ctx, viewer, []domain.SubjectRef{ref})
	if err != nil || len(snaps) == 0 {
		return domain.EngagementSnapshot{}, err
	}
	return snaps[0], nil
}

func (f *fakeUsecase) SnapshotMany(ctx context.Context, viewer domain.Viewer, refs []domain.SubjectRef) ([]domain.EngagementSnapshot, error) {
	return f.snapshotManyFn(ctx, viewer, refs)
}

func (f *fakeUsecase) InitBloomFilter(ctx context.Context) error { return nil }

func newTestRouter(uc domain.EngagementUsecase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	rest.NewEngagementHandler(uc).RegisterRoutes(
		r,
		middleware.AuthMiddleware(testSecret),
		middleware.OptionalAuthMiddleware(testSecret),
	)
	return r
}

func signToken(t *testing.T, userID int64, verified bool) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id":  userID,
		"verified": verified,
		"exp":      time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func doRequest(r *gin.Engine, method, path, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestLikeSuccess(t *testing.T) {
	var gotViewer domain.Viewer
	var gotRef domain.SubjectRef
	uc := &fakeUsecase{
		likeFn: func(_ context.Context, viewer domain.Viewer, ref domain.SubjectRef) error {
			gotViewer = viewer
			gotRef = ref
			return nil
		},
	}
	r := newTestRouter(uc)

	rec := doRequest(r, http.MethodPost, "/api/jobs/42/like", signToken(t, 7, true), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeBody(t, rec)
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, domain.Viewer{UserID: 7, Verified: true}, gotViewer)
	assert.Equal(t, domain.SubjectRef{Kind: domain.KindJobPosting, ID: "42"}, gotRef)
}

func TestLikeWithoutTokenIsUnauthorized(t *testing.T) {
	uc := &fakeUsecase{
		likeFn: func(context.Context, domain.Viewer, domain.SubjectRef) error {
			t.Fatal("usecase should not be reached")
			return nil
		},
	}
	r := newTestRouter(uc)

	rec := doRequest(r, http.MethodPost, "/api/jobs/42/like", "", nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "error", decodeBody(t, rec).Status)
}

func TestLikeDuplicateReturns400WithMessage(t *testing.T) {
	uc := &fakeUsecase{
		likeFn: func(context.Context, domain.Viewer, domain.SubjectRef) error {
			return domain.ErrAlreadyLiked
		},
	}
	r := newTestRouter(uc)

	rec := doRequest(r, http.MethodPost, "/api/lectures/5/like", signToken(t, 7, true), nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec).Message, "already")
}

func TestLikeUnverifiedViewerForbidden(t *testing.T) {
	uc := &fakeUsecase{
		likeFn: func(context.Context, domain.Viewer, domain.SubjectRef) error {
			return domain.ErrNotVerified
		},
	}
	r := newTestRouter(uc)

	rec := doRequest(r, http.MethodPost, "/api/resumes/3/like", signToken(t, 7, false), nil)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, domain.ErrNotVerified.Error(), decodeBody(t, rec).Message)
}

func TestLikeMissingSubjectNotFound(t *testing.T) {
	uc := &fakeUsecase{
		likeFn: func(context.Context, domain.Viewer, domain.SubjectRef) error {
			return domain.ErrNotFound
		},
	}
	r := newTestRouter(uc)

	rec := doRequest(r, http.MethodPost, "/api/transfers/999/like", signToken(t, 7, true), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnlikeNotLikedReturns400(t *testing.T) {
	uc := &fakeUsecase{
		unlikeFn: func(context.Context, domain.Viewer, domain.SubjectRef) error {
			return domain.ErrNotLiked
		},
	}
	r := newTestRouter(uc)

	rec := doRequest(r, http.MethodDelete, "/api/jobs/42/like", signToken(t, 7, true), nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec).Message, "already")
}

func TestRecordViewAnonymous(t *testing.T) {
	uc := &fakeUsecase{
		recordViewFn: func(_ context.Context, ref domain.SubjectRef) (int64, error) {
			assert.Equal(t, domain.SubjectRef{Kind: domain.KindLecture, ID: "5"}, ref)
			return 13, nil
		},
	}
	r := newTestRouter(uc)

	// no token: anonymous views still count
	rec := doRequest(r, http.MethodPost, "/api/lectures/5/view", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		ViewCount int64 `json:"viewCount"`
	}
	require.NoError(t, json.Unmarshal(decodeBody(t, rec).Data, &data))
	assert.EqualValues(t, 13, data.ViewCount)
}

func TestRecordViewInternalError(t *testing.T) {
	uc := &fakeUsecase{
		recordViewFn: func(context.Context, domain.SubjectRef) (int64, error) {
			return 0, domain.ErrInternalServerError
		},
	}
	r := newTestRouter(uc)

	rec := doRequest(r, http.MethodPost, "/api/jobs/1/view", "", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSnapshotReturnsBatch(t *testing.T) {
	uc := &fakeUsecase{
		snapshotManyFn: func(_ context.Context, viewer domain.Viewer, refs []domain.SubjectRef) ([]domain.EngagementSnapshot, error) {
			assert.True(t, viewer.Anonymous())
			require.Len(t, refs, 2)
			return []domain.EngagementSnapshot{
				{Subject: refs[0], Liked: false, ViewCount: 4},
				{Subject: refs[1], Liked: false, ViewCount: 9},
			}, nil
		},
	}
	r := newTestRouter(uc)

	body := []byte(`{"items":[{"kind":"jobs","id":"1"},{"kind":"resumes","id":"2"}]}`)
	rec := doRequest(r, http.MethodPost, "/api/engagements/snapshot", "", body)

	require.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		Snapshots []struct {
			Kind      string `json:"kind"`
			ID        string `json:"id"`
			IsLiked   bool   `json:"isLiked"`
			ViewCount int64  `json:"viewCount"`
		} `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(decodeBody(t, rec).Data, &data))
	require.Len(t, data.Snapshots, 2)
	assert.Equal(t, "jobs", data.Snapshots[0].Kind)
	assert.EqualValues(t, 9, data.Snapshots[1].ViewCount)
}

func TestSnapshotRejectsUnknownKind(t *testing.T) {
	uc := &fakeUsecase{
		snapshotManyFn: func(context.Context, domain.Viewer, []domain.SubjectRef) ([]domain.EngagementSnapshot, error) {
			t.Fatal("usecase should not be reached")
			return nil, nil
		},
	}
	r := newTestRouter(uc)

	body := []byte(`{"items":[{"kind":"podcasts","id":"1"}]}`)
	rec := doRequest(r, http.MethodPost, "/api/engagements/snapshot", "", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSnapshotRejectsEmptyBatch(t *testing.T) {
	uc := &fakeUsecase{}
	r := newTestRouter(uc)

	rec := doRequest(r, http.MethodPost, "/api/engagements/snapshot", "", []byte(`{"items":[]}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExpiredTokenIsAnonymousOnOptionalRoutes(t *testing.T) {
	claims := jwt.MapClaims{
		"user_id":  int64(7),
		"verified": true,
		"exp":      time.Now().Add(-time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	uc := &fakeUsecase{
		snapshotManyFn: func(_ context.Context, viewer domain.Viewer, refs []domain.SubjectRef) ([]domain.EngagementSnapshot, error) {
			assert.True(t, viewer.Anonymous())
			return nil, nil
		},
	}
	r := newTestRouter(uc)

	body := []byte(`{"items":[{"kind":"jobs","id":"1"}]}`)
	rec := doRequest(r, http.MethodPost, "/api/engagements/snapshot", token, body)

	assert.Equal(t, http.StatusOK, rec.Code)
}
