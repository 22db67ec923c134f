package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guyuepp/engagement-sync/domain"
)

func writeEnvelope(w http.ResponseWriter, code int, status, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"data":    data,
		"message": message,
	})
}

func TestRequestToggleSendsPostForLikeAndDeleteForUnlike(t *testing.T) {
	var methods []string
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		paths = append(paths, r.URL.Path)
		writeEnvelope(w, http.StatusOK, "success", "", nil)
	}))
	defer srv.Close()

	sc := NewSyncClient(srv.URL, srv.Client(), nil)
	ref := domain.SubjectRef{Kind: domain.KindJobPosting, ID: "42"}

	out := sc.RequestToggle(context.Background(), ref, true)
	assert.Equal(t, ToggleConfirmed, out.Status)

	out = sc.RequestToggle(context.Background(), ref, false)
	assert.Equal(t, ToggleConfirmed, out.Status)

	require.Equal(t, []string{http.MethodPost, http.MethodDelete}, methods)
	assert.Equal(t, "/api/jobs/42/like", paths[0])
	assert.Equal(t, "/api/jobs/42/like", paths[1])
}

func TestRequestToggleAttachesBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeEnvelope(w, http.StatusOK, "success", "", nil)
	}))
	defer srv.Close()

	sc := NewSyncClient(srv.URL, srv.Client(), func() (string, bool) { return "tok-123", true })
	sc.RequestToggle(context.Background(), domain.SubjectRef{Kind: domain.KindResume, ID: "1"}, true)

	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestRequestToggleClassifiesResponses(t *testing.T) {
	cases := []struct {
		name    string
		code    int
		message string
		want    ToggleStatus
	}{
		{"created", http.StatusCreated, "", ToggleConfirmed},
		{"duplicate like", http.StatusBadRequest, "already liked", ToggleAlreadyApplied},
		{"duplicate unlike", http.StatusBadRequest, "already removed", ToggleAlreadyApplied},
		{"other 400", http.StatusBadRequest, "given param is not valid", ToggleTransient},
		{"unauthorized", http.StatusUnauthorized, "", ToggleRequiresAuth},
		{"forbidden", http.StatusForbidden, "account not yet verified", ToggleForbidden},
		{"missing", http.StatusNotFound, "", ToggleNotFound},
		{"server error", http.StatusInternalServerError, "internal server error", ToggleTransient},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, tc.code, "error", tc.message, nil)
			}))
			defer srv.Close()

			sc := NewSyncClient(srv.URL, srv.Client(), nil)
			out := sc.RequestToggle(context.Background(), domain.SubjectRef{Kind: domain.KindLecture, ID: "5"}, true)

			assert.Equal(t, tc.want, out.Status)
			if tc.want == ToggleForbidden {
				assert.Equal(t, tc.message, out.Message)
			}
		})
	}
}

func TestRequestToggleNetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	sc := NewSyncClient(srv.URL, nil, nil)
	out := sc.RequestToggle(context.Background(), domain.SubjectRef{Kind: domain.KindJobPosting, ID: "1"}, true)

	assert.Equal(t, ToggleTransient, out.Status)
	assert.NotEmpty(t, out.Message)
}

func TestRequestViewIncrementConfirmed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/transfers/8/view", r.URL.Path)
		writeEnvelope(w, http.StatusOK, "success", "", map[string]any{"viewCount": 13})
	}))
	defer srv.Close()

	sc := NewSyncClient(srv.URL, srv.Client(), nil)
	out := sc.RequestViewIncrement(context.Background(), domain.SubjectRef{Kind: domain.KindTransferListing, ID: "8"})

	require.True(t, out.Confirmed)
	assert.EqualValues(t, 13, out.Count)
}

func TestRequestViewIncrementAnyErrorIsSkipped(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusBadRequest} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, code, "error", "nope", nil)
		}))

		sc := NewSyncClient(srv.URL, srv.Client(), nil)
		out := sc.RequestViewIncrement(context.Background(), domain.SubjectRef{Kind: domain.KindJobPosting, ID: "1"})
		assert.False(t, out.Confirmed)

		srv.Close()
	}
}

func TestFetchSnapshots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/engagements/snapshot", r.URL.Path)

		var req snapshotRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Items, 2)

		writeEnvelope(w, http.StatusOK, "success", "", map[string]any{
			"snapshots": []map[string]any{
				{"kind": "jobs", "id": "42", "isLiked": true, "viewCount": 7},
				{"kind": "resumes", "id": "9", "isLiked": false, "viewCount": 2},
			},
		})
	}))
	defer srv.Close()

	sc := NewSyncClient(srv.URL, srv.Client(), nil)
	snaps, err := sc.FetchSnapshots(context.Background(), []domain.SubjectRef{
		{Kind: domain.KindJobPosting, ID: "42"},
		{Kind: domain.KindResume, ID: "9"},
	})

	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, domain.EngagementSnapshot{
		Subject:   domain.SubjectRef{Kind: domain.KindJobPosting, ID: "42"},
		Liked:     true,
		ViewCount: 7,
	}, snaps[0])
}
