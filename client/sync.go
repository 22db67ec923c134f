package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Guyuepp/engagement-sync/domain"
)

// ToggleStatus classifies the server's answer to one toggle request.
type ToggleStatus int8

const (
	// ToggleConfirmed means the relation now matches what we intended.
	ToggleConfirmed ToggleStatus = iota + 1
	// ToggleAlreadyApplied means the relation already matched before our
	// request (duplicate POST/DELETE). Success-equivalent.
	ToggleAlreadyApplied
	// ToggleRequiresAuth means the viewer has no valid session.
	ToggleRequiresAuth
	// ToggleForbidden means a policy gate rejected the action; Message
	// carries the server's user-facing reason.
	ToggleForbidden
	// ToggleNotFound means the subject vanished.
	ToggleNotFound
	// ToggleTransient covers transport failures and unclassified responses.
	ToggleTransient
)

type ToggleOutcome struct {
	Status  ToggleStatus
	Message string
}

// ViewOutcome reports a view-increment attempt. Confirmed carries the
// server's authoritative count; otherwise the attempt was skipped.
type ViewOutcome struct {
	Confirmed bool
	Count     int64
}

// TokenSource supplies the current bearer token; ok is false when the viewer
// is signed out.
type TokenSource func() (token string, ok bool)

// Syncer is what the Controller needs from the network layer.
type Syncer interface {
	RequestToggle(ctx context.Context, ref domain.SubjectRef, intendedLiked bool) ToggleOutcome
	RequestViewIncrement(ctx context.Context, ref domain.SubjectRef) ViewOutcome
}

// envelope 服务端统一响应格式
type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// SyncClient translates one intent into exactly one HTTP request against the
// engagement service and interprets the response into a closed outcome type.
// It never retries and never touches any cache.
type SyncClient struct {
	baseURL string
	client  *http.Client
	tokens  TokenSource
}

var _ Syncer = (*SyncClient)(nil)

// NewSyncClient will create a sync client for the service at baseURL.
// httpClient may be nil, tokens may be nil for an always-anonymous client.
func NewSyncClient(baseURL string, httpClient *http.Client, tokens TokenSource) *SyncClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SyncClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
		tokens:  tokens,
	}
}

func (s *SyncClient) subjectURL(ref domain.SubjectRef, tail string) string {
	return fmt.Sprintf("%s/api/%s/%s/%s", s.baseURL, ref.Kind.Slug(), url.PathEscape(ref.ID), tail)
}

func (s *SyncClient) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.tokens != nil {
		if token, ok := s.tokens(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return s.client.Do(req)
}

// RequestToggle sends POST when intendedLiked is true, DELETE when false.
// Ordinary HTTP error responses are classified, never returned as failures;
// only a total transport failure maps to ToggleTransient directly.
func (s *SyncClient) RequestToggle(ctx context.Context, ref domain.SubjectRef, intendedLiked bool) ToggleOutcome {
	method := http.MethodPost
	if !intendedLiked {
		method = http.MethodDelete
	}

	resp, err := s.do(ctx, method, s.subjectURL(ref, "like"), nil)
	if err != nil {
		return ToggleOutcome{Status: ToggleTransient, Message: err.Error()}
	}
	defer resp.Body.Close()

	env := decodeEnvelope(resp)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return ToggleOutcome{Status: ToggleConfirmed}
	case resp.StatusCode == http.StatusBadRequest:
		// 服务端对幂等 no-op 复用了 400，只能靠 message 区分
		if strings.Contains(strings.ToLower(env.Message), "already") {
			return ToggleOutcome{Status: ToggleAlreadyApplied}
		}
		return ToggleOutcome{Status: ToggleTransient, Message: env.Message}
	case resp.StatusCode == http.StatusUnauthorized:
		return ToggleOutcome{Status: ToggleRequiresAuth}
	case resp.StatusCode == http.StatusForbidden:
		return ToggleOutcome{Status: ToggleForbidden, Message: env.Message}
	case resp.StatusCode == http.StatusNotFound:
		return ToggleOutcome{Status: ToggleNotFound}
	default:
		return ToggleOutcome{Status: ToggleTransient, Message: env.Message}
	}
}

// RequestViewIncrement fires one view ping. View counting is best-effort:
// any non-2xx collapses to Skipped and is never surfaced to the user.
func (s *SyncClient) RequestViewIncrement(ctx context.Context, ref domain.SubjectRef) ViewOutcome {
	resp, err := s.do(ctx, http.MethodPost, s.subjectURL(ref, "view"), nil)
	if err != nil {
		logrus.Debugf("view increment skipped for %s: %v", ref, err)
		return ViewOutcome{}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ViewOutcome{}
	}

	env := decodeEnvelope(resp)
	var data struct {
		ViewCount int64 `json:"viewCount"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		logrus.Warnf("bad view count payload for %s: %v", ref, err)
		return ViewOutcome{}
	}
	return ViewOutcome{Confirmed: true, Count: data.ViewCount}
}

type snapshotRequest struct {
	Items []snapshotItem `json:"items"`
}

type snapshotItem struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type snapshotPayload struct {
	Snapshots []struct {
		Kind      string `json:"kind"`
		ID        string `json:"id"`
		IsLiked   bool   `json:"isLiked"`
		ViewCount int64  `json:"viewCount"`
	} `json:"snapshots"`
}

// FetchSnapshots asks the bulk snapshot endpoint for the engagement fields
// of the given subjects. Used by the Bootstrapper on list pages.
func (s *SyncClient) FetchSnapshots(ctx context.Context, refs []domain.SubjectRef) ([]domain.EngagementSnapshot, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	req := snapshotRequest{Items: make([]snapshotItem, len(refs))}
	for i, ref := range refs {
		req.Items[i] = snapshotItem{Kind: ref.Kind.Slug(), ID: ref.ID}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	resp, err := s.do(ctx, http.MethodPost, s.baseURL+"/api/engagements/snapshot", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("snapshot fetch failed with status %d", resp.StatusCode)
	}

	env := decodeEnvelope(resp)
	var payload snapshotPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil, err
	}

	snaps := make([]domain.EngagementSnapshot, 0, len(payload.Snapshots))
	for _, item := range payload.Snapshots {
		kind, err := domain.ParseSubjectKind(item.Kind)
		if err != nil {
			logrus.Warnf("snapshot with unknown kind %q skipped", item.Kind)
			continue
		}
		snaps = append(snaps, domain.EngagementSnapshot{
			Subject:   domain.SubjectRef{Kind: kind, ID: item.ID},
			Liked:     item.IsLiked,
			ViewCount: item.ViewCount,
		})
	}
	return snaps, nil
}

func decodeEnvelope(resp *http.Response) envelope {
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		logrus.Debugf("undecodable response body: %v", err)
	}
	return env
}
