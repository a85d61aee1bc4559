package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pawpals/backend/internal/auth"
	"github.com/pawpals/backend/internal/models"
	"github.com/pawpals/backend/internal/repositories"
	"github.com/pawpals/backend/internal/videos"
)

type shareStoreStub struct {
	share     models.VideoShare
	created   int
	feed      []models.VideoShare
	feedUser  string
	feedLimit int
	createErr error
	feedErr   error
}

func (s *shareStoreStub) Create(_ context.Context, share models.VideoShare) error {
	s.created++
	s.share = share
	return s.createErr
}

func (s *shareStoreStub) ListFeed(_ context.Context, userID string, limit int) ([]models.VideoShare, error) {
	s.feedUser = userID
	s.feedLimit = limit
	if s.feedErr != nil {
		return nil, s.feedErr
	}
	return s.feed, nil
}

func validGateway(t *testing.T) *gatewayStub {
	t.Helper()
	id := mustVideoID(t, "dQw4w9WgXcQ")
	return &gatewayStub{validation: videos.Validation{
		Valid: true,
		ID:    &id,
		Video: &videos.VideoRecord{
			ID:           id,
			Title:        "Golden retriever meets snow",
			ChannelTitle: "Good Boys",
			ThumbnailURL: "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg",
			PublishedAt:  time.Date(2023, time.December, 24, 9, 0, 0, 0, time.UTC),
		},
	}}
}

func newShareRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos", bytes.NewBufferString(body))
	return withIdentity(req, auth.Identity{UserID: "user-123"})
}

func TestVideoHandlerCreateSuccess(t *testing.T) {
	store := &shareStoreStub{}
	gateway := validGateway(t)
	now := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

	handler := VideoHandler{
		Shares:  store,
		Gateway: gateway,
		NowFunc: func() time.Time { return now },
	}

	req := newShareRequest(`{"url":"https://youtu.be/dQw4w9WgXcQ?t=42","caption":"  first snow!  "}`)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusCreated)
	}
	if gateway.validated != "https://youtu.be/dQw4w9WgXcQ?t=42" {
		t.Fatalf("expected url to be validated, got %q", gateway.validated)
	}

	share := store.share
	if share.ID == "" {
		t.Fatal("expected share ID to be set")
	}
	if share.OwnerID != "user-123" || share.VideoID != "dQw4w9WgXcQ" {
		t.Fatalf("unexpected share owner or video: %+v", share)
	}
	if share.URL != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Fatalf("expected canonical url got %q", share.URL)
	}
	if share.Caption != "first snow!" || share.Title != "Golden retriever meets snow" || share.ChannelTitle != "Good Boys" {
		t.Fatalf("unexpected share metadata: %+v", share)
	}
	if !share.CreatedAt.Equal(now) {
		t.Fatalf("unexpected created at: %v", share.CreatedAt)
	}

	var resp createVideoResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Share.ID != share.ID {
		t.Fatalf("response share mismatch: got %s want %s", resp.Share.ID, share.ID)
	}
}

func TestVideoHandlerCreateRequiresIdentity(t *testing.T) {
	store := &shareStoreStub{}
	handler := VideoHandler{Shares: store, Gateway: validGateway(t)}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos", bytes.NewBufferString(`{"url":"dQw4w9WgXcQ"}`))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if store.created != 0 {
		t.Fatal("expected no share to be created")
	}
}

func TestVideoHandlerCreateValidationFailures(t *testing.T) {
	cases := map[string]string{
		"malformed json": `{`,
		"missing url":    `{"caption":"hi"}`,
		"long caption":   `{"url":"dQw4w9WgXcQ","caption":"` + strings.Repeat("a", maxCaptionLength+1) + `"}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			gateway := validGateway(t)
			handler := VideoHandler{Shares: &shareStoreStub{}, Gateway: gateway}
			rec := httptest.NewRecorder()

			handler.Create(rec, newShareRequest(body))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", rec.Code)
			}
			if gateway.calls != 0 {
				t.Fatalf("expected no gateway calls got %d", gateway.calls)
			}
		})
	}
}

func TestVideoHandlerCreateRejectsUnknownVideo(t *testing.T) {
	store := &shareStoreStub{}
	handler := VideoHandler{Shares: store, Gateway: &gatewayStub{validation: videos.Validation{Valid: false}}}
	rec := httptest.NewRecorder()

	handler.Create(rec, newShareRequest(`{"url":"https://vimeo.com/12345"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if store.created != 0 {
		t.Fatal("expected no share to be created")
	}
}

func TestVideoHandlerCreateProviderUnavailable(t *testing.T) {
	handler := VideoHandler{Shares: &shareStoreStub{}, Gateway: &gatewayStub{err: videos.ErrUpstreamUnavailable}}
	rec := httptest.NewRecorder()

	handler.Create(rec, newShareRequest(`{"url":"dQw4w9WgXcQ"}`))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestVideoHandlerCreateStoreErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "conflict", err: repositories.ErrConflict, status: http.StatusConflict},
		{name: "failure", err: errors.New("insert failed"), status: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := VideoHandler{Shares: &shareStoreStub{createErr: tc.err}, Gateway: validGateway(t)}
			rec := httptest.NewRecorder()

			handler.Create(rec, newShareRequest(`{"url":"dQw4w9WgXcQ"}`))

			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestVideoHandlerCreateMissingDeps(t *testing.T) {
	handler := VideoHandler{}
	rec := httptest.NewRecorder()

	handler.Create(rec, newShareRequest(`{}`))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestVideoHandlerFeedSuccess(t *testing.T) {
	now := time.Date(2024, time.January, 2, 15, 0, 0, 0, time.UTC)
	entries := []models.VideoShare{{
		ID:        "share-1",
		OwnerID:   "friend-1",
		VideoID:   "dQw4w9WgXcQ",
		URL:       "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Title:     "Example",
		CreatedAt: now,
	}}
	store := &shareStoreStub{feed: entries}
	handler := VideoHandler{Shares: store}

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/videos/feed?limit=10", nil), auth.Identity{UserID: "user-123"})
	rec := httptest.NewRecorder()

	handler.Feed(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if store.feedUser != "user-123" || store.feedLimit != 10 {
		t.Fatalf("unexpected feed query: user=%s limit=%d", store.feedUser, store.feedLimit)
	}

	var resp feedResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Entries) != len(entries) || resp.Entries[0].ID != entries[0].ID {
		t.Fatalf("unexpected feed response: %+v", resp.Entries)
	}
}

func TestVideoHandlerFeedEmptyIsArray(t *testing.T) {
	handler := VideoHandler{Shares: &shareStoreStub{}}
	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/videos/feed", nil), auth.Identity{UserID: "user-123"})
	rec := httptest.NewRecorder()

	handler.Feed(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "{\"entries\":[]}\n" {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestVideoHandlerFeedValidation(t *testing.T) {
	handler := VideoHandler{Shares: &shareStoreStub{}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/feed", nil)
	rec := httptest.NewRecorder()
	handler.Feed(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/videos/feed", nil)
	rec = httptest.NewRecorder()
	handler.Feed(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}

	req = withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/videos/feed?limit=-3", nil), auth.Identity{UserID: "user-123"})
	rec = httptest.NewRecorder()
	handler.Feed(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestVideoHandlerFeedStoreError(t *testing.T) {
	handler := VideoHandler{Shares: &shareStoreStub{feedErr: errors.New("query failed")}}
	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/videos/feed", nil), auth.Identity{UserID: "user-123"})
	rec := httptest.NewRecorder()

	handler.Feed(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}
