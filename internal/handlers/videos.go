package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/pawpals/backend/internal/logging"
	"github.com/pawpals/backend/internal/models"
	"github.com/pawpals/backend/internal/repositories"
)

const maxCaptionLength = 500

// VideoHandler provides endpoints for sharing and fetching videos.
type VideoHandler struct {
	Shares         ShareStore
	Gateway        VideoGateway
	Limiter        RateLimiter
	TrustedProxies TrustedProxies
	NowFunc        func() time.Time
}

type createVideoRequest struct {
	URL     string `json:"url"`
	Caption string `json:"caption"`
}

type createVideoResponse struct {
	Share models.VideoShare `json:"share"`
}

type feedResponse struct {
	Entries []models.VideoShare `json:"entries"`
}

// Create handles POST /api/v1/videos.
func (h VideoHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Shares == nil || h.Gateway == nil {
		logger.Error("video sharing dependencies unavailable", "hasShares", h.Shares != nil, "hasGateway", h.Gateway != nil)
		respondError(ctx, w, http.StatusInternalServerError, "video service unavailable")
		return
	}

	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if !allowRequest(h.Limiter, h.TrustedProxies, w, r, ScopeLookup) {
		return
	}

	var req createVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid share payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	req.Caption = strings.TrimSpace(req.Caption)
	if req.URL == "" {
		respondError(ctx, w, http.StatusBadRequest, "url is required")
		return
	}
	if utf8.RuneCountInString(req.Caption) > maxCaptionLength {
		respondError(ctx, w, http.StatusBadRequest, "caption is too long")
		return
	}

	now := nowFrom(h.NowFunc)
	result, err := h.Gateway.ValidateURL(ctx, req.URL)
	if err != nil {
		respondGatewayError(ctx, w, err, now)
		return
	}
	if !result.Valid || result.ID == nil || result.Video == nil {
		respondError(ctx, w, http.StatusBadRequest, "url does not point to an available youtube video")
		return
	}

	video := result.Video
	share := models.VideoShare{
		ID:           uuid.NewString(),
		OwnerID:      identity.UserID,
		VideoID:      result.ID.String(),
		URL:          "https://www.youtube.com/watch?v=" + result.ID.String(),
		Caption:      req.Caption,
		Title:        video.Title,
		ChannelTitle: video.ChannelTitle,
		ThumbnailURL: video.ThumbnailURL,
		PublishedAt:  video.PublishedAt,
		CreatedAt:    now,
	}

	if err := h.Shares.Create(ctx, share); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, http.StatusConflict, "share already exists")
			return
		}
		logger.Error("create share failed", "error", err, "videoId", share.VideoID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to share video")
		return
	}

	logger.Info("video shared", "shareId", share.ID, "videoId", share.VideoID)
	respondJSON(ctx, w, http.StatusCreated, createVideoResponse{Share: share})
}

// Feed handles GET /api/v1/videos/feed.
func (h VideoHandler) Feed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Shares == nil {
		logger.Error("share store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "video service unavailable")
		return
	}

	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(ctx, w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.Shares.ListFeed(ctx, identity.UserID, limit)
	if err != nil {
		logger.Error("list feed failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load feed")
		return
	}
	if entries == nil {
		entries = []models.VideoShare{}
	}

	respondJSON(ctx, w, http.StatusOK, feedResponse{Entries: entries})
}
