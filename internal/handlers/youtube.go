package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pawpals/backend/internal/logging"
	"github.com/pawpals/backend/internal/videos"
)

// YouTubeHandler exposes the video gateway over HTTP.
type YouTubeHandler struct {
	Gateway        VideoGateway
	Limiter        RateLimiter
	TrustedProxies TrustedProxies
	NowFunc        func() time.Time
}

// Search handles GET /api/v1/youtube/search.
func (h YouTubeHandler) Search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if !h.available(w, r) || !allowRequest(h.Limiter, h.TrustedProxies, w, r, ScopeSearch) {
		return
	}

	params := r.URL.Query()
	maxResults, ok := parseMaxResults(w, r)
	if !ok {
		return
	}

	page, err := h.Gateway.SearchVideos(ctx, videos.SearchQuery{
		Term:       params.Get("q"),
		MaxResults: maxResults,
		Order:      params.Get("order"),
		PageToken:  params.Get("pageToken"),
	})
	if err != nil {
		respondGatewayError(ctx, w, err, nowFrom(h.NowFunc))
		return
	}

	respondJSON(ctx, w, http.StatusOK, page)
}

// Video handles GET /api/v1/youtube/videos/{id}.
func (h YouTubeHandler) Video(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if !h.available(w, r) || !allowRequest(h.Limiter, h.TrustedProxies, w, r, ScopeLookup) {
		return
	}

	id, ok := videos.ExtractID(r.PathValue("id"))
	if !ok {
		respondGatewayError(ctx, w, videos.ErrInvalidIdentifier, nowFrom(h.NowFunc))
		return
	}

	record, err := h.Gateway.VideoDetails(ctx, id)
	if err != nil {
		respondGatewayError(ctx, w, err, nowFrom(h.NowFunc))
		return
	}

	respondJSON(ctx, w, http.StatusOK, record)
}

// Trending handles GET /api/v1/youtube/trending.
func (h YouTubeHandler) Trending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if !h.available(w, r) || !allowRequest(h.Limiter, h.TrustedProxies, w, r, ScopeSearch) {
		return
	}

	maxResults, ok := parseMaxResults(w, r)
	if !ok {
		return
	}

	page, err := h.Gateway.TrendingVideos(ctx, maxResults)
	if err != nil {
		respondGatewayError(ctx, w, err, nowFrom(h.NowFunc))
		return
	}

	respondJSON(ctx, w, http.StatusOK, page)
}

type validateRequest struct {
	URL string `json:"url"`
}

// Validate handles POST /api/v1/youtube/validate.
func (h YouTubeHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if !h.available(w, r) || !allowRequest(h.Limiter, h.TrustedProxies, w, r, ScopeLookup) {
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logging.FromContext(ctx).Warn("invalid validate payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		respondError(ctx, w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := h.Gateway.ValidateURL(ctx, req.URL)
	if err != nil {
		respondGatewayError(ctx, w, err, nowFrom(h.NowFunc))
		return
	}

	respondJSON(ctx, w, http.StatusOK, result)
}

// Quota handles GET /api/v1/youtube/quota. Only admins may read it.
func (h YouTubeHandler) Quota(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if !identity.Admin {
		respondError(ctx, w, http.StatusForbidden, "admin access required")
		return
	}
	if !h.available(w, r) {
		return
	}

	respondJSON(ctx, w, http.StatusOK, h.Gateway.QuotaUsage())
}

func (h YouTubeHandler) available(w http.ResponseWriter, r *http.Request) bool {
	if h.Gateway != nil {
		return true
	}
	ctx := r.Context()
	logging.FromContext(ctx).Error("video gateway unavailable")
	respondError(ctx, w, http.StatusInternalServerError, "video service unavailable")
	return false
}

func parseMaxResults(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("maxResults"))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		respondError(r.Context(), w, http.StatusBadRequest, "maxResults must be an integer")
		return 0, false
	}
	return n, true
}
