package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/pawpals/backend/internal/auth"
	"github.com/pawpals/backend/internal/logging"
	"github.com/pawpals/backend/internal/videos"
)

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, map[string]string{"error": message})
}

// respondGatewayError maps gateway errors onto HTTP statuses. Provider
// details never reach the client.
func respondGatewayError(ctx context.Context, w http.ResponseWriter, err error, now time.Time) {
	var quotaErr *videos.QuotaExceededError
	switch {
	case errors.As(err, &quotaErr):
		retryAfter := int64(math.Ceil(quotaErr.RetryAfter(now).Seconds()))
		w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
		respondError(ctx, w, http.StatusTooManyRequests, "daily video quota exhausted")
	case errors.Is(err, videos.ErrQuotaExceeded):
		respondError(ctx, w, http.StatusTooManyRequests, "daily video quota exhausted")
	case errors.Is(err, videos.ErrInvalidIdentifier):
		respondError(ctx, w, http.StatusBadRequest, "not a recognised youtube url or video id")
	case errors.Is(err, videos.ErrInvalidQuery):
		respondError(ctx, w, http.StatusBadRequest, err.Error())
	case errors.Is(err, videos.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, "video not found")
	case errors.Is(err, videos.ErrUpstreamUnavailable):
		respondError(ctx, w, http.StatusBadGateway, "video provider unavailable")
	case errors.Is(err, context.Canceled):
		// The client went away; nobody is left to read a body.
		logging.FromContext(ctx).Debug("request cancelled by client")
	default:
		logging.FromContext(ctx).Error("unexpected gateway error", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "internal error")
	}
}

func requireIdentity(ctx context.Context, w http.ResponseWriter) (auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return auth.Identity{}, false
	}
	return identity, true
}

func nowFrom(fn func() time.Time) time.Time {
	if fn != nil {
		return fn()
	}
	return time.Now().UTC()
}
