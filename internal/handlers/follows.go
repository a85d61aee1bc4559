package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/pawpals/backend/internal/logging"
	"github.com/pawpals/backend/internal/models"
	"github.com/pawpals/backend/internal/repositories"
)

// FollowHandler lets a caller follow and unfollow other accounts.
type FollowHandler struct {
	Follows FollowStore
	NowFunc func() time.Time
}

type followRequest struct {
	UserID string `json:"userId"`
}

// Follow handles POST /api/v1/follows.
func (h FollowHandler) Follow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req followRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logging.FromContext(ctx).Warn("invalid follow payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	followee := strings.TrimSpace(req.UserID)
	switch {
	case followee == "":
		respondError(ctx, w, http.StatusBadRequest, "userId is required")
		return
	case followee == identity.UserID:
		respondError(ctx, w, http.StatusBadRequest, "cannot follow yourself")
		return
	}

	follow := models.Follow{FollowerID: identity.UserID, FolloweeID: followee, CreatedAt: nowFrom(h.NowFunc)}
	if err := h.Follows.Follow(ctx, follow); err != nil {
		switch {
		case errors.Is(err, repositories.ErrConflict):
			respondError(ctx, w, http.StatusConflict, "already following")
		case errors.Is(err, repositories.ErrInvalid):
			respondError(ctx, w, http.StatusBadRequest, "cannot follow yourself")
		default:
			logging.FromContext(ctx).Error("follow failed", "error", err, "followee", followee)
			respondError(ctx, w, http.StatusInternalServerError, "failed to follow")
		}
		return
	}

	respondJSON(ctx, w, http.StatusCreated, follow)
}

// Unfollow handles DELETE /api/v1/follows/{userId}.
func (h FollowHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	followee := strings.TrimSpace(r.PathValue("userId"))
	if followee == "" {
		respondError(ctx, w, http.StatusBadRequest, "userId is required")
		return
	}

	if err := h.Follows.Unfollow(ctx, identity.UserID, followee); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "not following")
			return
		}
		logging.FromContext(ctx).Error("unfollow failed", "error", err, "followee", followee)
		respondError(ctx, w, http.StatusInternalServerError, "failed to unfollow")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h FollowHandler) available(w http.ResponseWriter, r *http.Request) bool {
	if h.Follows != nil {
		return true
	}
	ctx := r.Context()
	logging.FromContext(ctx).Error("follow store unavailable")
	respondError(ctx, w, http.StatusInternalServerError, "follow service unavailable")
	return false
}
