package handler

import (
	"encoding/json"
	"net/http"

	"github.com/fitgram/internal/middleware"
	"github.com/fitgram/internal/push"
	"github.com/fitgram/internal/repository"
)

// PushHandler manages browser push subscriptions for the offline fallback.
type PushHandler struct {
	repo *repository.PushRepository
	keys *push.VAPIDKeys
}

func NewPushHandler(repo *repository.PushRepository, keys *push.VAPIDKeys) *PushHandler {
	return &PushHandler{repo: repo, keys: keys}
}

type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Subscribe stores the subscription from PushManager.getSubscription().
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint and keys required")
		return
	}

	sub := repository.PushSubscription{
		UserID:   userID,
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}
	if err := h.repo.Save(r.Context(), &sub); err != nil {
		writeAppErr(w, "push.Subscribe", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req unsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint required")
		return
	}

	if err := h.repo.Delete(r.Context(), userID, req.Endpoint); err != nil {
		writeAppErr(w, "push.Unsubscribe", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PublicKey returns the VAPID public key clients need to subscribe.
func (h *PushHandler) PublicKey(w http.ResponseWriter, r *http.Request) {
	if h.keys == nil || h.keys.PublicKey == "" {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":          true,
		"vapid_public_key": h.keys.PublicKey,
	})
}
