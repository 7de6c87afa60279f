package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fitgram/internal/chat"
	"github.com/fitgram/internal/middleware"
	"github.com/go-chi/chi/v5"
)

type ConversationHandler struct {
	svc *chat.Service
}

func NewConversationHandler(svc *chat.Service) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// List returns the caller's inbox: one summary per peer, pinned first,
// then most recent activity.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	summaries, err := h.svc.Conversations(r.Context(), userID)
	if err != nil {
		writeAppErr(w, "conversation.List", err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *ConversationHandler) TogglePin(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	otherID := chi.URLParam(r, "userID")

	pinned, err := h.svc.TogglePin(r.Context(), userID, otherID)
	if err != nil {
		writeAppErr(w, "conversation.TogglePin", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"pinned": pinned})
}

func (h *ConversationHandler) ToggleMute(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	otherID := chi.URLParam(r, "userID")

	muted, err := h.svc.ToggleMute(r.Context(), userID, otherID)
	if err != nil {
		writeAppErr(w, "conversation.ToggleMute", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"muted": muted})
}

type settingRequest struct {
	Value string `json:"value"`
}

func (h *ConversationHandler) SetWallpaper(w http.ResponseWriter, r *http.Request) {
	h.setField(w, r, h.svc.SetWallpaper, "conversation.SetWallpaper")
}

func (h *ConversationHandler) SetTone(w http.ResponseWriter, r *http.Request) {
	h.setField(w, r, h.svc.SetTone, "conversation.SetTone")
}

func (h *ConversationHandler) setField(
	w http.ResponseWriter,
	r *http.Request,
	set func(ctx context.Context, userID, otherID, value string) error,
	op string,
) {
	userID := middleware.GetUserID(r.Context())
	otherID := chi.URLParam(r, "userID")

	var req settingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := set(r.Context(), userID, otherID, req.Value); err != nil {
		writeAppErr(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
