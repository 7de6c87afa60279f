package handler

import (
	"net/http"

	"github.com/fitgram/internal/chat"
	"github.com/go-chi/chi/v5"
)

type UserHandler struct {
	svc *chat.Service
}

func NewUserHandler(svc *chat.Service) *UserHandler {
	return &UserHandler{svc: svc}
}

// GetUser returns the public profile with presence derived from last_seen_at.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.svc.GetUser(r.Context(), id)
	if err != nil {
		writeAppErr(w, "user.GetUser", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
