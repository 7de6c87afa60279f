package handler

import (
	"encoding/json"
	"net/http"

	"github.com/fitgram/internal/chat"
	"github.com/fitgram/internal/middleware"
	"github.com/fitgram/internal/model"
	"github.com/go-chi/chi/v5"
)

type MessageHandler struct {
	svc *chat.Service
}

func NewMessageHandler(svc *chat.Service) *MessageHandler {
	return &MessageHandler{svc: svc}
}

// History returns the newest messages of the conversation with {userID} in
// chronological order. Fetching also reconciles queued messages to delivered
// and clears the caller's unread counter.
func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	otherID := chi.URLParam(r, "userID")
	limit := queryInt(r, "limit", 0)

	messages, err := h.svc.History(r.Context(), userID, otherID, limit)
	if err != nil {
		writeAppErr(w, "message.History", err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

type sendRequest struct {
	Text          string            `json:"text"`
	Type          model.MessageType `json:"type"`
	MediaURL      string            `json:"media_url"`
	Caption       string            `json:"caption"`
	ReplyTo       *string           `json:"reply_to"`
	ForwardedFrom *string           `json:"forwarded_from"`
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	otherID := chi.URLParam(r, "userID")

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.svc.Send(r.Context(), userID, otherID, chat.SendInput{
		Text:          req.Text,
		Type:          req.Type,
		MediaURL:      req.MediaURL,
		Caption:       req.Caption,
		ReplyTo:       req.ReplyTo,
		ForwardedFrom: req.ForwardedFrom,
	})
	if err != nil {
		writeAppErr(w, "message.Send", err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	otherID := chi.URLParam(r, "userID")

	if err := h.svc.MarkRead(r.Context(), userID, otherID); err != nil {
		writeAppErr(w, "message.MarkRead", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *MessageHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	otherID := chi.URLParam(r, "userID")
	query := r.URL.Query().Get("q")
	limit := queryInt(r, "limit", 0)

	messages, err := h.svc.Search(r.Context(), userID, otherID, query, limit)
	if err != nil {
		writeAppErr(w, "message.Search", err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

type reactionRequest struct {
	Emoji string `json:"emoji"`
}

func (h *MessageHandler) ToggleReaction(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID := chi.URLParam(r, "messageID")

	var req reactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.svc.ToggleReaction(r.Context(), userID, messageID, req.Emoji)
	if err != nil {
		writeAppErr(w, "message.ToggleReaction", err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *MessageHandler) ToggleStar(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID := chi.URLParam(r, "messageID")

	msg, err := h.svc.ToggleStar(r.Context(), userID, messageID)
	if err != nil {
		writeAppErr(w, "message.ToggleStar", err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

type deleteRequest struct {
	ForEveryone bool `json:"for_everyone"`
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID := chi.URLParam(r, "messageID")

	var req deleteRequest
	if r.Body != nil {
		// Body is optional; absence means delete-for-me.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	msg, err := h.svc.Delete(r.Context(), userID, messageID, req.ForEveryone)
	if err != nil {
		writeAppErr(w, "message.Delete", err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}
