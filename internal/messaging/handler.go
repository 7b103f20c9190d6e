package messaging

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"teamchat/internal/middleware"
	"teamchat/internal/user"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type sendRequest struct {
	RecipientID int    `json:"recipient_id"`
	Content     string `json:"content"`
}

type startRequest struct {
	RecipientID int `json:"recipient_id"`
}

// GetConversation handles GET /api/conversations/{userID}/messages
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := callerID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	otherID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	conv, err := h.service.GetConversation(r.Context(), viewerID, otherID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"messages":   conv.Messages,
		"other_user": conv.OtherUser,
	})
}

// Send handles POST /api/messages
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := callerID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RecipientID == 0 {
		respondError(w, http.StatusBadRequest, "missing recipient_id")
		return
	}

	res, err := h.service.Send(r.Context(), viewerID, req.RecipientID, req.Content)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message_id": res.MessageID,
		"timestamp":  res.Timestamp,
	})
}

// MarkRead handles POST /api/conversations/{userID}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := callerID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	otherID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.service.MarkRead(r.Context(), viewerID, otherID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// UnreadCount handles GET /api/messages/unread-count
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := callerID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	count, err := h.service.UnreadCount(r.Context(), viewerID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"unread_count": count,
	})
}

// StartConversation handles POST /api/conversations
func (h *Handler) StartConversation(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := callerID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RecipientID == 0 {
		respondError(w, http.StatusBadRequest, "missing recipient_id")
		return
	}

	partner, err := h.service.StartConversation(r.Context(), viewerID, req.RecipientID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":                   true,
		"user":                      partner.User,
		"has_existing_conversation": partner.HasExistingConversation,
	})
}

// ListConversations handles GET /api/conversations
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := callerID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summaries, err := h.service.ListConversations(r.Context(), viewerID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"conversations": summaries,
	})
}

// SearchUsers handles GET /api/users/search?q=
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := callerID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	results, err := h.service.SearchUsers(r.Context(), viewerID, r.URL.Query().Get("q"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"results": results,
	})
}

func callerID(r *http.Request) (int, bool) {
	id, ok := r.Context().Value(middleware.UserKey).(int)
	return id, ok
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, user.ErrNotFound):
		respondError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, ErrEmptyContent):
		respondError(w, http.StatusBadRequest, "Missing fields")
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]any{"success": false, "error": msg})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
