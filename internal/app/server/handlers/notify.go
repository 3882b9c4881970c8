package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"novahub/internal/core/services"
	"novahub/pkg/logging"
	"novahub/pkg/middleware"
)

// NotifyHandler lets the REST service trigger fan-out after it has persisted
// a message, a chat or a membership change.
type NotifyHandler struct {
	manager     *services.ManagerService
	broadcaster *services.Broadcaster
}

func NewNotifyHandler(manager *services.ManagerService, broadcaster *services.Broadcaster) *NotifyHandler {
	return &NotifyHandler{manager: manager, broadcaster: broadcaster}
}

type notifyResponse struct {
	Recipients int `json:"recipients"`
}

func (h *NotifyHandler) NewMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID  string          `json:"chatId"`
		Message json.RawMessage `json:"message"`
	}
	if !h.decode(w, r, &req) || !requireFields(w, req.ChatID, req.Message) {
		return
	}
	if !h.authorize(w, r, req.ChatID) {
		return
	}
	n, err := h.broadcaster.BroadcastNewMessage(r.Context(), req.ChatID, req.Message)
	h.respond(w, r, "new message", n, err)
}

func (h *NotifyHandler) NewChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID string          `json:"chatId"`
		Chat   json.RawMessage `json:"chat"`
	}
	if !h.decode(w, r, &req) || !requireFields(w, req.ChatID, req.Chat) {
		return
	}
	if !h.authorize(w, r, req.ChatID) {
		return
	}
	n, err := h.broadcaster.BroadcastNewChat(r.Context(), req.ChatID, req.Chat)
	h.respond(w, r, "new chat", n, err)
}

func (h *NotifyHandler) MemberAdded(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID string `json:"chatId"`
		UserID string `json:"userId"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ChatID) == "" || strings.TrimSpace(req.UserID) == "" {
		http.Error(w, "chatId and userId are required", http.StatusBadRequest)
		return
	}
	if !h.authorize(w, r, req.ChatID) {
		return
	}
	caller, _ := middleware.UserID(r.Context())
	n, err := h.broadcaster.BroadcastUserAddedToChat(r.Context(), req.ChatID, req.UserID, caller)
	h.respond(w, r, "member added", n, err)
}

func (h *NotifyHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logging.FromContext(r.Context()).InfoContext(r.Context(), "notify handler - bad request", logging.Err(err))
		http.Error(w, "invalid request", http.StatusBadRequest)
		return false
	}
	return true
}

func requireFields(w http.ResponseWriter, chatID string, payload json.RawMessage) bool {
	if strings.TrimSpace(chatID) == "" || len(payload) == 0 || string(payload) == "null" {
		http.Error(w, "chatId and payload are required", http.StatusBadRequest)
		return false
	}
	return true
}

// authorize requires the caller to be a member of the chat.
func (h *NotifyHandler) authorize(w http.ResponseWriter, r *http.Request, chatID string) bool {
	log := logging.FromContext(r.Context())
	caller, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}
	member, err := h.manager.IsMember(r.Context(), chatID, caller)
	if err != nil {
		log.ErrorContext(r.Context(), "notify handler - membership check failed", logging.Chat(chatID), logging.Err(err))
		http.Error(w, "membership check failed", http.StatusInternalServerError)
		return false
	}
	if !member {
		log.InfoContext(r.Context(), "notify handler - caller is not a member", logging.Chat(chatID))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return false
	}
	return true
}

func (h *NotifyHandler) respond(w http.ResponseWriter, r *http.Request, what string, recipients int, err error) {
	log := logging.FromContext(r.Context())
	if err != nil {
		log.ErrorContext(r.Context(), "notify handler - "+what+" - broadcast failed", logging.Err(err))
		http.Error(w, "broadcast failed", http.StatusInternalServerError)
		return
	}
	log.InfoContext(r.Context(), "notify handler - "+what+" - broadcast accepted", "recipients", recipients)
	writeJSON(w, r, http.StatusAccepted, notifyResponse{Recipients: recipients})
}
