package handlers

import (
	"net/http"

	"reclaim/internal/apperr"
	"reclaim/internal/services"
)

type NotificationsHandler struct {
	dispatcher *services.Dispatcher
}

func NewNotificationsHandler(dispatcher *services.Dispatcher) *NotificationsHandler {
	return &NotificationsHandler{dispatcher: dispatcher}
}

// Send pushes a notification to the given users immediately.
func (h *NotificationsHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req services.SendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Title == "" {
		writeError(w, apperr.Validation("title is required"))
		return
	}

	summary, err := h.dispatcher.Send(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
