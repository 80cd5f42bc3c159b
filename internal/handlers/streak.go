package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"reclaim/internal/services"
)

type StreakHandler struct {
	reader *services.StreakReader
}

func NewStreakHandler(reader *services.StreakReader) *StreakHandler {
	return &StreakHandler{reader: reader}
}

// Get returns the user's current and longest streak plus the last 30 days.
func (h *StreakHandler) Get(w http.ResponseWriter, r *http.Request) {
	info, err := h.reader.StreakInfo(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
