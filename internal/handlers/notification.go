package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/martforge/martforge-api/internal/notification"
)

type NotificationHandler struct {
	svc    notification.Service
	logger zerolog.Logger
}

func NewNotificationHandler(svc notification.Service, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		svc:    svc,
		logger: logger.With().Str("handler", "notification").Logger(),
	}
}

func (h *NotificationHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 25)

	notifications, err := h.svc.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list notifications")
		http.Error(w, "failed to list notifications", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	notif, err := h.svc.MarkRead(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "notification not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, notif)
}
