package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lucas6028/silver-server/internal/services"
	"github.com/lucas6028/silver-server/types"
)

// NotificationHandler provides HTTP handlers for assignment notifications.
type NotificationHandler struct {
	notificationService *services.NotificationService
}

// NotificationRouter registers notification routes on the given router.
// Every route requires authentication.
func NotificationRouter(
	r chi.Router,
	notificationService *services.NotificationService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := &NotificationHandler{notificationService: notificationService}
	r.Group(func(r chi.Router) {
		if authMiddleware != nil {
			r.Use(authMiddleware)
		}
		r.Get("/", handler.ListNotifications)
		r.Get("/unread", handler.UnreadCount)
		r.Post("/{notificationID}/read", handler.MarkRead)
		r.Post("/read-all", handler.MarkAllRead)
	})
}

func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	uid, err := uidFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	items, err := h.notificationService.ListForUser(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	writeJSON(w, http.StatusOK, NotificationListResponse{Items: items})
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	uid, err := uidFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	count, err := h.notificationService.UnreadCount(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count notifications")
		return
	}
	writeJSON(w, http.StatusOK, UnreadCountResponse{Count: count})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	uid, err := uidFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.notificationService.MarkRead(r.Context(), uid, chi.URLParam(r, "notificationID")); err != nil {
		writeServiceError(w, err, "failed to mark notification read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	uid, err := uidFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.notificationService.MarkAllRead(r.Context(), uid); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark notifications read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type NotificationListResponse struct {
	Items []types.Notification `json:"items"`
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}
