package notification

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fairsplit/fairsplit/pkg/middleware"
	"github.com/fairsplit/fairsplit/pkg/response"
)

// Handler handles HTTP requests for notification operations
type Handler struct {
	service *Service
}

// NewHandler creates a new notification handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for notification endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/unread-count", h.UnreadCount)
	r.Put("/read-all", h.MarkAllRead)
	r.Put("/{id}/read", h.MarkRead)

	return r
}

// List handles GET /notifications
// @Summary      List my notifications
// @Tags         notifications
// @Produce      json
// @Success      200 {object} response.APIResponse{data=[]Notification}
// @Security     BearerAuth
// @Router       /notifications [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	notifications, err := h.service.List(r.Context(), userID)
	if err != nil {
		response.InternalError(w, "Failed to list notifications")
		return
	}

	response.JSON(w, http.StatusOK, notifications)
}

// UnreadCount handles GET /notifications/unread-count
// @Summary      Count my unread notifications
// @Tags         notifications
// @Produce      json
// @Success      200 {object} response.APIResponse{data=UnreadCountResponse}
// @Security     BearerAuth
// @Router       /notifications/unread-count [get]
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	count, err := h.service.UnreadCount(r.Context(), userID)
	if err != nil {
		response.InternalError(w, "Failed to count notifications")
		return
	}

	response.JSON(w, http.StatusOK, &UnreadCountResponse{UnreadCount: count})
}

// MarkRead handles PUT /notifications/{id}/read
// @Summary      Mark a notification as read
// @Tags         notifications
// @Produce      json
// @Param        id path int true "Notification ID"
// @Success      204 "No Content"
// @Failure      404 {object} response.APIResponse
// @Security     BearerAuth
// @Router       /notifications/{id}/read [put]
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid notification ID")
		return
	}

	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	if err := h.service.MarkRead(r.Context(), id, userID); err != nil {
		switch {
		case errors.Is(err, ErrNotificationNotFound):
			response.NotFound(w, err.Error())
		default:
			response.InternalError(w, "Failed to mark notification read")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles PUT /notifications/read-all
// @Summary      Mark all my notifications as read
// @Tags         notifications
// @Produce      json
// @Success      200 {object} response.APIResponse{data=MarkAllReadResponse}
// @Security     BearerAuth
// @Router       /notifications/read-all [put]
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	updated, err := h.service.MarkAllRead(r.Context(), userID)
	if err != nil {
		response.InternalError(w, "Failed to mark notifications read")
		return
	}

	response.JSON(w, http.StatusOK, &MarkAllReadResponse{Updated: updated})
}

// UnreadCountResponse reports how many notifications are unread
type UnreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}

// MarkAllReadResponse reports how many notifications were marked read
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
