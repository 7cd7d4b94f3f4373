package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/booking/qr"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

// NotificationStore is the slice of the data layer the handler needs for
// the notification endpoints.
type NotificationStore interface {
	ListNotificationsByUser(ctx context.Context, userID, tenantID string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID, userID, tenantID string) (bool, error)
}

type Handler struct {
	BookingService *booking.Service
	Notifications  NotificationStore
	Passes         *qr.PassGenerator
}

// CreateBooking handles POST /bookings: the admission decision.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing principal"))
		return
	}

	var req models.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if req.EventID == "" {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", "event_id is required"))
		return
	}

	result, err := h.BookingService.SubmitRequest(r.Context(), req.EventID, principal)
	if err != nil {
		writeError(w, "Could not place booking", err)
		return
	}

	writeJSON(w, http.StatusCreated, utils.SuccessResponse("booking "+result.Status, models.BookingResponse{
		BookingID: result.ID,
		EventID:   result.EventID,
		UserID:    result.UserID,
		Status:    result.Status,
	}))
}

// CancelBooking handles POST /bookings/{bookingID}/cancel.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing principal"))
		return
	}

	bookingID := chi.URLParam(r, "bookingID")
	result, err := h.BookingService.Cancel(r.Context(), bookingID, principal)
	if err != nil {
		writeError(w, "Could not cancel booking", err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("booking canceled", result))
}

// GetBooking handles GET /bookings/{bookingID}.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing principal"))
		return
	}

	bookingID := chi.URLParam(r, "bookingID")
	result, err := h.BookingService.GetBooking(r.Context(), bookingID, principal)
	if err != nil {
		writeError(w, "Could not fetch booking", err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("booking", result))
}

// MyBookings handles GET /my-bookings.
func (h *Handler) MyBookings(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing principal"))
		return
	}

	bookings, err := h.BookingService.ListByUser(r.Context(), principal)
	if err != nil {
		writeError(w, "Could not list bookings", err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("bookings", bookings))
}

// CheckInPass handles GET /bookings/{bookingID}/pass and returns a PNG
// QR code for a confirmed booking.
func (h *Handler) CheckInPass(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing principal"))
		return
	}

	bookingID := chi.URLParam(r, "bookingID")
	result, err := h.BookingService.GetBooking(r.Context(), bookingID, principal)
	if err != nil {
		writeError(w, "Could not fetch booking", err)
		return
	}

	if result.Status != models.StatusConfirmed {
		writeJSON(w, http.StatusConflict, utils.ErrorResponse("No pass available", "only confirmed bookings have a check-in pass"))
		return
	}

	png, err := h.Passes.GenerateCheckInPass(*result)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not generate pass", err.Error()))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// MyNotifications handles GET /my-notifications.
func (h *Handler) MyNotifications(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing principal"))
		return
	}

	notifications, err := h.Notifications.ListNotificationsByUser(r.Context(), principal.UserID, principal.TenantID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not list notifications", err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("notifications", notifications))
}

// MarkNotificationRead handles POST /notifications/{notificationID}/read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing principal"))
		return
	}

	notificationID := chi.URLParam(r, "notificationID")
	updated, err := h.Notifications.MarkNotificationRead(r.Context(), notificationID, principal.UserID, principal.TenantID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not update notification", err.Error()))
		return
	}
	if !updated {
		writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Notification not found", "no such notification for this user"))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("notification marked as read", nil))
}

// writeError maps the service error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, booking.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, booking.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, booking.ErrAlreadyCanceled):
		status = http.StatusConflict
	case errors.Is(err, booking.ErrInvalidTransition):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, booking.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, utils.ErrorResponse(message, err.Error()))
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
