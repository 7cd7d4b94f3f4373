package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/auth"
	"ms-booking/internal/models"
	"ms-booking/internal/reporting"
	"ms-booking/internal/utils"
)

type Handler struct {
	ReportingService *reporting.Service
}

// EventReport handles GET /reports/events/{eventID}. Organizer/admin only.
func (h *Handler) EventReport(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireReporter(w, r)
	if !ok {
		return
	}

	eventID := chi.URLParam(r, "eventID")
	report, err := h.ReportingService.GetEventReport(r.Context(), eventID, principal.TenantID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not build report", err.Error()))
		return
	}
	if report == nil {
		writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Event not found", "no such event in your tenant"))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("event report", report))
}

// Dashboard handles GET /reports/dashboard. Organizer/admin only.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireReporter(w, r)
	if !ok {
		return
	}

	adminView := principal.Role == models.RoleAdmin
	dashboard, err := h.ReportingService.GetDashboard(r.Context(), principal.TenantID, principal.UserID, adminView)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not build dashboard", err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("dashboard", dashboard))
}

func requireReporter(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing principal"))
		return auth.Principal{}, false
	}
	if !principal.CanManageTenant() {
		writeJSON(w, http.StatusForbidden, utils.ErrorResponse("Access denied", "only organizers and admins can access reports"))
		return auth.Principal{}, false
	}
	return principal, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
