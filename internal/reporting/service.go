package reporting

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

// Service computes derived booking aggregates. Nothing here is stored:
// every figure is a sum over current reservation statuses, so it always
// matches the bookings table.
type Service struct {
	db bun.IDB
}

func NewService(db bun.IDB) *Service {
	return &Service{db: db}
}

// EventReport represents the fill level of one event.
type EventReport struct {
	EventID          string    `json:"event_id"`
	Title            string    `json:"title"`
	Date             time.Time `json:"date"`
	Capacity         int       `json:"capacity"`
	ConfirmedCount   int       `json:"confirmed_count"`
	WaitlistedCount  int       `json:"waitlisted_count"`
	CanceledCount    int       `json:"canceled_count"`
	PercentageFilled int       `json:"percentage_filled"`
}

// DashboardSummary aggregates totals across all reported events.
type DashboardSummary struct {
	TotalEvents             int `json:"total_events"`
	TotalConfirmedBookings  int `json:"total_confirmed_bookings"`
	TotalWaitlistedBookings int `json:"total_waitlisted_bookings"`
	TotalCanceledBookings   int `json:"total_canceled_bookings"`
}

// Dashboard is the organizer view: upcoming events with fill levels,
// tenant-wide totals and the latest audit activity.
type Dashboard struct {
	UpcomingEvents []EventReport       `json:"upcoming_events"`
	Summary        DashboardSummary    `json:"summary_analytics"`
	RecentActivity []models.BookingLog `json:"recent_activity"`
}

// GetEventReport returns the fill level for a single event, tenant-scoped.
func (s *Service) GetEventReport(ctx context.Context, eventID, tenantID string) (*EventReport, error) {
	var event models.Event
	err := s.db.NewSelect().
		Model(&event).
		Where("id = ?", eventID).
		Where("tenant_id = ?", tenantID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return s.buildReport(ctx, event)
}

// GetDashboard assembles the organizer dashboard. Organizers see their
// own events; admins see every event in the tenant.
func (s *Service) GetDashboard(ctx context.Context, tenantID, organizerID string, adminView bool) (*Dashboard, error) {
	var events []models.Event
	query := s.db.NewSelect().
		Model(&events).
		Where("tenant_id = ?", tenantID).
		Order("date ASC")
	if !adminView {
		query = query.Where("organizer_id = ?", organizerID)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	dashboard := &Dashboard{
		UpcomingEvents: []EventReport{},
		RecentActivity: []models.BookingLog{},
	}
	dashboard.Summary.TotalEvents = len(events)

	now := time.Now()
	for _, event := range events {
		report, err := s.buildReport(ctx, event)
		if err != nil {
			return nil, err
		}

		dashboard.Summary.TotalConfirmedBookings += report.ConfirmedCount
		dashboard.Summary.TotalWaitlistedBookings += report.WaitlistedCount
		dashboard.Summary.TotalCanceledBookings += report.CanceledCount

		if event.Date.After(now) {
			dashboard.UpcomingEvents = append(dashboard.UpcomingEvents, *report)
		}
	}

	var activity []models.BookingLog
	err := s.db.NewSelect().
		Model(&activity).
		Where("tenant_id = ?", tenantID).
		Where("action != ?", models.ActionCreateRequest).
		Order("created_at DESC").
		Limit(5).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	dashboard.RecentActivity = activity

	return dashboard, nil
}

func (s *Service) buildReport(ctx context.Context, event models.Event) (*EventReport, error) {
	report := &EventReport{
		EventID:  event.ID,
		Title:    event.Title,
		Date:     event.Date,
		Capacity: event.Capacity,
	}

	// One grouped query instead of a count per status.
	var rows []struct {
		Status string `bun:"status"`
		Count  int    `bun:"count"`
	}
	err := s.db.NewSelect().
		Model((*models.Booking)(nil)).
		ColumnExpr("status").
		ColumnExpr("COUNT(*) AS count").
		Where("event_id = ?", event.ID).
		Where("tenant_id = ?", event.TenantID).
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		switch row.Status {
		case models.StatusConfirmed:
			report.ConfirmedCount = row.Count
		case models.StatusWaitlisted:
			report.WaitlistedCount = row.Count
		case models.StatusCanceled:
			report.CanceledCount = row.Count
		}
	}

	if event.Capacity > 0 {
		report.PercentageFilled = report.ConfirmedCount * 100 / event.Capacity
	}

	return report, nil
}
