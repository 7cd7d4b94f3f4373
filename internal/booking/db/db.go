package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-booking/internal/booking"
	"ms-booking/internal/models"
)

// DB implements booking.DBLayer on top of bun. It holds a bun.IDB so the
// same struct can be bound either to the database or to one transaction.
type DB struct {
	Bun bun.IDB
}

// RunInTx executes fn with a DB bound to a single transaction. Counts and
// writes issued through that DB see one consistent snapshot and commit
// atomically.
func (d *DB) RunInTx(ctx context.Context, fn func(tx booking.DBLayer) error) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(&DB{Bun: tx})
	})
}

// ---------------- EVENTS ----------------

// GetEvent fetches an event scoped to a tenant. A cross-tenant id behaves
// exactly like a missing one.
func (d *DB) GetEvent(ctx context.Context, eventID, tenantID string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
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
	return &event, nil
}

// ---------------- BOOKINGS ----------------

// CountBookings returns the number of bookings for an event in a given
// status, tenant-scoped.
func (d *DB) CountBookings(ctx context.Context, eventID, tenantID, status string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Booking)(nil)).
		Where("event_id = ?", eventID).
		Where("tenant_id = ?", tenantID).
		Where("status = ?", status).
		Count(ctx)
}

func (d *DB) CreateBooking(ctx context.Context, booking models.Booking) error {
	_, err := d.Bun.NewInsert().Model(&booking).Exec(ctx)
	return err
}

func (d *DB) GetBookingByID(ctx context.Context, bookingID, tenantID string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("id = ?", bookingID).
		Where("tenant_id = ?", tenantID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// UpdateBookingStatus updates only the status column; created_at stays
// untouched since it is the FIFO ordering key.
func (d *DB) UpdateBookingStatus(ctx context.Context, bookingID, status string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", status).
		Where("id = ?", bookingID).
		Exec(ctx)
	return err
}

// FindOldestWaitlisted returns the longest-waiting waitlisted booking for
// an event, or nil when the waitlist is empty. Ties on created_at break
// on the id so the order is stable.
func (d *DB) FindOldestWaitlisted(ctx context.Context, eventID, tenantID string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("event_id = ?", eventID).
		Where("tenant_id = ?", tenantID).
		Where("status = ?", models.StatusWaitlisted).
		Order("created_at ASC", "id ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (d *DB) ListBookingsByUser(ctx context.Context, userID, tenantID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("user_id = ?", userID).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// ---------------- SIDE-EFFECT RECORDS ----------------

func (d *DB) CreateBookingLog(ctx context.Context, entry models.BookingLog) error {
	_, err := d.Bun.NewInsert().Model(&entry).Exec(ctx)
	return err
}

func (d *DB) CreateNotification(ctx context.Context, notification models.Notification) error {
	_, err := d.Bun.NewInsert().Model(&notification).Exec(ctx)
	return err
}

func (d *DB) ListNotificationsByUser(ctx context.Context, userID, tenantID string) ([]models.Notification, error) {
	var notifications []models.Notification
	err := d.Bun.NewSelect().
		Model(&notifications).
		Where("user_id = ?", userID).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkNotificationRead flips the read flag, the only mutable field on a
// notification. Scoped to the owning user so nobody marks someone else's.
func (d *DB) MarkNotificationRead(ctx context.Context, notificationID, userID, tenantID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Notification)(nil)).
		Set("read = ?", true).
		Where("id = ?", notificationID).
		Where("user_id = ?", userID).
		Where("tenant_id = ?", tenantID).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ---------------- AUDIT QUERIES ----------------

// ListRecentActivity returns the latest booking log entries for a tenant,
// excluding the create_request entries that precede every admission.
func (d *DB) ListRecentActivity(ctx context.Context, tenantID string, limit int) ([]models.BookingLog, error) {
	var entries []models.BookingLog
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("tenant_id = ?", tenantID).
		Where("action != ?", models.ActionCreateRequest).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
