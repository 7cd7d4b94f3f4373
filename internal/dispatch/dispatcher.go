package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// Store persists the durable side-effect records.
type Store interface {
	CreateBookingLog(ctx context.Context, entry models.BookingLog) error
	CreateNotification(ctx context.Context, notification models.Notification) error
}

// Publisher streams transitions to the booking-events topic.
type Publisher interface {
	PublishBookingEvent(event models.BookingEvent) error
}

// Dispatcher produces the audit log entries and notifications for a
// committed state transition. It runs synchronously after the owning
// transaction commits; a failing side effect is retried a bounded number
// of times and then logged, never propagated back to the caller, so a
// committed transition always stands.
type Dispatcher struct {
	Store     Store
	Publisher Publisher
	Logger    *logger.Logger

	MaxAttempts int
	RetryDelay  time.Duration
}

func NewDispatcher(store Store, publisher Publisher, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		Store:       store,
		Publisher:   publisher,
		Logger:      log,
		MaxAttempts: 3,
		RetryDelay:  100 * time.Millisecond,
	}
}

// BookingCreated records the request plus its admission outcome: a
// create_request entry, an auto_confirm or auto_waitlist entry, and the
// matching notification to the requester.
func (d *Dispatcher) BookingCreated(ctx context.Context, booking models.Booking, event *models.Event) {
	d.writeLog(ctx, booking, models.ActionCreateRequest, "User requested a booking.")

	eventTitle := booking.EventID
	if event != nil {
		eventTitle = event.Title
	}

	switch booking.Status {
	case models.StatusConfirmed:
		d.writeLog(ctx, booking, models.ActionAutoConfirm, "Automatically confirmed.")
		d.writeNotification(ctx, booking, models.NotificationConfirmed,
			"Booking Confirmed",
			fmt.Sprintf("Your booking for %s has been confirmed as space was available.", eventTitle))
	case models.StatusWaitlisted:
		d.writeLog(ctx, booking, models.ActionAutoWaitlist, "Automatically waitlisted.")
		d.writeNotification(ctx, booking, models.NotificationWaitlisted,
			"Added to Waitlist",
			fmt.Sprintf("%s is full; you've been added to the waitlist.", eventTitle))
	}

	d.publish(models.ActionCreateRequest, booking)
}

// BookingCanceled records the cancellation; the note keeps the prior
// status for the audit trail.
func (d *Dispatcher) BookingCanceled(ctx context.Context, booking models.Booking, prevStatus string) {
	d.writeLog(ctx, booking, models.ActionCancel, fmt.Sprintf("%s booking canceled.", prevStatus))
	d.writeNotification(ctx, booking, models.NotificationCanceled,
		"Booking Canceled",
		"Your booking has been canceled.")

	d.publish(models.ActionCancel, booking)
}

// BookingPromoted records a waitlist promotion.
func (d *Dispatcher) BookingPromoted(ctx context.Context, booking models.Booking) {
	d.writeLog(ctx, booking, models.ActionPromoteFromWaitlist, "Promoted from waitlist due to cancellation.")
	d.writeNotification(ctx, booking, models.NotificationPromoted,
		"Promoted from Waitlist",
		"A spot opened up; your booking is now confirmed.")

	d.publish(models.ActionPromoteFromWaitlist, booking)
}

func (d *Dispatcher) writeLog(ctx context.Context, booking models.Booking, action, note string) {
	entry := models.BookingLog{
		ID:        uuid.NewString(),
		BookingID: booking.ID,
		EventID:   booking.EventID,
		UserID:    booking.UserID,
		TenantID:  booking.TenantID,
		Action:    action,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}

	d.withRetry(fmt.Sprintf("booking log %s for %s", action, booking.ID), func() error {
		return d.Store.CreateBookingLog(ctx, entry)
	})
}

func (d *Dispatcher) writeNotification(ctx context.Context, booking models.Booking, notificationType, title, message string) {
	notification := models.Notification{
		ID:        uuid.NewString(),
		UserID:    booking.UserID,
		BookingID: booking.ID,
		TenantID:  booking.TenantID,
		Type:      notificationType,
		Title:     title,
		Message:   message,
		Read:      false,
		CreatedAt: time.Now().UTC(),
	}

	d.withRetry(fmt.Sprintf("notification %s for %s", notificationType, booking.ID), func() error {
		return d.Store.CreateNotification(ctx, notification)
	})
}

func (d *Dispatcher) publish(action string, booking models.Booking) {
	if d.Publisher == nil {
		return
	}

	event := models.BookingEvent{
		Action:    action,
		BookingID: booking.ID,
		EventID:   booking.EventID,
		UserID:    booking.UserID,
		TenantID:  booking.TenantID,
		Status:    booking.Status,
		Timestamp: time.Now().UTC(),
	}

	if err := d.Publisher.PublishBookingEvent(event); err != nil {
		d.Logger.Error("KAFKA", fmt.Sprintf("publish %s for booking %s failed: %v", action, booking.ID, err))
	}
}

// withRetry attempts a side-effect write a bounded number of times. The
// final failure is recorded as a side-effect failure; it must not unwind
// the state transition it follows.
func (d *Dispatcher) withRetry(description string, fn func() error) {
	attempts := d.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return
		}
		time.Sleep(d.RetryDelay)
	}

	d.Logger.Error("SIDE_EFFECT", fmt.Sprintf("%s failed after %d attempts: %v", description, attempts, err))
}
