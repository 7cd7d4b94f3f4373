package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-booking/internal/auth"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// DBLayer is the data access contract the service runs on. RunInTx hands
// the callback a DBLayer bound to one transaction, so a count and the
// write that depends on it share a single atomic unit.
type DBLayer interface {
	RunInTx(ctx context.Context, fn func(tx DBLayer) error) error

	GetEvent(ctx context.Context, eventID, tenantID string) (*models.Event, error)
	CountBookings(ctx context.Context, eventID, tenantID, status string) (int, error)
	CreateBooking(ctx context.Context, booking models.Booking) error
	GetBookingByID(ctx context.Context, bookingID, tenantID string) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingID, status string) error
	FindOldestWaitlisted(ctx context.Context, eventID, tenantID string) (*models.Booking, error)
	ListBookingsByUser(ctx context.Context, userID, tenantID string) ([]models.Booking, error)
}

// EventLock serializes the read-count/decide/write critical section per
// (tenant, event). Independent events and tenants proceed in parallel.
type EventLock interface {
	Acquire(ctx context.Context, tenantID, eventID, token string) (bool, error)
	Release(ctx context.Context, tenantID, eventID, token string) error
}

// SideEffects runs after the owning transaction commits. Implementations
// must never fail the transition that triggered them.
type SideEffects interface {
	BookingCreated(ctx context.Context, booking models.Booking, event *models.Event)
	BookingCanceled(ctx context.Context, booking models.Booking, prevStatus string)
	BookingPromoted(ctx context.Context, booking models.Booking)
}

type Service struct {
	DB          DBLayer
	Lock        EventLock
	SideEffects SideEffects
	Logger      *logger.Logger

	// Lock retry budget. Exhaustion surfaces as ErrUnavailable.
	LockAttempts   int
	LockRetryDelay time.Duration
}

func NewService(db DBLayer, lock EventLock, sideEffects SideEffects, log *logger.Logger) *Service {
	return &Service{
		DB:             db,
		Lock:           lock,
		SideEffects:    sideEffects,
		Logger:         log,
		LockAttempts:   10,
		LockRetryDelay: 50 * time.Millisecond,
	}
}

// SubmitRequest decides CONFIRMED vs WAITLISTED for a new booking request
// and persists it. The confirmed-count read and the insert run inside one
// transaction while the (tenant, event) lock is held, so two requests for
// the last seat can never both be admitted.
func (s *Service) SubmitRequest(ctx context.Context, eventID string, p auth.Principal) (*models.Booking, error) {
	if !p.IsAttendee() {
		return nil, fmt.Errorf("only attendees can book events: %w", ErrForbidden)
	}

	event, err := s.DB.GetEvent(ctx, eventID, p.TenantID)
	if err != nil {
		return nil, fmt.Errorf("fetch event %s: %w", eventID, err)
	}
	if event == nil {
		return nil, fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}

	booking := models.Booking{
		ID:        uuid.NewString(),
		EventID:   eventID,
		UserID:    p.UserID,
		TenantID:  p.TenantID,
		CreatedAt: time.Now().UTC(),
	}

	err = s.withEventLock(ctx, p.TenantID, eventID, func() error {
		return s.DB.RunInTx(ctx, func(tx DBLayer) error {
			confirmed, err := tx.CountBookings(ctx, eventID, p.TenantID, models.StatusConfirmed)
			if err != nil {
				return fmt.Errorf("count confirmed bookings: %w", err)
			}

			if confirmed < event.Capacity {
				booking.Status = models.StatusConfirmed
			} else {
				booking.Status = models.StatusWaitlisted
			}

			return tx.CreateBooking(ctx, booking)
		})
	})
	if err != nil {
		return nil, err
	}

	s.Logger.LogAdmission(eventID, booking.Status, fmt.Sprintf("booking %s for user %s", booking.ID, p.UserID))
	s.SideEffects.BookingCreated(ctx, booking, event)

	return &booking, nil
}

// Cancel transitions a booking to CANCELED. When the canceled booking held
// a confirmed seat, exactly one promotion attempt follows the commit.
func (s *Service) Cancel(ctx context.Context, bookingID string, p auth.Principal) (*models.Booking, error) {
	booking, err := s.DB.GetBookingByID(ctx, bookingID, p.TenantID)
	if err != nil {
		return nil, fmt.Errorf("fetch booking %s: %w", bookingID, err)
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID, ErrNotFound)
	}

	if p.IsAttendee() {
		if booking.UserID != p.UserID {
			return nil, fmt.Errorf("you can only cancel your own bookings: %w", ErrForbidden)
		}
	} else if !p.CanManageTenant() {
		return nil, fmt.Errorf("role %q cannot cancel bookings: %w", p.Role, ErrForbidden)
	}

	var prevStatus string
	err = s.withEventLock(ctx, p.TenantID, booking.EventID, func() error {
		return s.DB.RunInTx(ctx, func(tx DBLayer) error {
			// Re-read inside the lock: a concurrent cancel may have won.
			current, err := tx.GetBookingByID(ctx, bookingID, p.TenantID)
			if err != nil {
				return err
			}
			if current == nil {
				return ErrNotFound
			}
			if err := canTransition(current.Status, models.StatusCanceled); err != nil {
				return err
			}

			prevStatus = current.Status
			return tx.UpdateBookingStatus(ctx, bookingID, models.StatusCanceled)
		})
	})
	if err != nil {
		return nil, err
	}

	booking.Status = models.StatusCanceled
	s.Logger.LogBooking("cancel", bookingID, fmt.Sprintf("previous status %s", prevStatus))
	s.SideEffects.BookingCanceled(ctx, *booking, prevStatus)

	// Only a vacated confirmed seat frees capacity.
	if prevStatus == models.StatusConfirmed {
		if _, err := s.PromoteIfPossible(ctx, booking.EventID, p.TenantID); err != nil {
			// The promoter has no caller to report to; the cancellation
			// itself already succeeded.
			s.Logger.Error("PROMOTION", fmt.Sprintf("promotion after cancel of %s failed: %v", bookingID, err))
		}
	}

	return booking, nil
}

// PromoteIfPossible promotes the longest-waiting WAITLISTED booking for
// the event to CONFIRMED if capacity allows. At most one booking is
// promoted per invocation; invoking with no free seat or an empty
// waitlist is a safe no-op.
func (s *Service) PromoteIfPossible(ctx context.Context, eventID, tenantID string) (*models.Booking, error) {
	event, err := s.DB.GetEvent(ctx, eventID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("fetch event %s: %w", eventID, err)
	}
	if event == nil {
		return nil, fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}

	var promoted *models.Booking
	err = s.withEventLock(ctx, tenantID, eventID, func() error {
		return s.DB.RunInTx(ctx, func(tx DBLayer) error {
			// Fresh count: concurrent activity may have filled the seat
			// between the cancellation and this call.
			confirmed, err := tx.CountBookings(ctx, eventID, tenantID, models.StatusConfirmed)
			if err != nil {
				return fmt.Errorf("count confirmed bookings: %w", err)
			}
			if confirmed >= event.Capacity {
				return nil
			}

			oldest, err := tx.FindOldestWaitlisted(ctx, eventID, tenantID)
			if err != nil {
				return fmt.Errorf("find oldest waitlisted: %w", err)
			}
			if oldest == nil {
				return nil
			}

			if err := canTransition(oldest.Status, models.StatusConfirmed); err != nil {
				return err
			}
			if err := tx.UpdateBookingStatus(ctx, oldest.ID, models.StatusConfirmed); err != nil {
				return err
			}

			oldest.Status = models.StatusConfirmed
			promoted = oldest
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if promoted == nil {
		return nil, nil
	}

	s.Logger.LogPromotion(eventID, fmt.Sprintf("promoted booking %s for user %s", promoted.ID, promoted.UserID))
	s.SideEffects.BookingPromoted(ctx, *promoted)

	return promoted, nil
}

// GetBooking returns a booking visible to the caller: their own, or any
// booking in the tenant for organizers and admins.
func (s *Service) GetBooking(ctx context.Context, bookingID string, p auth.Principal) (*models.Booking, error) {
	booking, err := s.DB.GetBookingByID(ctx, bookingID, p.TenantID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID, ErrNotFound)
	}
	if p.IsAttendee() && booking.UserID != p.UserID {
		// Present the same way as a missing booking.
		return nil, fmt.Errorf("booking %s: %w", bookingID, ErrNotFound)
	}
	return booking, nil
}

// ListByUser returns the caller's own bookings, newest first.
func (s *Service) ListByUser(ctx context.Context, p auth.Principal) ([]models.Booking, error) {
	return s.DB.ListBookingsByUser(ctx, p.UserID, p.TenantID)
}

// withEventLock runs fn while holding the (tenant, event) admission lock,
// retrying acquisition a bounded number of times before reporting
// ErrUnavailable.
func (s *Service) withEventLock(ctx context.Context, tenantID, eventID string, fn func() error) error {
	token := uuid.NewString()

	attempts := s.LockAttempts
	if attempts <= 0 {
		attempts = 1
	}

	acquired := false
	for i := 0; i < attempts; i++ {
		ok, err := s.Lock.Acquire(ctx, tenantID, eventID, token)
		if err != nil {
			return fmt.Errorf("acquire admission lock: %w", err)
		}
		if ok {
			acquired = true
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.LockRetryDelay):
		}
	}
	if !acquired {
		return fmt.Errorf("admission lock for event %s still held after %d attempts: %w", eventID, attempts, ErrUnavailable)
	}

	defer func() {
		if err := s.Lock.Release(ctx, tenantID, eventID, token); err != nil {
			s.Logger.Error("LOCK", fmt.Sprintf("failed to release admission lock for event %s: %v", eventID, err))
		}
	}()

	return fn()
}

// canTransition enforces the booking state machine: confirmed→canceled,
// waitlisted→confirmed and waitlisted→canceled only.
func canTransition(from, to string) error {
	switch from {
	case models.StatusCanceled:
		if to == models.StatusCanceled {
			return ErrAlreadyCanceled
		}
		return fmt.Errorf("booking is canceled: %w", ErrInvalidTransition)
	case models.StatusConfirmed:
		if to == models.StatusCanceled {
			return nil
		}
	case models.StatusWaitlisted:
		if to == models.StatusConfirmed || to == models.StatusCanceled {
			return nil
		}
	}
	return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
}
