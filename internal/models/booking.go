package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Booking statuses. The status column only ever moves along
// confirmed→canceled, waitlisted→confirmed and waitlisted→canceled.
const (
	StatusConfirmed  = "confirmed"
	StatusWaitlisted = "waitlisted"
	StatusCanceled   = "canceled"
)

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID        string    `bun:"id,pk" json:"id"`
	EventID   string    `bun:"event_id,notnull" json:"event_id"`
	UserID    string    `bun:"user_id,notnull" json:"user_id"`
	TenantID  string    `bun:"tenant_id,notnull" json:"tenant_id"`
	Status    string    `bun:"status,notnull" json:"status"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

type BookingRequest struct {
	EventID string `json:"event_id"`
}

type BookingResponse struct {
	BookingID string `json:"booking_id"`
	EventID   string `json:"event_id"`
	UserID    string `json:"user_id"`
	Status    string `json:"status"`
}

// BookingEvent is the message streamed to Kafka for every booking
// state transition.
type BookingEvent struct {
	Action    string    `json:"action"`
	BookingID string    `json:"booking_id"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	TenantID  string    `json:"tenant_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
