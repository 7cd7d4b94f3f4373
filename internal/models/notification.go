package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	NotificationConfirmed  = "booking_confirmed"
	NotificationWaitlisted = "waitlisted"
	NotificationPromoted   = "waitlist_promoted"
	NotificationCanceled   = "booking_canceled"
)

// Notification is created once per user-visible transition; only the
// read flag is ever updated afterwards.
type Notification struct {
	bun.BaseModel `bun:"table:notifications"`

	ID        string    `bun:"id,pk" json:"id"`
	UserID    string    `bun:"user_id,notnull" json:"user_id"`
	BookingID string    `bun:"booking_id,notnull" json:"booking_id"`
	TenantID  string    `bun:"tenant_id,notnull" json:"tenant_id"`
	Type      string    `bun:"type,notnull" json:"type"`
	Title     string    `bun:"title,notnull" json:"title"`
	Message   string    `bun:"message" json:"message"`
	Read      bool      `bun:"read,notnull,default:false" json:"read"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}
