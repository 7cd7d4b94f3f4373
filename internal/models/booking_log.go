package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Audit actions. A new request always produces create_request followed by
// auto_confirm or auto_waitlist; cancellations log cancel_confirmed with
// the prior status in the note.
const (
	ActionCreateRequest       = "create_request"
	ActionAutoConfirm         = "auto_confirm"
	ActionAutoWaitlist        = "auto_waitlist"
	ActionPromoteFromWaitlist = "promote_from_waitlist"
	ActionCancel              = "cancel_confirmed"
)

// BookingLog is append-only. Entries are never updated or deleted.
type BookingLog struct {
	bun.BaseModel `bun:"table:booking_logs"`

	ID        string    `bun:"id,pk" json:"id"`
	BookingID string    `bun:"booking_id,notnull" json:"booking_id"`
	EventID   string    `bun:"event_id,notnull" json:"event_id"`
	UserID    string    `bun:"user_id,notnull" json:"user_id"`
	TenantID  string    `bun:"tenant_id,notnull" json:"tenant_id"`
	Action    string    `bun:"action,notnull" json:"action"`
	Note      string    `bun:"note" json:"note,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}
