package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Event is read-only from the booking core's perspective: capacity is a
// config value, never mutated by admission or promotion.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          string    `bun:"id,pk" json:"id"`
	TenantID    string    `bun:"tenant_id,notnull" json:"tenant_id"`
	Title       string    `bun:"title,notnull" json:"title"`
	Description string    `bun:"description" json:"description,omitempty"`
	Date        time.Time `bun:"date,notnull" json:"date"`
	Capacity    int       `bun:"capacity,notnull" json:"capacity"`
	OrganizerID string    `bun:"organizer_id" json:"organizer_id,omitempty"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
}
