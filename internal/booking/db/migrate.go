package db

import (
	"context"
	"log"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

// Migrate creates the booking tables when they do not exist yet. The
// SQL migrations under migrations/ are authoritative for production;
// this path serves tests and local development.
func Migrate(db bun.IDB) error {
	ctx := context.Background()

	tables := []interface{}{
		(*models.Tenant)(nil),
		(*models.User)(nil),
		(*models.Event)(nil),
		(*models.Booking)(nil),
		(*models.BookingLog)(nil),
		(*models.Notification)(nil),
	}

	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}

// SeedDev inserts a small demo data set: two tenants, a user per role in
// the first tenant and one capacity-limited event each.
func SeedDev(db bun.IDB) {
	ctx := context.Background()
	now := time.Now().UTC()

	tenants := []models.Tenant{
		{ID: "tenant001", Name: "Acme Events", Slug: "acme", CreatedAt: now},
		{ID: "tenant002", Name: "Globex Meetups", Slug: "globex", CreatedAt: now},
	}
	users := []models.User{
		{ID: "user001", TenantID: "tenant001", Email: "alice@acme.test", Name: "Alice", Role: models.RoleAttendee, CreatedAt: now},
		{ID: "user002", TenantID: "tenant001", Email: "bob@acme.test", Name: "Bob", Role: models.RoleAttendee, CreatedAt: now},
		{ID: "user003", TenantID: "tenant001", Email: "olivia@acme.test", Name: "Olivia", Role: models.RoleOrganizer, CreatedAt: now},
		{ID: "user004", TenantID: "tenant002", Email: "gus@globex.test", Name: "Gus", Role: models.RoleAttendee, CreatedAt: now},
	}
	events := []models.Event{
		{ID: "event001", TenantID: "tenant001", Title: "Go Meetup", Date: now.AddDate(0, 0, 14), Capacity: 2, OrganizerID: "user003", CreatedAt: now},
		{ID: "event002", TenantID: "tenant002", Title: "Product Demo Day", Date: now.AddDate(0, 0, 7), Capacity: 1, CreatedAt: now},
	}

	if _, err := db.NewInsert().Model(&tenants).Ignore().Exec(ctx); err != nil {
		log.Printf("seed tenants: %v", err)
	}
	if _, err := db.NewInsert().Model(&users).Ignore().Exec(ctx); err != nil {
		log.Printf("seed users: %v", err)
	}
	if _, err := db.NewInsert().Model(&events).Ignore().Exec(ctx); err != nil {
		log.Printf("seed events: %v", err)
	}
}
