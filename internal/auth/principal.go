package auth

import (
	"context"

	"ms-booking/internal/models"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the resolved identity every request operates under. All
// reads and writes downstream are confined to TenantID.
type Principal struct {
	UserID   string
	TenantID string
	Role     string
}

func (p Principal) IsAttendee() bool {
	return p.Role == models.RoleAttendee
}

// CanManageTenant reports whether the principal may act on bookings it
// does not own (organizers and admins, within their own tenant only).
func (p Principal) CanManageTenant() bool {
	return p.Role == models.RoleOrganizer || p.Role == models.RoleAdmin
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom extracts the principal stored by the middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
