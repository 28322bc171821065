package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	ContextKeyUserID   contextKey = "user_id"
	ContextKeyUserRole contextKey = "role"
	ContextKeyClientIP contextKey = "client_ip"
)

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(ContextKeyUserID).(uuid.UUID)
	return v, ok
}

func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeyUserRole).(string)
	return v, ok
}

// ClientIPFromContext returns the request origin address captured for audit
// entries, or nil when unavailable.
func ClientIPFromContext(ctx context.Context) *string {
	v, ok := ctx.Value(ContextKeyClientIP).(string)
	if !ok || v == "" {
		return nil
	}
	return &v
}
