package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/opencliniq/triage/internal/audit"
	"github.com/opencliniq/triage/internal/domain"
	"github.com/opencliniq/triage/internal/server/middleware"
)

// actorEvent builds an audit event attributed to the authenticated caller,
// with the request origin address from context.
func actorEvent(ctx context.Context, action string, resourceType string, resourceID *uuid.UUID, details *domain.ChangeDetails) audit.Event {
	ev := audit.Event{
		Action:     action,
		Status:     domain.AuditStatusSuccess,
		ResourceID: resourceID,
		Details:    details,
		IP:         middleware.ClientIPFromContext(ctx),
	}
	if resourceType != "" {
		rt := resourceType
		ev.ResourceType = &rt
	}
	if uid, ok := middleware.UserIDFromContext(ctx); ok {
		id := uid
		ev.ActorID = &id
	}
	if role, ok := middleware.RoleFromContext(ctx); ok && role != "" {
		r := role
		ev.ActorType = &r
	}
	return ev
}

// fieldsDetails builds the modified-field-name payload. Returns nil for an
// empty list so unchanged operations carry no details.
func fieldsDetails(fields []string) *domain.ChangeDetails {
	if len(fields) == 0 {
		return nil
	}
	return &domain.ChangeDetails{
		FieldsModified:     fields,
		ModifiedFieldCount: len(fields),
	}
}

// queryDetails builds the collection-read payload.
func queryDetails(statusFilter string, limit, returned int) *domain.ChangeDetails {
	return &domain.ChangeDetails{
		Query: &domain.QueryDetails{
			StatusFilter:  statusFilter,
			Limit:         limit,
			ReturnedCount: returned,
		},
	}
}

// isAdmin reports whether the caller holds the admin role.
func isAdmin(ctx context.Context) bool {
	role, ok := middleware.RoleFromContext(ctx)
	return ok && role == middleware.RoleAdmin
}
