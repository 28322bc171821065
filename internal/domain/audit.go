package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Audit outcome values.
const (
	AuditStatusSuccess = "SUCCESS"
	AuditStatusFail    = "FAIL"
)

// Audited actions. The set is closed so hash inputs stay well-defined.
const (
	ActionLoginSuccess  = "LOGIN_SUCCESS"
	ActionLoginFailure  = "LOGIN_FAILURE"
	ActionLogout        = "LOGOUT"
	ActionListUsers     = "LIST_USERS"
	ActionGetUser       = "GET_USER"
	ActionCreateUser    = "CREATE_USER"
	ActionUpdateUser    = "UPDATE_USER"
	ActionDeleteUser    = "DELETE_USER"
	ActionListCases     = "LIST_CASES"
	ActionViewCase      = "VIEW_CASE"
	ActionCreateCase    = "CREATE_CASE"
	ActionUpdateCase    = "UPDATE_CASE"
	ActionUpdatePatient = "UPDATE_PATIENT"
	ActionDeleteCase    = "DELETE_CASE"
	ActionReviewCase    = "REVIEW_CASE"
)

// Audited resource types.
const (
	ResourceUser       = "USER"
	ResourcePatient    = "PATIENT"
	ResourceTriageCase = "TRIAGE_CASE"
)

// QueryDetails describes a collection-level read (filters applied, result
// size). Carried instead of raw rows so no PHI enters the log.
type QueryDetails struct {
	StatusFilter  string `json:"status_filter,omitempty"`
	Limit         int    `json:"limit"`
	ReturnedCount int    `json:"returned_count"`
}

// ChangeDetails is the structured audit payload. It is a closed set of
// shapes: a modified-field-name list for mutations, or query metadata for
// collection reads. Field values are never recorded.
type ChangeDetails struct {
	FieldsModified     []string      `json:"fields_modified,omitempty"`
	ModifiedFieldCount int           `json:"modified_field_count,omitempty"`
	Query              *QueryDetails `json:"query,omitempty"`
}

// AuditEntry is one row of the tamper-evident log. Immutable once written,
// except the locked flag's false-to-true transition.
type AuditEntry struct {
	LogID         uuid.UUID      `json:"log_id"`
	Seq           int64          `json:"seq"` // store-assigned, authoritative chain order
	Timestamp     time.Time      `json:"timestamp"`
	ActorID       *uuid.UUID     `json:"actor_id,omitempty"`
	ActorType     *string        `json:"actor_type,omitempty"`
	ResourceType  *string        `json:"resource_type,omitempty"`
	ResourceID    *uuid.UUID     `json:"resource_id,omitempty"`
	Action        string         `json:"action"`
	Status        string         `json:"status"`
	ChangeDetails *ChangeDetails `json:"change_details,omitempty"`
	IPAddress     *string        `json:"ip_address,omitempty"`
	Hash          string         `json:"hash"`
	PreviousHash  *string        `json:"previous_hash,omitempty"`
	Locked        bool           `json:"locked"`
}

// SealFunc links an entry into its resource chain. The repository invokes it
// inside the append transaction, after the per-resource lock is held, passing
// the hash of the latest prior entry for the same resource (nil when none).
// The callback must set PreviousHash and Hash on the entry.
type SealFunc func(entry *AuditEntry, previousHash *string) error

// AuditFilter narrows List results. Zero values mean "no predicate".
type AuditFilter struct {
	ResourceType string
	ResourceID   *uuid.UUID
	ActorID      *uuid.UUID
	Action       string
	Status       string
	From         *time.Time
	To           *time.Time
	Limit        int
}

// AuditRepository is the append-only persistence surface. There is
// deliberately no update or delete operation.
type AuditRepository interface {
	// Append persists the entry in a single transaction, serialized against
	// other appends for the same resource.
	Append(ctx context.Context, entry *AuditEntry, seal SealFunc) (*AuditEntry, error)

	// LatestHash returns the hash of the entry with the highest seq for the
	// resource, or nil when the chain is empty.
	LatestHash(ctx context.Context, resourceType string, resourceID uuid.UUID) (*string, error)

	// ListByResource returns the full chain in ascending seq order.
	ListByResource(ctx context.Context, resourceType string, resourceID uuid.UUID) ([]*AuditEntry, error)

	// List returns filtered entries, most recent first, plus the total count
	// of matching rows ignoring the limit.
	List(ctx context.Context, f AuditFilter) ([]*AuditEntry, int64, error)

	// Lock finalizes an entry; the store refuses any later mutation of a
	// locked row.
	Lock(ctx context.Context, logID uuid.UUID) error
}
