package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opencliniq/triage/internal/domain"
)

// HashInput carries the canonical string forms of the fields covered by an
// entry's hash. Nil pointers serialize as JSON null; they are never folded
// into empty strings, so "no actor" and "empty actor" hash differently.
type HashInput struct {
	LogID        string
	ActorID      *string
	ActorType    *string
	ResourceType *string
	ResourceID   *string
	Action       string
	Status       string
	Timestamp    string // ISO-8601 with timezone
	PreviousHash *string
}

// hashPayload is the canonical serialization shape. Fields are declared in
// lexicographic tag order; encoding/json preserves declaration order and
// emits no whitespace, so identical logical inputs always produce identical
// bytes regardless of how the HashInput was constructed.
type hashPayload struct {
	Action       string  `json:"action"`
	ActorID      *string `json:"actorID"`
	ActorType    *string `json:"actorType"`
	LogID        string  `json:"logID"`
	PreviousHash *string `json:"previousHash"`
	ResourceID   *string `json:"resourceID"`
	ResourceType *string `json:"resourceType"`
	Status       string  `json:"status"`
	Timestamp    string  `json:"timestamp"`
}

// ComputeHash returns the lowercase hex SHA-256 of the canonical form of in.
// Pure: no side effects, identical inputs always yield identical output.
func ComputeHash(in HashInput) string {
	payload := hashPayload{
		Action:       in.Action,
		ActorID:      in.ActorID,
		ActorType:    in.ActorType,
		LogID:        in.LogID,
		PreviousHash: in.PreviousHash,
		ResourceID:   in.ResourceID,
		ResourceType: in.ResourceType,
		Status:       in.Status,
		Timestamp:    in.Timestamp,
	}

	// Marshal of a flat struct of strings cannot fail.
	b, _ := json.Marshal(payload)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Event is the caller-facing description of a privileged action to record.
type Event struct {
	Action       string
	Status       string // SUCCESS or FAIL
	ActorID      *uuid.UUID
	ActorType    *string
	ResourceType *string
	ResourceID   *uuid.UUID
	Details      *domain.ChangeDetails
	IP           *string
}

// Engine produces correctly linked, correctly hashed audit entries and
// verifies existing chains. It holds no mutable state of its own; the store
// is the single source of truth for "latest hash per resource".
type Engine struct {
	store domain.AuditRepository
	now   func() time.Time
}

func NewEngine(store domain.AuditRepository) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Append records one entry. The store executes the seal callback inside its
// append transaction, after the per-resource lock is held, so the
// previous-hash read and the insert are atomic relative to concurrent
// writers for the same resource.
//
// Failures are never swallowed here; see Recorder for the best-effort
// policy layer.
func (e *Engine) Append(ctx context.Context, ev Event) (*domain.AuditEntry, error) {
	if err := validate(ev); err != nil {
		return nil, err
	}

	entry := &domain.AuditEntry{
		LogID: uuid.New(),
		// TIMESTAMPTZ keeps microseconds; the hash covers the timestamp, so
		// anything finer would not survive a store round trip and every
		// re-verification would recompute a different hash.
		Timestamp:     e.now().UTC().Truncate(time.Microsecond),
		ActorID:       ev.ActorID,
		ActorType:     ev.ActorType,
		ResourceType:  ev.ResourceType,
		ResourceID:    ev.ResourceID,
		Action:        ev.Action,
		Status:        ev.Status,
		ChangeDetails: ev.Details,
		IPAddress:     ev.IP,
	}

	persisted, err := e.store.Append(ctx, entry, e.seal)
	if err != nil {
		return nil, fmt.Errorf("audit.Engine.Append: %w", err)
	}

	return persisted, nil
}

// PreviousHash returns the hash of the chronologically latest entry for the
// resource, or nil when either coordinate is absent (collection-level and
// actor-only events root their own implicit chain) or the chain is empty.
func (e *Engine) PreviousHash(ctx context.Context, resourceType *string, resourceID *uuid.UUID) (*string, error) {
	if resourceType == nil || resourceID == nil {
		return nil, nil
	}

	h, err := e.store.LatestHash(ctx, *resourceType, *resourceID)
	if err != nil {
		return nil, fmt.Errorf("audit.Engine.PreviousHash: %w", err)
	}

	return h, nil
}

// seal links the entry to its predecessor and computes its hash. Invoked by
// the store inside the append transaction.
func (e *Engine) seal(entry *domain.AuditEntry, previousHash *string) error {
	entry.PreviousHash = previousHash
	entry.Hash = ComputeHash(hashInputFor(entry))
	return nil
}

func hashInputFor(entry *domain.AuditEntry) HashInput {
	in := HashInput{
		LogID:        entry.LogID.String(),
		Action:       entry.Action,
		Status:       entry.Status,
		Timestamp:    entry.Timestamp.UTC().Format(time.RFC3339Nano),
		ActorType:    entry.ActorType,
		ResourceType: entry.ResourceType,
		PreviousHash: entry.PreviousHash,
	}
	if entry.ActorID != nil {
		s := entry.ActorID.String()
		in.ActorID = &s
	}
	if entry.ResourceID != nil {
		s := entry.ResourceID.String()
		in.ResourceID = &s
	}
	return in
}

func validate(ev Event) error {
	if ev.Action == "" {
		return fmt.Errorf("%w: empty action", ErrInvalidEvent)
	}
	if ev.Status != domain.AuditStatusSuccess && ev.Status != domain.AuditStatusFail {
		return fmt.Errorf("%w: status %q", ErrInvalidEvent, ev.Status)
	}
	return nil
}
