package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opencliniq/triage/internal/audit"
	"github.com/opencliniq/triage/internal/domain"
)

// Custom ERRCODEs raised by the audit.protect_log trigger.
const (
	errcodeLocked     = "AUD01"
	errcodeAppendOnly = "AUD02"
)

const auditColumns = `log_id, seq, ts, actor_id, actor_type, resource_type, resource_id,
	action, status, change_details, ip_address, hash, previous_hash, locked`

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Append inserts one entry in a single transaction. For resource-scoped
// entries a transaction-scoped advisory lock keyed on the resource pair
// serializes the previous-hash read against concurrent writers for the same
// resource; without it two appends could read the same predecessor and fork
// the chain. Entries on different resources do not contend.
func (r *AuditRepo) Append(ctx context.Context, entry *domain.AuditEntry, seal domain.SealFunc) (*domain.AuditEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.Append: begin: %w: %v", audit.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var prev *string
	if entry.ResourceType != nil && entry.ResourceID != nil {
		_, err = tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`,
			*entry.ResourceType, entry.ResourceID.String(),
		)
		if err != nil {
			return nil, fmt.Errorf("auditRepo.Append: lock resource: %w", err)
		}

		var h string
		err = tx.QueryRow(ctx,
			`SELECT hash FROM audit.log
			 WHERE resource_type = $1 AND resource_id = $2
			 ORDER BY seq DESC LIMIT 1`,
			*entry.ResourceType, *entry.ResourceID,
		).Scan(&h)
		switch {
		case err == nil:
			prev = &h
		case errors.Is(err, pgx.ErrNoRows):
			// first entry for this resource
		default:
			return nil, fmt.Errorf("auditRepo.Append: previous hash: %w", err)
		}
	}

	if err = seal(entry, prev); err != nil {
		return nil, fmt.Errorf("auditRepo.Append: seal: %w", err)
	}

	var details []byte
	if entry.ChangeDetails != nil {
		details, err = json.Marshal(entry.ChangeDetails)
		if err != nil {
			return nil, fmt.Errorf("auditRepo.Append: marshal details: %w", err)
		}
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO audit.log (log_id, ts, actor_id, actor_type, resource_type, resource_id,
		                        action, status, change_details, ip_address, hash, previous_hash, locked)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING seq`,
		entry.LogID, entry.Timestamp, entry.ActorID, entry.ActorType,
		entry.ResourceType, entry.ResourceID, entry.Action, entry.Status,
		details, entry.IPAddress, entry.Hash, entry.PreviousHash, entry.Locked,
	).Scan(&entry.Seq)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.Append: insert: %w", mapAuditErr(err))
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("auditRepo.Append: commit: %w: %v", audit.ErrStoreUnavailable, err)
	}

	return entry, nil
}

func (r *AuditRepo) LatestHash(ctx context.Context, resourceType string, resourceID uuid.UUID) (*string, error) {
	var h string
	err := r.pool.QueryRow(ctx,
		`SELECT hash FROM audit.log
		 WHERE resource_type = $1 AND resource_id = $2
		 ORDER BY seq DESC LIMIT 1`,
		resourceType, resourceID,
	).Scan(&h)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auditRepo.LatestHash: %w", err)
	}

	return &h, nil
}

func (r *AuditRepo) ListByResource(ctx context.Context, resourceType string, resourceID uuid.UUID) ([]*domain.AuditEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+auditColumns+`
		 FROM audit.log
		 WHERE resource_type = $1 AND resource_id = $2
		 ORDER BY seq ASC`,
		resourceType, resourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.ListByResource: %w", err)
	}
	defer rows.Close()

	return scanAuditEntries(rows, "auditRepo.ListByResource")
}

func (r *AuditRepo) List(ctx context.Context, f domain.AuditFilter) ([]*domain.AuditEntry, int64, error) {
	where, args := buildAuditFilter(f)

	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit.log`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("auditRepo.List: count: %w", err)
	}

	query := `SELECT ` + auditColumns + ` FROM audit.log` + where + ` ORDER BY seq DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(f.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("auditRepo.List: %w", err)
	}
	defer rows.Close()

	entries, err := scanAuditEntries(rows, "auditRepo.List")
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (r *AuditRepo) Lock(ctx context.Context, logID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE audit.log SET locked = TRUE WHERE log_id = $1`,
		logID,
	)
	if err != nil {
		return fmt.Errorf("auditRepo.Lock: %w", mapAuditErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("auditRepo.Lock: %w", domain.ErrNotFound)
	}

	return nil
}

func buildAuditFilter(f domain.AuditFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.ResourceType != "" {
		add("resource_type = $%d", f.ResourceType)
	}
	if f.ResourceID != nil {
		add("resource_id = $%d", *f.ResourceID)
	}
	if f.ActorID != nil {
		add("actor_id = $%d", *f.ActorID)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.From != nil {
		add("ts >= $%d", *f.From)
	}
	if f.To != nil {
		add("ts <= $%d", *f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanAuditEntries(rows pgx.Rows, caller string) ([]*domain.AuditEntry, error) {
	var entries []*domain.AuditEntry
	for rows.Next() {
		var (
			e       domain.AuditEntry
			details []byte
		)

		if err := rows.Scan(
			&e.LogID, &e.Seq, &e.Timestamp, &e.ActorID, &e.ActorType,
			&e.ResourceType, &e.ResourceID, &e.Action, &e.Status,
			&details, &e.IPAddress, &e.Hash, &e.PreviousHash, &e.Locked,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		if len(details) > 0 {
			e.ChangeDetails = &domain.ChangeDetails{}
			if err := json.Unmarshal(details, e.ChangeDetails); err != nil {
				return nil, fmt.Errorf("%s: unmarshal details: %w", caller, err)
			}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return entries, nil
}

// mapAuditErr translates the protect_log trigger's ERRCODEs to the audit
// package's taxonomy.
func mapAuditErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case errcodeLocked:
			return audit.ErrLockedEntry
		case errcodeAppendOnly:
			return fmt.Errorf("append-only violation: %s", pgErr.Message)
		}
	}
	return err
}
