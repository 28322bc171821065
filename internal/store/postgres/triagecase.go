package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opencliniq/triage/internal/domain"
)

const caseColumns = `case_id, patient_id, status, summary, urgency,
	override_summary, override_summary_by, override_urgency, override_urgency_by,
	review_reason, reviewed_by, review_timestamp, scheduled_date, created_at, updated_at`

type TriageCaseRepo struct {
	pool *pgxpool.Pool
}

func NewTriageCaseRepo(pool *pgxpool.Pool) *TriageCaseRepo {
	return &TriageCaseRepo{pool: pool}
}

func (r *TriageCaseRepo) Create(ctx context.Context, c *domain.TriageCase) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO triage_cases (case_id, patient_id, status, summary, urgency,
		                           override_summary, override_summary_by, override_urgency, override_urgency_by,
		                           review_reason, reviewed_by, review_timestamp, scheduled_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		c.ID, c.PatientID, c.Status, c.Summary, c.Urgency,
		c.OverrideSummary, c.OverrideSummaryBy, c.OverrideUrgency, c.OverrideUrgencyBy,
		c.ReviewReason, c.ReviewedBy, c.ReviewTimestamp, c.ScheduledDate, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("caseRepo.Create: %w", err)
	}

	return nil
}

func (r *TriageCaseRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TriageCase, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+caseColumns+` FROM triage_cases WHERE case_id = $1`, id)

	c, err := scanCase(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("caseRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("caseRepo.GetByID: %w", err)
	}

	return c, nil
}

func (r *TriageCaseRepo) Update(ctx context.Context, c *domain.TriageCase) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE triage_cases SET status = $2, summary = $3, urgency = $4,
		        override_summary = $5, override_summary_by = $6,
		        override_urgency = $7, override_urgency_by = $8,
		        review_reason = $9, reviewed_by = $10, review_timestamp = $11,
		        scheduled_date = $12, updated_at = $13
		 WHERE case_id = $1`,
		c.ID, c.Status, c.Summary, c.Urgency,
		c.OverrideSummary, c.OverrideSummaryBy, c.OverrideUrgency, c.OverrideUrgencyBy,
		c.ReviewReason, c.ReviewedBy, c.ReviewTimestamp, c.ScheduledDate, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("caseRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("caseRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *TriageCaseRepo) List(ctx context.Context, limit int) ([]*domain.TriageCase, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+caseColumns+` FROM triage_cases ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("caseRepo.List: %w", err)
	}
	defer rows.Close()

	return scanCases(rows, "caseRepo.List")
}

func (r *TriageCaseRepo) ListByStatus(ctx context.Context, status domain.CaseStatus, limit int) ([]*domain.TriageCase, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+caseColumns+` FROM triage_cases WHERE status = $1
		 ORDER BY created_at DESC LIMIT $2`,
		status, limit)
	if err != nil {
		return nil, fmt.Errorf("caseRepo.ListByStatus: %w", err)
	}
	defer rows.Close()

	return scanCases(rows, "caseRepo.ListByStatus")
}

func (r *TriageCaseRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM triage_cases`).Scan(&n); err != nil {
		return 0, fmt.Errorf("caseRepo.Count: %w", err)
	}
	return n, nil
}

func (r *TriageCaseRepo) CountByStatus(ctx context.Context, status domain.CaseStatus) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM triage_cases WHERE status = $1`, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("caseRepo.CountByStatus: %w", err)
	}
	return n, nil
}

func (r *TriageCaseRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM triage_cases WHERE case_id = $1`, id)
	if err != nil {
		return fmt.Errorf("caseRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("caseRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

func scanCase(row pgx.Row) (*domain.TriageCase, error) {
	var c domain.TriageCase
	err := row.Scan(&c.ID, &c.PatientID, &c.Status, &c.Summary, &c.Urgency,
		&c.OverrideSummary, &c.OverrideSummaryBy, &c.OverrideUrgency, &c.OverrideUrgencyBy,
		&c.ReviewReason, &c.ReviewedBy, &c.ReviewTimestamp, &c.ScheduledDate,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanCases(rows pgx.Rows, caller string) ([]*domain.TriageCase, error) {
	var cases []*domain.TriageCase
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return cases, nil
}
